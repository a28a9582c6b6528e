package bot

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"booksearch/internal/models"
)

const (
	favoriteOn  = "★"
	favoriteOff = "☆"

	maxButtonTitle = 32
	maxDescription = 1500
)

// send delivers a message, logging failures
func (b *Bot) send(c tgbotapi.Chattable) {
	if b.api == nil {
		return // For testing
	}
	if _, err := b.api.Send(c); err != nil {
		b.logger.Error("Failed to send message", zap.Error(err))
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

// request performs an API call whose result is not a message
func (b *Bot) request(c tgbotapi.Chattable) {
	if b.api == nil {
		return
	}
	if _, err := b.api.Request(c); err != nil {
		b.logger.Warn("Telegram request failed", zap.Error(err))
	}
}

func favoriteMarker(favorite bool) string {
	if favorite {
		return favoriteOn
	}
	return favoriteOff
}

func formatAuthors(authors []string) string {
	if len(authors) == 0 {
		return "Unknown author"
	}
	return strings.Join(authors, ", ")
}

// year extracts the year from dates like 2005, 2005-11 or 2005-11-15
func year(publishedDate string) string {
	if len(publishedDate) >= 4 {
		return publishedDate[:4]
	}
	return publishedDate
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n-1])) + "…"
}

func formatResults(query string, books []models.Book, startIndex int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📚 Results for \"%s\":\n", query)
	for i, book := range books {
		sb.WriteString("\n")
		writeBookLine(&sb, startIndex+i+1, book)
	}
	return sb.String()
}

func formatFavorites(books []models.Book) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "⭐ Your favorites (%d):\n", len(books))
	for i, book := range books {
		sb.WriteString("\n")
		writeBookLine(&sb, i+1, book)
	}
	return sb.String()
}

func writeBookLine(sb *strings.Builder, n int, book models.Book) {
	fmt.Fprintf(sb, "%d. %s %s\n   %s", n, favoriteMarker(book.IsFavorite), book.Title, formatAuthors(book.Authors))
	if y := year(book.PublishedDate); y != "" {
		fmt.Fprintf(sb, " (%s)", y)
	}
	sb.WriteString("\n")
}

func formatDetails(book models.Book) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", favoriteMarker(book.IsFavorite), book.Title)
	fmt.Fprintf(&sb, "👤 %s\n", formatAuthors(book.Authors))

	if book.PublishedDate != "" {
		fmt.Fprintf(&sb, "📅 %s\n", book.PublishedDate)
	}
	if book.PageCount != nil {
		fmt.Fprintf(&sb, "📄 %d pages\n", *book.PageCount)
	}
	if len(book.Categories) > 0 {
		fmt.Fprintf(&sb, "🏷 %s\n", strings.Join(book.Categories, ", "))
	}
	if book.AverageRating != nil {
		fmt.Fprintf(&sb, "⭐ %.1f", *book.AverageRating)
		if book.RatingsCount != nil {
			fmt.Fprintf(&sb, " (%d ratings)", *book.RatingsCount)
		}
		sb.WriteString("\n")
	}
	if book.Language != "" {
		fmt.Fprintf(&sb, "🌐 %s\n", strings.ToUpper(book.Language))
	}
	if book.Description != "" {
		fmt.Fprintf(&sb, "\n%s\n", truncate(book.Description, maxDescription))
	}
	fmt.Fprintf(&sb, "\nID: %s", book.ID)
	return sb.String()
}

// resultsKeyboard builds one row per book: a favorite toggle and a details button
func resultsKeyboard(books []models.Book, startIndex int, hasMore bool) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, book := range books {
		label := strconv.Itoa(startIndex+i+1) + ". " + truncate(book.Title, maxButtonTitle)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(favoriteMarker(book.IsFavorite)+" "+label, favoritePrefix+book.ID),
			tgbotapi.NewInlineKeyboardButtonData("ℹ️", detailsPrefix+book.ID),
		))
	}
	if hasMore {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("More results ➡️", moreData),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func detailsKeyboard(book models.Book) tgbotapi.InlineKeyboardMarkup {
	label := "☆ Add to favorites"
	if book.IsFavorite {
		label = "★ Remove from favorites"
	}
	row := tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, favoritePrefix+book.ID))

	link := book.PreviewLink
	if link == "" {
		link = book.InfoLink
	}
	if link != "" {
		row = append(row, tgbotapi.NewInlineKeyboardButtonURL("🔗 Preview", link))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

// withFavoriteMarker returns a copy of markup with the toggle for id showing favorite
func withFavoriteMarker(markup tgbotapi.InlineKeyboardMarkup, id string, favorite bool) tgbotapi.InlineKeyboardMarkup {
	data := favoritePrefix + id
	rows := make([][]tgbotapi.InlineKeyboardButton, len(markup.InlineKeyboard))
	for i, row := range markup.InlineKeyboard {
		rows[i] = make([]tgbotapi.InlineKeyboardButton, len(row))
		copy(rows[i], row)
		for j, button := range rows[i] {
			if button.CallbackData == nil || *button.CallbackData != data {
				continue
			}
			rows[i][j].Text = relabel(button.Text, favorite)
		}
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func relabel(text string, favorite bool) string {
	switch {
	case strings.HasPrefix(text, "☆ Add to favorites"), strings.HasPrefix(text, "★ Remove from favorites"):
		if favorite {
			return "★ Remove from favorites"
		}
		return "☆ Add to favorites"
	case strings.HasPrefix(text, favoriteOn), strings.HasPrefix(text, favoriteOff):
		_, rest, _ := strings.Cut(text, " ")
		return favoriteMarker(favorite) + " " + rest
	}
	return text
}
