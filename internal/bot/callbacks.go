package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Callback data prefixes used by inline keyboards
const (
	favoritePrefix = "fav:"
	detailsPrefix  = "info:"
	moreData       = "more"
)

// handleFavoriteCallback toggles the favorite status of a book
func (b *Bot) handleFavoriteCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	id := strings.TrimPrefix(query.Data, favoritePrefix)
	chatID := query.Message.Chat.ID
	userID := query.From.ID

	var (
		nowFavorite bool
		notice      string
	)

	if b.favorites.IsFavorite(ctx, id) {
		if err := b.favorites.Remove(ctx, id); err != nil {
			b.logFavoritesError("remove", id, err)
			b.sendText(chatID, "❌ Could not update favorites. Please try again.")
			return
		}
		notice = "Book removed from favorites"
	} else {
		book, err := b.lookup(ctx, userID, id)
		if err != nil {
			b.logger.Error("Failed to look up book for favorites",
				zap.Error(err),
				zap.Int64("user_id", userID),
				zap.String("book_id", id),
			)
			b.sendText(chatID, "❌ Could not update favorites. Please try again.")
			return
		}
		if book == nil {
			b.sendText(chatID, "Book not found.")
			return
		}
		if err := b.favorites.Add(ctx, *book); err != nil {
			b.logFavoritesError("add", id, err)
			b.sendText(chatID, "❌ Could not update favorites. Please try again.")
			return
		}
		nowFavorite = true
		notice = fmt.Sprintf("⭐ \"%s\" added to favorites", book.Title)
	}

	if query.Message.ReplyMarkup != nil {
		markup := withFavoriteMarker(*query.Message.ReplyMarkup, id, nowFavorite)
		b.request(tgbotapi.NewEditMessageReplyMarkup(chatID, query.Message.MessageID, markup))
	}
	b.sendText(chatID, notice)
}

// handleDetailsCallback shows the details of the selected book
func (b *Bot) handleDetailsCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	id := strings.TrimPrefix(query.Data, detailsPrefix)
	b.sendDetails(ctx, query.Message.Chat.ID, query.From.ID, id)
}

// handleMoreCallback fetches the next page of the user's last search
func (b *Bot) handleMoreCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	session, ok := b.session(query.From.ID)
	if !ok {
		b.sendText(query.Message.Chat.ID, "This search has expired. Use /search again.")
		return
	}
	b.runSearch(ctx, query.Message.Chat.ID, query.From.ID, session.Query, session.NextIndex)
}
