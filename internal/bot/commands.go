package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"booksearch/internal/catalog"
	"booksearch/internal/models"
)

// handleStart shows welcome message and available commands
func (b *Bot) handleStart(message *tgbotapi.Message) {
	text := `Welcome to Book Search! 📚

Available commands:
/search <query> - Search books by title, author or keyword
/book <id> - Show book details
/favorites - Show your favorite books
/clear - Remove all favorites`

	b.sendText(message.Chat.ID, text)
}

// handleSearchStart runs a search, or asks for the query when none was given
func (b *Bot) handleSearchStart(ctx context.Context, message *tgbotapi.Message) {
	query := strings.TrimSpace(message.CommandArguments())
	if query != "" {
		b.runSearch(ctx, message.Chat.ID, message.From.ID, query, 0)
		return
	}

	b.setState(message.From.ID, &ConversationState{
		Command: "search",
		Step:    1,
		Data:    make(map[string]interface{}),
	})
	b.sendText(message.Chat.ID, "🔎 Please enter a title, author or keyword:")
}

// runSearch fetches one page of results, overlays favorite status and sends it
func (b *Bot) runSearch(ctx context.Context, chatID, userID int64, query string, startIndex int) {
	books, err := b.catalog.Search(ctx, catalog.SearchParams{
		Query:      query,
		MaxResults: b.pageSize,
		StartIndex: startIndex,
	})
	if err != nil {
		if errors.Is(err, catalog.ErrEmptyQuery) {
			b.sendText(chatID, "Please enter something to search for.")
			return
		}
		b.logger.Error("Search failed",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.String("query", query),
			zap.Int("start_index", startIndex),
		)
		b.sendText(chatID, "❌ Could not search books. Please try again.")
		return
	}

	if len(books) == 0 {
		if startIndex == 0 {
			b.sendText(chatID, fmt.Sprintf("No books found for \"%s\".", query))
		} else {
			b.sendText(chatID, "No more results.")
		}
		return
	}

	books = b.favorites.Annotate(ctx, books)
	b.rememberResults(userID, query, startIndex, books)

	hasMore := len(books) >= b.pageSize
	msg := tgbotapi.NewMessage(chatID, formatResults(query, books, startIndex))
	msg.ReplyMarkup = resultsKeyboard(books, startIndex, hasMore)
	b.send(msg)

	b.logger.Info("Search results sent",
		zap.Int64("chat_id", chatID),
		zap.String("query", query),
		zap.Int("start_index", startIndex),
		zap.Int("book_count", len(books)),
	)
}

// handleBook shows the details of one book
func (b *Bot) handleBook(ctx context.Context, message *tgbotapi.Message) {
	id := strings.TrimSpace(message.CommandArguments())
	if id == "" {
		b.sendText(message.Chat.ID, "Usage: /book <id>")
		return
	}
	b.sendDetails(ctx, message.Chat.ID, message.From.ID, id)
}

func (b *Bot) sendDetails(ctx context.Context, chatID, userID int64, id string) {
	book, err := b.lookup(ctx, userID, id)
	if err != nil {
		b.logger.Error("Failed to fetch book details",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.String("book_id", id),
		)
		b.sendText(chatID, "❌ Could not load book details. Please try again.")
		return
	}
	if book == nil {
		b.sendText(chatID, "Book not found.")
		return
	}

	annotated := b.favorites.Annotate(ctx, []models.Book{*book})[0]
	msg := tgbotapi.NewMessage(chatID, formatDetails(annotated))
	msg.ReplyMarkup = detailsKeyboard(annotated)
	b.send(msg)
}

// handleFavorites lists the favorites with remove buttons
func (b *Bot) handleFavorites(ctx context.Context, message *tgbotapi.Message) {
	books := b.favorites.List(ctx)
	if len(books) == 0 {
		b.sendText(message.Chat.ID, "⭐ You have no favorites yet.\n\nBooks you add to favorites will appear here.")
		return
	}

	// Favorites keep their own copy, so toggles work without a search session
	b.rememberBooks(message.From.ID, books)

	msg := tgbotapi.NewMessage(message.Chat.ID, formatFavorites(books))
	msg.ReplyMarkup = resultsKeyboard(books, 0, false)
	b.send(msg)
}

// handleClear asks for confirmation before removing all favorites
func (b *Bot) handleClear(ctx context.Context, message *tgbotapi.Message) {
	if len(b.favorites.List(ctx)) == 0 {
		b.sendText(message.Chat.ID, "You have no favorites to clear.")
		return
	}

	b.setState(message.From.ID, &ConversationState{
		Command: "clear",
		Step:    1,
		Data:    make(map[string]interface{}),
	})
	b.sendText(message.Chat.ID, "Remove all favorites? Reply \"yes\" to confirm.")
}

// lookup returns a remembered book or fetches it from the catalog
func (b *Bot) lookup(ctx context.Context, userID int64, id string) (*models.Book, error) {
	if book, ok := b.rememberedBook(userID, id); ok {
		return &book, nil
	}
	return b.catalog.GetByID(ctx, id)
}

func (b *Bot) rememberResults(userID int64, query string, startIndex int, books []models.Book) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()

	session, ok := b.sessions[userID]
	if !ok || session.Query != query || startIndex == 0 {
		session = &SearchSession{Query: query, Books: make(map[string]models.Book)}
		b.sessions[userID] = session
	}
	session.NextIndex = startIndex + len(books)
	for _, book := range books {
		session.Books[book.ID] = book.Clone()
	}
}

func (b *Bot) rememberBooks(userID int64, books []models.Book) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()

	session, ok := b.sessions[userID]
	if !ok {
		session = &SearchSession{Books: make(map[string]models.Book)}
		b.sessions[userID] = session
	}
	for _, book := range books {
		session.Books[book.ID] = book.Clone()
	}
}

func (b *Bot) rememberedBook(userID int64, id string) (models.Book, bool) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()

	session, ok := b.sessions[userID]
	if !ok {
		return models.Book{}, false
	}
	book, ok := session.Books[id]
	if !ok {
		return models.Book{}, false
	}
	return book.Clone(), true
}

func (b *Bot) session(userID int64) (SearchSession, bool) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()

	session, ok := b.sessions[userID]
	if !ok || session.Query == "" {
		return SearchSession{}, false
	}
	return SearchSession{Query: session.Query, NextIndex: session.NextIndex}, true
}

func (b *Bot) logFavoritesError(op, bookID string, err error) {
	b.logger.Error("Failed to update favorites",
		zap.Error(err),
		zap.String("op", op),
		zap.String("book_id", bookID),
	)
}
