package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleConversation processes multi-step conversations
func (b *Bot) handleConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	switch state.Command {
	case "search":
		b.handleSearchConversation(ctx, message, state)
	case "clear":
		b.handleClearConversation(ctx, message, state)
	}

	// Clean up completed conversations
	if state.Step == -1 {
		b.clearState(message.From.ID)
	}
}

// handleSearchConversation waits for the query after a bare /search
func (b *Bot) handleSearchConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	switch state.Step {
	case 1: // Waiting for query
		query := strings.TrimSpace(message.Text)
		if query == "" {
			b.sendText(message.Chat.ID, "Please enter a title, author or keyword:")
			return
		}

		b.runSearch(ctx, message.Chat.ID, message.From.ID, query, 0)
		state.Step = -1
	}
}

// handleClearConversation waits for confirmation before wiping favorites
func (b *Bot) handleClearConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	switch state.Step {
	case 1: // Waiting for confirmation
		if strings.EqualFold(strings.TrimSpace(message.Text), "yes") {
			if err := b.favorites.Clear(ctx); err != nil {
				b.logFavoritesError("clear", "", err)
				b.sendText(message.Chat.ID, "Could not clear favorites. Please try again.")
			} else {
				b.sendText(message.Chat.ID, "🗑 Favorites cleared.")
			}
		} else {
			b.sendText(message.Chat.ID, "Cancelled. Your favorites are unchanged.")
		}
		state.Step = -1
	}
}
