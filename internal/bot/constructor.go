package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// resultsPageSize keeps result keyboards short enough for a phone screen
const resultsPageSize = 10

// NewBot creates a new Telegram bot
func NewBot(token string, books Catalog, favs Favorites, allowedUserIDs []int64, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))

	b := newBot(api, books, favs, allowedUserIDs, logger)
	b.client = api
	b.token = token
	return b, nil
}

func newBot(api Messenger, books Catalog, favs Favorites, allowedUserIDs []int64, logger *zap.Logger) *Bot {
	allowedUsers := make(map[int64]bool)
	for _, id := range allowedUserIDs {
		allowedUsers[id] = true
	}

	return &Bot{
		api:          api,
		catalog:      books,
		favorites:    favs,
		allowedUsers: allowedUsers,
		pageSize:     resultsPageSize,
		states:       make(map[int64]*ConversationState),
		sessions:     make(map[int64]*SearchSession),
		logger:       logger,
	}
}
