package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"booksearch/internal/catalog"
	"booksearch/internal/models"
)

// Catalog is the remote book lookup used by the bot
type Catalog interface {
	Search(ctx context.Context, params catalog.SearchParams) ([]models.Book, error)
	GetByID(ctx context.Context, id string) (*models.Book, error)
}

// Favorites is the favorites list used by the bot
type Favorites interface {
	List(ctx context.Context) []models.Book
	Add(ctx context.Context, book models.Book) error
	Remove(ctx context.Context, id string) error
	IsFavorite(ctx context.Context, id string) bool
	Clear(ctx context.Context) error
	Annotate(ctx context.Context, books []models.Book) []models.Book
}

// Messenger is the part of the Telegram API the bot talks to.
// *tgbotapi.BotAPI satisfies it.
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot represents the Telegram bot wrapper
type Bot struct {
	api          Messenger
	client       *tgbotapi.BotAPI // nil outside of a real Telegram session
	token        string
	catalog      Catalog
	favorites    Favorites
	allowedUsers map[int64]bool
	pageSize     int

	states   map[int64]*ConversationState
	sessions map[int64]*SearchSession
	statesMu sync.Mutex

	logger *zap.Logger
}

// ConversationState tracks the state of multi-step commands
type ConversationState struct {
	Command string
	Step    int
	Data    map[string]interface{}
}

// SearchSession remembers a user's latest search so result buttons and
// paging keep working after the conversation ends
type SearchSession struct {
	Query     string
	NextIndex int
	Books     map[string]models.Book
}
