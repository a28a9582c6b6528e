package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"booksearch/internal/catalog"
	"booksearch/internal/favorites"
	"booksearch/internal/models"
	"booksearch/internal/storage/stubs"
)

// Note: tests drive the handlers directly and record what would be sent to Telegram

type fakeMessenger struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeMessenger) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeMessenger) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// messages returns the sent text messages
func (f *fakeMessenger) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg)
		}
	}
	return out
}

func (f *fakeMessenger) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	msgs := f.messages()
	require.NotEmpty(t, msgs, "expected a message to be sent")
	return msgs[len(msgs)-1]
}

func (f *fakeMessenger) edits() []tgbotapi.EditMessageReplyMarkupConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.EditMessageReplyMarkupConfig
	for _, c := range f.requests {
		if edit, ok := c.(tgbotapi.EditMessageReplyMarkupConfig); ok {
			out = append(out, edit)
		}
	}
	return out
}

type fakeCatalog struct {
	books     []models.Book
	err       error
	searches  []catalog.SearchParams
	lookups   []string
	lookupErr error
}

func (f *fakeCatalog) Search(ctx context.Context, params catalog.SearchParams) ([]models.Book, error) {
	f.searches = append(f.searches, params)
	if strings.TrimSpace(params.Query) == "" {
		return nil, catalog.ErrEmptyQuery
	}
	if f.err != nil {
		return nil, f.err
	}
	start := min(params.StartIndex, len(f.books))
	end := min(start+params.MaxResults, len(f.books))
	out := make([]models.Book, 0, end-start)
	for _, b := range f.books[start:end] {
		out = append(out, b.Clone())
	}
	return out, nil
}

func (f *fakeCatalog) GetByID(ctx context.Context, id string) (*models.Book, error) {
	f.lookups = append(f.lookups, id)
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, b := range f.books {
		if b.ID == id {
			c := b.Clone()
			return &c, nil
		}
	}
	return nil, nil
}

const (
	testUserID = int64(123)
	testChatID = int64(456)
)

func setupBot(t *testing.T, books ...models.Book) (*Bot, *fakeMessenger, *fakeCatalog, *favorites.Store, *stubs.MockKV) {
	t.Helper()
	kv := stubs.NewMockKV()
	store := favorites.NewStore(kv, "", zap.NewNop())
	cat := &fakeCatalog{books: books}
	api := &fakeMessenger{}
	b := newBot(api, cat, store, []int64{testUserID}, zap.NewNop())
	return b, api, cat, store, kv
}

func commandMessage(text string) *tgbotapi.Message {
	cmd, _, _ := strings.Cut(text, " ")
	return &tgbotapi.Message{
		From:     &tgbotapi.User{ID: testUserID},
		Chat:     &tgbotapi.Chat{ID: testChatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}
}

func textMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: testUserID},
		Chat: &tgbotapi.Chat{ID: testChatID},
		Text: text,
	}
}

func callback(data string, markup *tgbotapi.InlineKeyboardMarkup) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: &tgbotapi.User{ID: testUserID},
		Data: data,
		Message: &tgbotapi.Message{
			MessageID:   99,
			Chat:        &tgbotapi.Chat{ID: testChatID},
			ReplyMarkup: markup,
		},
	}
}

func sampleBooks(n int) []models.Book {
	books := make([]models.Book, n)
	for i := range books {
		books[i] = models.Book{
			ID:      "id" + string(rune('A'+i)),
			Title:   "Book " + string(rune('A'+i)),
			Authors: []string{"Author"},
		}
	}
	return books
}

func buttonData(markup tgbotapi.InlineKeyboardMarkup) []string {
	var out []string
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				out = append(out, *btn.CallbackData)
			}
		}
	}
	return out
}

func TestBot_SearchWithArguments(t *testing.T) {
	bot, api, cat, store, _ := setupBot(t, sampleBooks(3)...)
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, models.Book{ID: "idB", Title: "Book B"}))

	bot.handleMessage(commandMessage("/search dune messiah"))

	require.Len(t, cat.searches, 1)
	assert.Equal(t, "dune messiah", cat.searches[0].Query)
	assert.Equal(t, resultsPageSize, cat.searches[0].MaxResults)

	msg := api.last(t)
	assert.Equal(t, testChatID, msg.ChatID)
	assert.Contains(t, msg.Text, "1. ☆ Book A")
	assert.Contains(t, msg.Text, "2. ★ Book B")

	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, []string{"fav:idA", "info:idA", "fav:idB", "info:idB", "fav:idC", "info:idC"}, buttonData(markup))
}

func TestBot_SearchConversation(t *testing.T) {
	bot, api, cat, _, _ := setupBot(t, sampleBooks(1)...)

	bot.handleMessage(commandMessage("/search"))

	state := bot.state(testUserID)
	require.NotNil(t, state, "Expected conversation state to be created")
	assert.Equal(t, "search", state.Command)
	assert.Equal(t, 1, state.Step)
	assert.Empty(t, cat.searches)

	bot.handleMessage(textMessage("  tolkien "))

	require.Len(t, cat.searches, 1)
	assert.Equal(t, "tolkien", cat.searches[0].Query)
	assert.Nil(t, bot.state(testUserID), "Expected conversation to be cleaned up")
	assert.Contains(t, api.last(t).Text, "Book A")
}

func TestBot_CommandCancelsConversation(t *testing.T) {
	bot, _, cat, _, _ := setupBot(t)

	bot.handleMessage(commandMessage("/search"))
	bot.handleMessage(commandMessage("/start"))

	assert.Nil(t, bot.state(testUserID))
	assert.Empty(t, cat.searches)
}

func TestBot_SearchFailureIsNotEmptyResult(t *testing.T) {
	bot, api, cat, _, _ := setupBot(t)
	cat.err = &catalog.RemoteLookupError{Op: "search", StatusCode: 503, Err: errors.New("unavailable")}

	bot.handleMessage(commandMessage("/search dune"))

	text := api.last(t).Text
	assert.Contains(t, text, "Could not search books")
	assert.NotContains(t, text, "No books found")
}

func TestBot_SearchNoResults(t *testing.T) {
	bot, api, _, _, _ := setupBot(t)

	bot.handleMessage(commandMessage("/search nothing"))

	assert.Equal(t, "No books found for \"nothing\".", api.last(t).Text)
}

func TestBot_FavoriteToggle(t *testing.T) {
	bot, api, cat, store, _ := setupBot(t, sampleBooks(2)...)
	ctx := context.Background()

	bot.handleMessage(commandMessage("/search book"))
	markup := api.last(t).ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)

	// Add
	bot.handleCallbackQuery(callback("fav:idA", &markup))

	assert.True(t, store.IsFavorite(ctx, "idA"))
	assert.Empty(t, cat.lookups, "book comes from the remembered search results")
	assert.Contains(t, api.last(t).Text, "added to favorites")

	edits := api.edits()
	require.Len(t, edits, 1)
	assert.Equal(t, 99, edits[0].MessageID)
	assert.True(t, strings.HasPrefix(edits[0].ReplyMarkup.InlineKeyboard[0][0].Text, favoriteOn))
	assert.True(t, strings.HasPrefix(edits[0].ReplyMarkup.InlineKeyboard[1][0].Text, favoriteOff))

	// Remove
	bot.handleCallbackQuery(callback("fav:idA", edits[0].ReplyMarkup))

	assert.False(t, store.IsFavorite(ctx, "idA"))
	assert.Equal(t, "Book removed from favorites", api.last(t).Text)
	edits = api.edits()
	require.Len(t, edits, 2)
	assert.True(t, strings.HasPrefix(edits[1].ReplyMarkup.InlineKeyboard[0][0].Text, favoriteOff))
}

func TestBot_FavoriteToggleLooksUpUnknownBook(t *testing.T) {
	bot, _, cat, store, _ := setupBot(t, sampleBooks(1)...)

	bot.handleCallbackQuery(callback("fav:idA", nil))

	assert.Equal(t, []string{"idA"}, cat.lookups)
	assert.True(t, store.IsFavorite(context.Background(), "idA"))
}

func TestBot_FavoriteToggleMissingBook(t *testing.T) {
	bot, api, _, store, _ := setupBot(t)

	bot.handleCallbackQuery(callback("fav:gone", nil))

	assert.Equal(t, "Book not found.", api.last(t).Text)
	assert.Empty(t, store.List(context.Background()))
}

func TestBot_FavoriteToggleWriteFailure(t *testing.T) {
	bot, api, _, store, kv := setupBot(t, sampleBooks(1)...)
	kv.FailOn(stubs.OpSet, errors.New("disk full"))

	bot.handleCallbackQuery(callback("fav:idA", &tgbotapi.InlineKeyboardMarkup{}))

	assert.Contains(t, api.last(t).Text, "Could not update favorites")
	assert.Empty(t, api.edits(), "keyboard is left unchanged")
	assert.False(t, store.IsFavorite(context.Background(), "idA"))
}

func TestBot_MoreResults(t *testing.T) {
	bot, api, cat, _, _ := setupBot(t, sampleBooks(resultsPageSize+2)...)

	bot.handleMessage(commandMessage("/search book"))
	first := api.last(t).ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	assert.Contains(t, buttonData(first), moreData)

	bot.handleCallbackQuery(callback(moreData, &first))

	require.Len(t, cat.searches, 2)
	assert.Equal(t, "book", cat.searches[1].Query)
	assert.Equal(t, resultsPageSize, cat.searches[1].StartIndex)

	second := api.last(t)
	assert.Contains(t, second.Text, "11. ☆ Book K")
	assert.NotContains(t, buttonData(second.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)), moreData)

	// Books from both pages can be toggled without another lookup
	bot.handleCallbackQuery(callback("fav:idA", nil))
	bot.handleCallbackQuery(callback("fav:idL", nil))
	assert.Empty(t, cat.lookups)
}

func TestBot_MoreWithoutSession(t *testing.T) {
	bot, api, cat, _, _ := setupBot(t)

	bot.handleCallbackQuery(callback(moreData, nil))

	assert.Empty(t, cat.searches)
	assert.Contains(t, api.last(t).Text, "expired")
}

func TestBot_Favorites(t *testing.T) {
	bot, api, _, store, _ := setupBot(t)
	ctx := context.Background()

	bot.handleMessage(commandMessage("/favorites"))
	assert.Contains(t, api.last(t).Text, "no favorites")

	require.NoError(t, store.Add(ctx, models.Book{ID: "A", Title: "X"}))
	require.NoError(t, store.Add(ctx, models.Book{ID: "B", Title: "Y"}))

	bot.handleMessage(commandMessage("/favorites"))
	msg := api.last(t)
	assert.Contains(t, msg.Text, "Your favorites (2)")
	assert.Contains(t, msg.Text, "1. ★ X")
	assert.Contains(t, msg.Text, "2. ★ Y")

	// Removing from the favorites list works without a search
	markup := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	bot.handleCallbackQuery(callback("fav:A", &markup))
	assert.Equal(t, []string{"B"}, idsOf(store.List(ctx)))
}

func TestBot_ClearNeedsConfirmation(t *testing.T) {
	bot, api, _, store, _ := setupBot(t)
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, models.Book{ID: "A"}))

	bot.handleMessage(commandMessage("/clear"))
	bot.handleMessage(textMessage("no"))
	assert.Len(t, store.List(ctx), 1)
	assert.Contains(t, api.last(t).Text, "unchanged")

	bot.handleMessage(commandMessage("/clear"))
	bot.handleMessage(textMessage("YES"))
	assert.Empty(t, store.List(ctx))
	assert.Contains(t, api.last(t).Text, "Favorites cleared")
	assert.Nil(t, bot.state(testUserID))
}

func TestBot_BookDetails(t *testing.T) {
	pages := 412
	rating := 4.5
	count := 10
	bot, api, _, store, _ := setupBot(t, models.Book{
		ID:            "dune",
		Title:         "Dune",
		Authors:       []string{"Frank Herbert"},
		PublishedDate: "1965-08-01",
		PageCount:     &pages,
		AverageRating: &rating,
		RatingsCount:  &count,
		Categories:    []string{"Fiction"},
		PreviewLink:   "http://preview",
		Description:   "Spice.",
	})
	require.NoError(t, store.Add(context.Background(), models.Book{ID: "dune", Title: "Dune"}))

	bot.handleMessage(commandMessage("/book dune"))

	msg := api.last(t)
	assert.Contains(t, msg.Text, "★ Dune")
	assert.Contains(t, msg.Text, "412 pages")
	assert.Contains(t, msg.Text, "4.5 (10 ratings)")
	assert.Contains(t, msg.Text, "Spice.")

	markup := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.Len(t, markup.InlineKeyboard[0], 2)
	assert.Equal(t, "★ Remove from favorites", markup.InlineKeyboard[0][0].Text)
	require.NotNil(t, markup.InlineKeyboard[0][1].URL)
	assert.Equal(t, "http://preview", *markup.InlineKeyboard[0][1].URL)

	bot.handleMessage(commandMessage("/book missing"))
	assert.Equal(t, "Book not found.", api.last(t).Text)

	bot.handleMessage(commandMessage("/book"))
	assert.Contains(t, api.last(t).Text, "Usage")
}

func TestBot_UnauthorizedUser(t *testing.T) {
	bot, api, cat, _, _ := setupBot(t)

	msg := commandMessage("/search dune")
	msg.From.ID = 999
	bot.HandleWebhookUpdate(tgbotapi.Update{Message: msg})

	assert.Empty(t, cat.searches)
	assert.Contains(t, api.last(t).Text, "not authorized")

	query := callback("fav:x", nil)
	query.From.ID = 999
	bot.HandleWebhookUpdate(tgbotapi.Update{CallbackQuery: query})
	assert.Empty(t, cat.lookups)
}

func TestBot_PanicRecovery(t *testing.T) {
	bot, _, _, _, _ := setupBot(t)
	bot.favorites = nil // Any favorites access panics

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("handler panicked: %v", r)
		}
	}()

	bot.handleMessage(commandMessage("/favorites"))
	bot.handleCallbackQuery(callback("fav:x", nil))
}

func TestBot_StartWithoutClient(t *testing.T) {
	bot, _, _, _, _ := setupBot(t)

	assert.ErrorIs(t, bot.Start(), errNoClient)
	assert.ErrorIs(t, bot.StartWebhook("https://example.com"), errNoClient)
}

func idsOf(books []models.Book) []string {
	out := make([]string, 0, len(books))
	for _, b := range books {
		out = append(out, b.ID)
	}
	return out
}
