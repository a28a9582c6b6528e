package bot

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"booksearch/internal/catalog"
	"booksearch/internal/favorites"
	"booksearch/internal/models"
)

// initDataMaxAge bounds how old a Mini App login may be
const initDataMaxAge = 24 * time.Hour

// HTTPServer serves the JSON API used by the Mini App
type HTTPServer struct {
	bot         *Bot
	webhookMode bool // If false (polling mode), skip authentication for easier local dev
	now         func() time.Time
}

// NewHTTPServer creates a new HTTP server for the Mini App
func NewHTTPServer(bot *Bot, webhookMode bool) *HTTPServer {
	return &HTTPServer{
		bot:         bot,
		webhookMode: webhookMode,
		now:         time.Now,
	}
}

// RegisterRoutes registers Mini App routes on the provided mux
func (hs *HTTPServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/search", hs.authMiddleware(hs.handleSearch))
	mux.HandleFunc("GET /api/books/{id}", hs.authMiddleware(hs.handleBook))
	mux.HandleFunc("GET /api/favorites", hs.authMiddleware(hs.handleListFavorites))
	mux.HandleFunc("POST /api/favorites", hs.authMiddleware(hs.handleAddFavorite))
	mux.HandleFunc("DELETE /api/favorites/{id}", hs.authMiddleware(hs.handleRemoveFavorite))
	mux.HandleFunc("DELETE /api/favorites", hs.authMiddleware(hs.handleClearFavorites))
}

// validateTelegramInitData validates the Telegram Mini App initData
func (hs *HTTPServer) validateTelegramInitData(initData string) (int64, error) {
	if initData == "" {
		return 0, fmt.Errorf("missing initData")
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return 0, fmt.Errorf("invalid initData format: %w", err)
	}

	hash := values.Get("hash")
	if hash == "" {
		return 0, fmt.Errorf("missing hash in initData")
	}
	values.Del("hash")

	if !hmac.Equal([]byte(signInitData(hs.bot.token, values)), []byte(hash)) {
		return 0, fmt.Errorf("invalid hash")
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("missing or invalid auth_date")
	}
	if hs.now().Sub(time.Unix(authDate, 0)) > initDataMaxAge {
		return 0, fmt.Errorf("initData is too old")
	}

	userStr := values.Get("user")
	if userStr == "" {
		return 0, fmt.Errorf("missing user data")
	}

	var userData struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(userStr), &userData); err != nil {
		return 0, fmt.Errorf("invalid user data: %w", err)
	}

	if !hs.bot.allowedUsers[userData.ID] {
		return 0, fmt.Errorf("user not allowed")
	}

	return userData.ID, nil
}

// signInitData computes the Telegram WebApp hash of values (without "hash")
func signInitData(token string, values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var dataCheckString strings.Builder
	for i, k := range keys {
		if i > 0 {
			dataCheckString.WriteByte('\n')
		}
		dataCheckString.WriteString(k)
		dataCheckString.WriteByte('=')
		dataCheckString.WriteString(values.Get(k))
	}

	secretKey := hmac.New(sha256.New, []byte("WebAppData"))
	secretKey.Write([]byte(token))
	secret := secretKey.Sum(nil)

	h := hmac.New(sha256.New, secret)
	h.Write([]byte(dataCheckString.String()))
	return hex.EncodeToString(h.Sum(nil))
}

// authMiddleware validates Telegram Mini App authentication
// In polling mode (webhookMode=false), authentication is skipped for easier local development
func (hs *HTTPServer) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !hs.webhookMode {
			hs.bot.logger.Debug("Skipping authentication (polling mode)",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)
			next(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "tma ") {
			hs.bot.logger.Warn("Missing or invalid authorization header")
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		userID, err := hs.validateTelegramInitData(strings.TrimPrefix(authHeader, "tma "))
		if err != nil {
			hs.bot.logger.Warn("Failed to validate initData",
				zap.Error(err),
				zap.String("remote_addr", r.RemoteAddr),
			)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		hs.bot.logger.Debug("Authenticated request",
			zap.Int64("user_id", userID),
			zap.String("path", r.URL.Path),
		)

		next(w, r)
	}
}

// SearchResponse is the body of GET /api/search
type SearchResponse struct {
	Items      []models.Book `json:"items"`
	StartIndex int           `json:"startIndex"`
}

// handleSearch returns one page of results with favorite status
func (hs *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	maxResults, err := optionalInt(q.Get("maxResults"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid maxResults")
		return
	}
	startIndex, err := optionalInt(q.Get("startIndex"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid startIndex")
		return
	}

	books, err := hs.bot.catalog.Search(r.Context(), catalog.SearchParams{
		Query:      q.Get("q"),
		MaxResults: maxResults,
		StartIndex: startIndex,
	})
	if errors.Is(err, catalog.ErrEmptyQuery) {
		writeError(w, http.StatusBadRequest, "Missing query")
		return
	}
	if err != nil {
		hs.bot.logger.Error("Failed to search books", zap.Error(err), zap.String("query", q.Get("q")))
		writeError(w, http.StatusBadGateway, "Failed to search books")
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Items:      hs.bot.favorites.Annotate(r.Context(), books),
		StartIndex: startIndex,
	})
}

// handleBook returns one book with favorite status
func (hs *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	book, err := hs.bot.catalog.GetByID(r.Context(), id)
	if err != nil {
		hs.bot.logger.Error("Failed to fetch book", zap.Error(err), zap.String("book_id", id))
		writeError(w, http.StatusBadGateway, "Failed to fetch book")
		return
	}
	if book == nil {
		writeError(w, http.StatusNotFound, "Book not found")
		return
	}

	writeJSON(w, http.StatusOK, hs.bot.favorites.Annotate(r.Context(), []models.Book{*book})[0])
}

// handleListFavorites returns the favorites list
func (hs *HTTPServer) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, hs.bot.favorites.List(r.Context()))
}

// handleAddFavorite stores the book in the request body as a favorite
func (hs *HTTPServer) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	var book models.Book
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&book); err != nil {
		hs.bot.logger.Warn("Failed to decode request body", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := hs.bot.favorites.Add(r.Context(), book)
	if errors.Is(err, favorites.ErrMissingID) {
		writeError(w, http.StatusBadRequest, "Missing book id")
		return
	}
	if err != nil {
		hs.bot.logFavoritesError("add", book.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to add favorite")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "success"})
}

// handleRemoveFavorite removes one favorite
func (hs *HTTPServer) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := hs.bot.favorites.Remove(r.Context(), id); err != nil {
		hs.bot.logFavoritesError("remove", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to remove favorite")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleClearFavorites removes every favorite
func (hs *HTTPServer) handleClearFavorites(w http.ResponseWriter, r *http.Request) {
	if err := hs.bot.favorites.Clear(r.Context()); err != nil {
		hs.bot.logFavoritesError("clear", "", err)
		writeError(w, http.StatusInternalServerError, "Failed to clear favorites")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
