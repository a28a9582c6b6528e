package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"booksearch/internal/models"
	"booksearch/internal/storage"
)

// DefaultKey is the storage key holding the serialized favorites list
const DefaultKey = "@book_search_favorites"

// Store keeps the favorites list as one JSON document under a single key.
//
// Every mutation is a full read-modify-write of that document. Mutations are
// serialized by mu so overlapping calls cannot lose each other's updates.
// Reads go straight to storage; each Get is atomic, so a read never sees a
// partially written list.
type Store struct {
	kv     storage.KV
	key    string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewStore creates a favorites store over kv. An empty key selects DefaultKey.
func NewStore(kv storage.KV, key string, logger *zap.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{kv: kv, key: key, logger: logger}
}

// List returns the persisted favorites in insertion order, each marked as
// favorite. Unreadable or corrupt storage yields an empty list.
func (s *Store) List(ctx context.Context) []models.Book {
	books, err := s.load(ctx)
	if err != nil {
		s.logger.Error("Failed to read favorites, treating as empty",
			zap.Error(err),
			zap.String("key", s.key),
		)
		return []models.Book{}
	}
	return books
}

// Add stores a copy of book as a favorite. Adding a book whose id is already
// stored changes nothing.
func (s *Store) Add(ctx context.Context, book models.Book) error {
	if strings.TrimSpace(book.ID) == "" {
		return ErrMissingID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	books, err := s.loadForWrite(ctx)
	if err != nil {
		return &PersistError{Op: "add", Err: err}
	}

	if slices.ContainsFunc(books, func(b models.Book) bool { return b.ID == book.ID }) {
		return nil
	}

	fav := book.Clone()
	fav.IsFavorite = true
	books = append(books, fav)

	if err := s.save(ctx, books); err != nil {
		return &PersistError{Op: "add", Err: err}
	}

	s.logger.Info("Book added to favorites",
		zap.String("book_id", book.ID),
		zap.String("title", book.Title),
		zap.Int("favorites_count", len(books)),
	)
	return nil
}

// Remove deletes the favorite with the given id. Removing an absent id changes nothing.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	books, err := s.loadForWrite(ctx)
	if err != nil {
		return &PersistError{Op: "remove", Err: err}
	}

	kept := slices.DeleteFunc(books, func(b models.Book) bool { return b.ID == id })
	if err := s.save(ctx, kept); err != nil {
		return &PersistError{Op: "remove", Err: err}
	}

	s.logger.Info("Book removed from favorites",
		zap.String("book_id", id),
		zap.Int("favorites_count", len(kept)),
	)
	return nil
}

// IsFavorite reports whether id is in the persisted list. Any read failure reports false.
func (s *Store) IsFavorite(ctx context.Context, id string) bool {
	_, ok := s.IDs(ctx)[id]
	return ok
}

// Clear deletes the whole favorites list
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Remove(ctx, s.key); err != nil {
		return &PersistError{Op: "clear", Err: err}
	}

	s.logger.Info("Favorites cleared")
	return nil
}

// IDs returns the set of favorite ids
func (s *Store) IDs(ctx context.Context) map[string]struct{} {
	return IDSet(s.List(ctx))
}

// Annotate overlays the current favorite status onto books
func (s *Store) Annotate(ctx context.Context, books []models.Book) []models.Book {
	return Overlay(books, s.IDs(ctx))
}

// load decodes the persisted list. A missing key is an empty list.
func (s *Store) load(ctx context.Context) ([]models.Book, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return []models.Book{}, nil
	}
	if err != nil {
		return nil, err
	}

	var books []models.Book
	if err := json.Unmarshal([]byte(raw), &books); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	out := make([]models.Book, 0, len(books))
	for _, b := range books {
		b.IsFavorite = true
		out = append(out, b)
	}
	return out, nil
}

// loadForWrite is load for mutations. A corrupt payload is replaced by the
// next write; a storage read error aborts the mutation so no data is clobbered.
func (s *Store) loadForWrite(ctx context.Context) ([]models.Book, error) {
	books, err := s.load(ctx)
	if errors.Is(err, ErrCorruptState) {
		s.logger.Warn("Overwriting corrupt favorites list",
			zap.Error(err),
			zap.String("key", s.key),
		)
		return []models.Book{}, nil
	}
	return books, err
}

func (s *Store) save(ctx context.Context, books []models.Book) error {
	payload, err := json.Marshal(books)
	if err != nil {
		return fmt.Errorf("encode favorites: %w", err)
	}
	return s.kv.Set(ctx, s.key, string(payload))
}
