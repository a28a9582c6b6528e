package favorites

import "booksearch/internal/models"

// Overlay returns copies of books with IsFavorite set by membership of their
// id in favoriteIDs. The input slice and its records are left untouched.
func Overlay(books []models.Book, favoriteIDs map[string]struct{}) []models.Book {
	out := make([]models.Book, len(books))
	for i, book := range books {
		c := book.Clone()
		_, c.IsFavorite = favoriteIDs[book.ID]
		out[i] = c
	}
	return out
}

// IDSet collects the ids of books
func IDSet(books []models.Book) map[string]struct{} {
	ids := make(map[string]struct{}, len(books))
	for _, book := range books {
		ids[book.ID] = struct{}{}
	}
	return ids
}
