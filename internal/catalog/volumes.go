package catalog

import (
	"slices"

	"booksearch/internal/models"
)

// UnknownTitle is used when the catalog returns a volume without a title
const UnknownTitle = "Unknown title"

// volumesResponse matches GET /volumes
type volumesResponse struct {
	Kind       string   `json:"kind"`
	TotalItems int      `json:"totalItems"`
	Items      []Volume `json:"items"`
}

// Volume matches a single volume resource, as returned by GET /volumes/{id}
// and as the elements of a search response
type Volume struct {
	ID         string     `json:"id"`
	VolumeInfo VolumeInfo `json:"volumeInfo"`
}

// VolumeInfo is the descriptive part of a volume
type VolumeInfo struct {
	Title         string             `json:"title"`
	Authors       []string           `json:"authors"`
	Description   string             `json:"description"`
	PublishedDate string             `json:"publishedDate"`
	PageCount     *int               `json:"pageCount"`
	Categories    []string           `json:"categories"`
	ImageLinks    *models.ImageLinks `json:"imageLinks"`
	PreviewLink   string             `json:"previewLink"`
	InfoLink      string             `json:"infoLink"`
	AverageRating *float64           `json:"averageRating"`
	RatingsCount  *int               `json:"ratingsCount"`
	Language      string             `json:"language"`
}

// MapVolume converts a remote volume into a local Book record.
// Favorite status is unknown at fetch time and always starts false.
func MapVolume(v Volume) models.Book {
	info := v.VolumeInfo

	book := models.Book{
		ID:            v.ID,
		Title:         info.Title,
		Authors:       slices.Clone(info.Authors),
		Description:   info.Description,
		PublishedDate: info.PublishedDate,
		PageCount:     info.PageCount,
		Categories:    slices.Clone(info.Categories),
		ImageLinks:    info.ImageLinks,
		PreviewLink:   info.PreviewLink,
		InfoLink:      info.InfoLink,
		AverageRating: info.AverageRating,
		RatingsCount:  info.RatingsCount,
		Language:      info.Language,
		IsFavorite:    false,
	}

	if book.Title == "" {
		book.Title = UnknownTitle
	}
	if book.Authors == nil {
		book.Authors = []string{}
	}
	if book.Categories == nil {
		book.Categories = []string{}
	}

	return book
}

func mapVolumes(items []Volume) []models.Book {
	books := make([]models.Book, 0, len(items))
	for _, item := range items {
		books = append(books, MapVolume(item))
	}
	return books
}
