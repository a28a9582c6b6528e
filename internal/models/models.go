package models

import "slices"

// Book represents a catalog entry as shown to the user and as persisted in
// the favorites list
type Book struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Authors       []string    `json:"authors"`
	Description   string      `json:"description,omitempty"`
	PublishedDate string      `json:"publishedDate,omitempty"`
	PageCount     *int        `json:"pageCount,omitempty"`
	Categories    []string    `json:"categories"`
	ImageLinks    *ImageLinks `json:"imageLinks,omitempty"`
	PreviewLink   string      `json:"previewLink,omitempty"`
	InfoLink      string      `json:"infoLink,omitempty"`
	AverageRating *float64    `json:"averageRating,omitempty"`
	RatingsCount  *int        `json:"ratingsCount,omitempty"`
	Language      string      `json:"language,omitempty"`

	// IsFavorite is derived from favorites membership on every read
	IsFavorite bool `json:"isFavorite"`
}

// ImageLinks holds cover thumbnail URLs
type ImageLinks struct {
	Thumbnail      string `json:"thumbnail,omitempty"`
	SmallThumbnail string `json:"smallThumbnail,omitempty"`
}

// Clone returns a deep copy of the book. Slices and pointer fields of the
// copy never share memory with the original.
func (b Book) Clone() Book {
	c := b
	if b.Authors != nil {
		c.Authors = slices.Clone(b.Authors)
	}
	if b.Categories != nil {
		c.Categories = slices.Clone(b.Categories)
	}
	if b.ImageLinks != nil {
		links := *b.ImageLinks
		c.ImageLinks = &links
	}
	c.PageCount = clonePtr(b.PageCount)
	c.AverageRating = clonePtr(b.AverageRating)
	c.RatingsCount = clonePtr(b.RatingsCount)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
