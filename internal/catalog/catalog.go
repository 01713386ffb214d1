// Package catalog holds the bookstore entities and the contract every
// entity store implements.
package catalog

import (
	"context"
	"strings"
	"time"
)

// Author is a book author. ID is assigned by the store.
type Author struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Book references exactly one Author through AuthorID.
type Book struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Genre       string `json:"genre"`
	PublishDate Date   `json:"publish_date"`
	AuthorID    int64  `json:"author_id"`
}

// BookInput carries every mutable Book field for create and full replace.
// PublishDate is the raw DD.MM.YY text.
type BookInput struct {
	Title       string
	Genre       string
	PublishDate string
	AuthorID    int64
}

// Validate checks the fields a store cannot default.
func (in BookInput) Validate() error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return &ValidationError{Field: "title", Reason: "is required"}
	case strings.TrimSpace(in.Genre) == "":
		return &ValidationError{Field: "genre", Reason: "is required"}
	case in.AuthorID <= 0:
		return &ValidationError{Field: "author_id", Reason: "must be a positive integer"}
	}
	return nil
}

// BookPatch is a partial update. Empty strings and a zero AuthorID leave
// the stored value unchanged.
type BookPatch struct {
	Title       string
	Genre       string
	PublishDate string
	AuthorID    int64
}

// Apply overwrites the fields of b that the patch sets. The publish date is
// parsed first, relative to now, so a bad date leaves b untouched.
func (p BookPatch) Apply(b *Book, now time.Time) error {
	if p.PublishDate != "" {
		d, err := ParseDateAt(p.PublishDate, now)
		if err != nil {
			return err
		}
		b.PublishDate = d
	}
	if p.Title != "" {
		b.Title = p.Title
	}
	if p.Genre != "" {
		b.Genre = p.Genre
	}
	if p.AuthorID != 0 {
		b.AuthorID = p.AuthorID
	}
	return nil
}

// ValidateAuthorName rejects blank names.
func ValidateAuthorName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	return nil
}

// ValidatePage rejects negative offsets and limits.
func ValidatePage(skip, limit int) error {
	if skip < 0 {
		return &ValidationError{Field: "skip", Reason: "must not be negative"}
	}
	if limit < 0 {
		return &ValidationError{Field: "limit", Reason: "must not be negative"}
	}
	return nil
}

// Repository is the entity store. Lists are ordered by id ascending.
// Every mutation is applied in a single transaction and returns the
// committed row.
type Repository interface {
	CreateAuthor(ctx context.Context, name string) (Author, error)
	ListAuthors(ctx context.Context, skip, limit int) ([]Author, error)
	GetAuthor(ctx context.Context, id int64) (Author, error)
	UpdateAuthor(ctx context.Context, id int64, name string) (Author, error)
	// DeleteAuthor refuses with a ConflictError while books reference the author.
	DeleteAuthor(ctx context.Context, id int64) (Author, error)

	CreateBook(ctx context.Context, in BookInput) (Book, error)
	ListBooks(ctx context.Context, skip, limit int) ([]Book, error)
	GetBook(ctx context.Context, id int64) (Book, error)
	PatchBook(ctx context.Context, id int64, patch BookPatch) (Book, error)
	ReplaceBook(ctx context.Context, id int64, in BookInput) (Book, error)
	DeleteBook(ctx context.Context, id int64) (Book, error)

	Ping(ctx context.Context) error
	Close() error
}
