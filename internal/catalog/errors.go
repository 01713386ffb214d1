package catalog

import (
	"errors"
	"fmt"
)

const (
	EntityAuthor = "Author"
	EntityBook   = "Book"
)

// NotFoundError reports a missing entity id.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %d not found", e.Entity, e.ID)
}

// AuthorNotFound and BookNotFound build the two NotFoundError flavours.
func AuthorNotFound(id int64) error { return &NotFoundError{Entity: EntityAuthor, ID: id} }
func BookNotFound(id int64) error   { return &NotFoundError{Entity: EntityBook, ID: id} }

// DateFormatError reports publish date text that is not a real DD.MM.YY date.
type DateFormatError struct {
	Text string
	Err  error
}

func (e *DateFormatError) Error() string {
	return fmt.Sprintf("publish date %q does not match format DD.MM.YY", e.Text)
}

func (e *DateFormatError) Unwrap() error { return e.Err }

// ValidationError reports a malformed or missing input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

// ConflictError reports a mutation refused to keep referential integrity.
type ConflictError struct {
	Entity string
	ID     int64
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with id %d %s", e.Entity, e.ID, e.Reason)
}

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
