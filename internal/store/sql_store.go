package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/zoravur/bookstore/internal/catalog"
)

const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	foreignKeyViolation = "23503"
)

const (
	authorCols = `id, name`
	bookCols   = `id, title, genre, publish_date, author_id`
)

// SQLStore implements catalog.Repository on PostgreSQL through database/sql.
// Both the pgx stdlib driver and lib/pq are supported.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenDB opens and pings a PostgreSQL handle with the named driver.
func OpenDB(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if driver != DriverPgx && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

func NewSQLStore(db *sql.DB, opts ...Option) *SQLStore {
	return &SQLStore{db: db, now: buildOptions(opts).now}
}

// DB exposes the underlying handle for migrations.
func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) Close() error { return s.db.Close() }

// --- authors ---

func (s *SQLStore) CreateAuthor(ctx context.Context, name string) (catalog.Author, error) {
	if err := catalog.ValidateAuthorName(name); err != nil {
		return catalog.Author{}, err
	}
	var a catalog.Author
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO authors (name) VALUES ($1) RETURNING `+authorCols, name,
	).Scan(&a.ID, &a.Name)
	if err != nil {
		return catalog.Author{}, fmt.Errorf("create author: %w", err)
	}
	return a, nil
}

func (s *SQLStore) ListAuthors(ctx context.Context, skip, limit int) ([]catalog.Author, error) {
	if err := catalog.ValidatePage(skip, limit); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+authorCols+` FROM authors ORDER BY id LIMIT $1 OFFSET $2`, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	defer rows.Close()

	out := []catalog.Author{}
	for rows.Next() {
		var a catalog.Author
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, fmt.Errorf("scan author: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	return out, nil
}

func (s *SQLStore) GetAuthor(ctx context.Context, id int64) (catalog.Author, error) {
	var a catalog.Author
	err := s.db.QueryRowContext(ctx,
		`SELECT `+authorCols+` FROM authors WHERE id = $1`, id,
	).Scan(&a.ID, &a.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Author{}, catalog.AuthorNotFound(id)
	}
	if err != nil {
		return catalog.Author{}, fmt.Errorf("get author: %w", err)
	}
	return a, nil
}

func (s *SQLStore) UpdateAuthor(ctx context.Context, id int64, name string) (catalog.Author, error) {
	if err := catalog.ValidateAuthorName(name); err != nil {
		return catalog.Author{}, err
	}
	var a catalog.Author
	err := s.db.QueryRowContext(ctx,
		`UPDATE authors SET name = $2 WHERE id = $1 RETURNING `+authorCols, id, name,
	).Scan(&a.ID, &a.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Author{}, catalog.AuthorNotFound(id)
	}
	if err != nil {
		return catalog.Author{}, fmt.Errorf("update author: %w", err)
	}
	return a, nil
}

func (s *SQLStore) DeleteAuthor(ctx context.Context, id int64) (catalog.Author, error) {
	var a catalog.Author
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM authors WHERE id = $1 RETURNING `+authorCols, id,
	).Scan(&a.ID, &a.Name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return catalog.Author{}, catalog.AuthorNotFound(id)
	case pgCode(err) == foreignKeyViolation:
		return catalog.Author{}, &catalog.ConflictError{
			Entity: catalog.EntityAuthor, ID: id, Reason: "is still referenced by books",
		}
	case err != nil:
		return catalog.Author{}, fmt.Errorf("delete author: %w", err)
	}
	return a, nil
}

// --- books ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (catalog.Book, error) {
	var b catalog.Book
	err := row.Scan(&b.ID, &b.Title, &b.Genre, &b.PublishDate, &b.AuthorID)
	return b, err
}

func (s *SQLStore) CreateBook(ctx context.Context, in catalog.BookInput) (catalog.Book, error) {
	date, err := catalog.ParseDateAt(in.PublishDate, s.now())
	if err != nil {
		return catalog.Book{}, err
	}
	if err := in.Validate(); err != nil {
		return catalog.Book{}, err
	}
	b, err := scanBook(s.db.QueryRowContext(ctx,
		`INSERT INTO books (title, genre, publish_date, author_id)
		 VALUES ($1, $2, $3, $4) RETURNING `+bookCols,
		in.Title, in.Genre, date, in.AuthorID))
	if pgCode(err) == foreignKeyViolation {
		return catalog.Book{}, catalog.AuthorNotFound(in.AuthorID)
	}
	if err != nil {
		return catalog.Book{}, fmt.Errorf("create book: %w", err)
	}
	return b, nil
}

func (s *SQLStore) ListBooks(ctx context.Context, skip, limit int) ([]catalog.Book, error) {
	if err := catalog.ValidatePage(skip, limit); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookCols+` FROM books ORDER BY id LIMIT $1 OFFSET $2`, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	out := []catalog.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return out, nil
}

func (s *SQLStore) GetBook(ctx context.Context, id int64) (catalog.Book, error) {
	b, err := scanBook(s.db.QueryRowContext(ctx,
		`SELECT `+bookCols+` FROM books WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Book{}, catalog.BookNotFound(id)
	}
	if err != nil {
		return catalog.Book{}, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

func (s *SQLStore) PatchBook(ctx context.Context, id int64, patch catalog.BookPatch) (catalog.Book, error) {
	var out catalog.Book
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		b, err := scanBook(tx.QueryRowContext(ctx,
			`SELECT `+bookCols+` FROM books WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.BookNotFound(id)
		}
		if err != nil {
			return fmt.Errorf("load book: %w", err)
		}
		if err := patch.Apply(&b, s.now()); err != nil {
			return err
		}
		out, err = scanBook(tx.QueryRowContext(ctx,
			`UPDATE books SET title = $2, genre = $3, publish_date = $4, author_id = $5
			 WHERE id = $1 RETURNING `+bookCols,
			id, b.Title, b.Genre, b.PublishDate, b.AuthorID))
		if pgCode(err) == foreignKeyViolation {
			return catalog.AuthorNotFound(b.AuthorID)
		}
		if err != nil {
			return fmt.Errorf("patch book: %w", err)
		}
		return nil
	})
	if err != nil {
		return catalog.Book{}, err
	}
	return out, nil
}

func (s *SQLStore) ReplaceBook(ctx context.Context, id int64, in catalog.BookInput) (catalog.Book, error) {
	date, err := catalog.ParseDateAt(in.PublishDate, s.now())
	if err != nil {
		return catalog.Book{}, err
	}
	if err := in.Validate(); err != nil {
		return catalog.Book{}, err
	}
	b, err := scanBook(s.db.QueryRowContext(ctx,
		`UPDATE books SET title = $2, genre = $3, publish_date = $4, author_id = $5
		 WHERE id = $1 RETURNING `+bookCols,
		id, in.Title, in.Genre, date, in.AuthorID))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return catalog.Book{}, catalog.BookNotFound(id)
	case pgCode(err) == foreignKeyViolation:
		return catalog.Book{}, catalog.AuthorNotFound(in.AuthorID)
	case err != nil:
		return catalog.Book{}, fmt.Errorf("replace book: %w", err)
	}
	return b, nil
}

func (s *SQLStore) DeleteBook(ctx context.Context, id int64) (catalog.Book, error) {
	b, err := scanBook(s.db.QueryRowContext(ctx,
		`DELETE FROM books WHERE id = $1 RETURNING `+bookCols, id))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Book{}, catalog.BookNotFound(id)
	}
	if err != nil {
		return catalog.Book{}, fmt.Errorf("delete book: %w", err)
	}
	return b, nil
}

func (s *SQLStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// pgCode extracts the SQLSTATE from either driver's error type.
func pgCode(err error) string {
	if err == nil {
		return ""
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
