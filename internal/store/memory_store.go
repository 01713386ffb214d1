package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zoravur/bookstore/internal/catalog"
)

// MemoryStore keeps the catalog in-process. Semantics match SQLStore,
// including the restrict policy on author deletes.
type MemoryStore struct {
	mu         sync.Mutex
	authors    map[int64]catalog.Author
	books      map[int64]catalog.Book
	nextAuthor int64
	nextBook   int64
	now        func() time.Time
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		authors: make(map[int64]catalog.Author),
		books:   make(map[int64]catalog.Book),
		now:     buildOptions(opts).now,
	}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateAuthor(_ context.Context, name string) (catalog.Author, error) {
	if err := catalog.ValidateAuthorName(name); err != nil {
		return catalog.Author{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAuthor++
	a := catalog.Author{ID: m.nextAuthor, Name: name}
	m.authors[a.ID] = a
	return a, nil
}

func (m *MemoryStore) ListAuthors(_ context.Context, skip, limit int) ([]catalog.Author, error) {
	if err := catalog.ValidatePage(skip, limit); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []catalog.Author{}
	for _, id := range page(sortedKeys(m.authors), skip, limit) {
		out = append(out, m.authors[id])
	}
	return out, nil
}

func (m *MemoryStore) GetAuthor(_ context.Context, id int64) (catalog.Author, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.authors[id]
	if !ok {
		return catalog.Author{}, catalog.AuthorNotFound(id)
	}
	return a, nil
}

func (m *MemoryStore) UpdateAuthor(_ context.Context, id int64, name string) (catalog.Author, error) {
	if err := catalog.ValidateAuthorName(name); err != nil {
		return catalog.Author{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.authors[id]
	if !ok {
		return catalog.Author{}, catalog.AuthorNotFound(id)
	}
	a.Name = name
	m.authors[id] = a
	return a, nil
}

func (m *MemoryStore) DeleteAuthor(_ context.Context, id int64) (catalog.Author, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.authors[id]
	if !ok {
		return catalog.Author{}, catalog.AuthorNotFound(id)
	}
	for _, b := range m.books {
		if b.AuthorID == id {
			return catalog.Author{}, &catalog.ConflictError{
				Entity: catalog.EntityAuthor, ID: id, Reason: "is still referenced by books",
			}
		}
	}
	delete(m.authors, id)
	return a, nil
}

func (m *MemoryStore) CreateBook(_ context.Context, in catalog.BookInput) (catalog.Book, error) {
	date, err := catalog.ParseDateAt(in.PublishDate, m.now())
	if err != nil {
		return catalog.Book{}, err
	}
	if err := in.Validate(); err != nil {
		return catalog.Book{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.authors[in.AuthorID]; !ok {
		return catalog.Book{}, catalog.AuthorNotFound(in.AuthorID)
	}
	m.nextBook++
	b := catalog.Book{
		ID:          m.nextBook,
		Title:       in.Title,
		Genre:       in.Genre,
		PublishDate: date,
		AuthorID:    in.AuthorID,
	}
	m.books[b.ID] = b
	return b, nil
}

func (m *MemoryStore) ListBooks(_ context.Context, skip, limit int) ([]catalog.Book, error) {
	if err := catalog.ValidatePage(skip, limit); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []catalog.Book{}
	for _, id := range page(sortedKeys(m.books), skip, limit) {
		out = append(out, m.books[id])
	}
	return out, nil
}

func (m *MemoryStore) GetBook(_ context.Context, id int64) (catalog.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return catalog.Book{}, catalog.BookNotFound(id)
	}
	return b, nil
}

func (m *MemoryStore) PatchBook(_ context.Context, id int64, patch catalog.BookPatch) (catalog.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return catalog.Book{}, catalog.BookNotFound(id)
	}
	if err := patch.Apply(&b, m.now()); err != nil {
		return catalog.Book{}, err
	}
	if _, ok := m.authors[b.AuthorID]; !ok {
		return catalog.Book{}, catalog.AuthorNotFound(b.AuthorID)
	}
	m.books[id] = b
	return b, nil
}

func (m *MemoryStore) ReplaceBook(_ context.Context, id int64, in catalog.BookInput) (catalog.Book, error) {
	date, err := catalog.ParseDateAt(in.PublishDate, m.now())
	if err != nil {
		return catalog.Book{}, err
	}
	if err := in.Validate(); err != nil {
		return catalog.Book{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[id]; !ok {
		return catalog.Book{}, catalog.BookNotFound(id)
	}
	if _, ok := m.authors[in.AuthorID]; !ok {
		return catalog.Book{}, catalog.AuthorNotFound(in.AuthorID)
	}
	b := catalog.Book{
		ID:          id,
		Title:       in.Title,
		Genre:       in.Genre,
		PublishDate: date,
		AuthorID:    in.AuthorID,
	}
	m.books[id] = b
	return b, nil
}

func (m *MemoryStore) DeleteBook(_ context.Context, id int64) (catalog.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return catalog.Book{}, catalog.BookNotFound(id)
	}
	delete(m.books, id)
	return b, nil
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func page(ids []int64, skip, limit int) []int64 {
	if skip >= len(ids) {
		return nil
	}
	ids = ids[skip:]
	if limit < len(ids) {
		ids = ids[:limit]
	}
	return ids
}
