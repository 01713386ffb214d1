package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	faker "github.com/go-faker/faker/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoravur/bookstore/internal/catalog"
)

// storeNow pins the century rule: "45" means 1945, "24" means 2024.
var storeNow = time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return storeNow }

type authorFixture struct {
	Name string `faker:"name"`
}

type bookFixture struct {
	Title string `faker:"sentence"`
	Genre string `faker:"word"`
}

func fakeAuthor(t *testing.T) string {
	t.Helper()
	var fx authorFixture
	require.NoError(t, faker.FakeData(&fx))
	return fx.Name
}

func fakeBook(t *testing.T, authorID int64, date string) catalog.BookInput {
	t.Helper()
	var fx bookFixture
	require.NoError(t, faker.FakeData(&fx))
	return catalog.BookInput{Title: fx.Title, Genre: fx.Genre, PublishDate: date, AuthorID: authorID}
}

// testRepository runs the behaviour every catalog.Repository must share.
// newRepo must return an empty store.
func testRepository(t *testing.T, newRepo func(t *testing.T) catalog.Repository) {
	ctx := func(t *testing.T) context.Context {
		c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		t.Cleanup(cancel)
		return c
	}

	t.Run("create returns generated ids and inputs", func(t *testing.T) {
		repo, c := newRepo(t), ctx(t)
		name := fakeAuthor(t)
		a, err := repo.CreateAuthor(c, name)
		require.NoError(t, err)
		assert.NotZero(t, a.ID)
		assert.Equal(t, name, a.Name)

		in := fakeBook(t, a.ID, "29.02.24")
		b, err := repo.CreateBook(c, in)
		require.NoError(t, err)
		assert.NotZero(t, b.ID)
		assert.Equal(t, in.Title, b.Title)
		assert.Equal(t, in.Genre, b.Genre)
		assert.Equal(t, "2024-02-29", b.PublishDate.String())
		assert.Equal(t, a.ID, b.AuthorID)

		got, err := repo.GetBook(c, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b, got)
	})

	t.Run("create book rejects bad date and unknown author", func(t *testing.T) {
		repo, c := newRepo(t), ctx(t)
		a, err := repo.CreateAuthor(c, fakeAuthor(t))
		require.NoError(t, err)

		_, err = repo.CreateBook(c, fakeBook(t, a.ID, "31.02.24"))
		var dfe *catalog.DateFormatError
		require.ErrorAs(t, err, &dfe)

		_, err = repo.CreateBook(c, fakeBook(t, a.ID+1000, "01.01.20"))
		var nf *catalog.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, catalog.EntityAuthor, nf.Entity)

		books, err := repo.ListBooks(c, 0, 10)
		require.NoError(t, err)
		assert.Empty(t, books)
	})

	t.Run("blank author name is a validation error", func(t *testing.T) {
		repo, c := newRepo(t), ctx(t)
		_, err := repo.CreateAuthor(c, "  ")
		var ve *catalog.ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("update and patch of missing ids do not mutate", func(t *testing.T) {
		repo, c := newRepo(t), ctx(t)
		a, err := repo.CreateAuthor(c, "Kept")
		require.NoError(t, err)
		b, err := repo.CreateBook(c, fakeBook(t, a.ID, "17.01.45"))
		require.NoError(t, err)

		_, err = repo.UpdateAuthor(c, a.ID+1, "Other")
		assert.True(t, catalog.IsNotFound(err))
		_, err = repo.PatchBook(c, b.ID+1, catalog.BookPatch{Title: "Other"})
		assert.True(t, catalog.IsNotFound(err))
		_, err = repo.ReplaceBook(c, b.ID+1, fakeBook(t, a.ID, "01.01.01"))
		assert.True(t, catalog.IsNotFound(err))

		gotA, err := repo.GetAuthor(c, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a, gotA)
		gotB, err := repo.GetBook(c, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b, gotB)
	})

	t.Run("patch leaves unspecified fields unchanged", func(t *testing.T) {
		repo, c := newRepo(t), ctx(t)
		a, err := repo.CreateAuthor(c, fakeAuthor(t))
		require.NoError(t, err)
		b, err := repo.CreateBook(c, fakeBook(t, a.ID, "17.01.45"))
		require.NoError(t, err)

		patched, err := repo.PatchBook(c, b.ID, catalog.BookPatch{Genre: "horror"})
		require.NoError(t, err)
		assert.Equal(t, "horror", patched.Genre)
		assert.Equal(t, b.Title, patched.Title)
		assert.Equal(t, b.PublishDate.String(), patched.PublishDate.String())
		assert.Equal(t, b.AuthorID, patched.AuthorID)

		_, err = repo.PatchBook(c, b.ID, catalog.BookPatch{Title: "Nope", PublishDate: "2024-02-29"})
		var dfe *catalog.DateFormatError
		require.ErrorAs(t, err, &dfe)

		got, err := repo.GetBook(c, b.ID)
		require.NoError(t, err)
		assert.Equal(t, patched, got)

		_, err = repo.PatchBook(c, b.ID, catalog.BookPatch{AuthorID: a.ID + 1000})
		var nf *catalog.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, catalog.EntityAuthor, nf.Entity)
	})

	t.Run("replace overwrites every field", func(t *testing.T) {
		repo, c := newRepo(t), ctx(t)
		a1, err := repo.CreateAuthor(c, fakeAuthor(t))
		require.NoError(t, err)
		a2, err := repo.CreateAuthor(c, fakeAuthor(t))
		require.NoError(t, err)
		b, err := repo.CreateBook(c, fakeBook(t, a1.ID, "17.01.45"))
		require.NoError(t, err)

		in := catalog.BookInput{Title: "Eureka", Genre: "essay", PublishDate: "03.02.20", AuthorID: a2.ID}
		got, err := repo.ReplaceBook(c, b.ID, in)
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.ID)
		assert.Equal(t, "Eureka", got.Title)
		assert.Equal(t, "essay", got.Genre)
		assert.Equal(t, "2020-02-03", got.PublishDate.String())
		assert.Equal(t, a2.ID, got.AuthorID)
	})

	t.Run("delete twice reports not found", func(t *testing.T) {
		repo, c := newRepo(t), ctx(t)
		a, err := repo.CreateAuthor(c, fakeAuthor(t))
		require.NoError(t, err)
		b, err := repo.CreateBook(c, fakeBook(t, a.ID, "17.01.45"))
		require.NoError(t, err)

		deleted, err := repo.DeleteBook(c, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b, deleted)
		_, err = repo.DeleteBook(c, b.ID)
		assert.True(t, catalog.IsNotFound(err))

		gone, err := repo.DeleteAuthor(c, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a, gone)
		_, err = repo.DeleteAuthor(c, a.ID)
		assert.True(t, catalog.IsNotFound(err))
	})

	t.Run("author with books cannot be deleted", func(t *testing.T) {
		repo, c := newRepo(t), ctx(t)
		a, err := repo.CreateAuthor(c, fakeAuthor(t))
		require.NoError(t, err)
		_, err = repo.CreateBook(c, fakeBook(t, a.ID, "17.01.45"))
		require.NoError(t, err)

		_, err = repo.DeleteAuthor(c, a.ID)
		var ce *catalog.ConflictError
		require.ErrorAs(t, err, &ce)

		_, err = repo.GetAuthor(c, a.ID)
		require.NoError(t, err)
	})

	t.Run("lists are ordered by id and paginated", func(t *testing.T) {
		repo, c := newRepo(t), ctx(t)
		var ids []int64
		for i := 0; i < 5; i++ {
			a, err := repo.CreateAuthor(c, fmt.Sprintf("author-%d", i))
			require.NoError(t, err)
			ids = append(ids, a.ID)
		}

		all, err := repo.ListAuthors(c, 0, 10)
		require.NoError(t, err)
		require.Len(t, all, 5)
		for i, a := range all {
			assert.Equal(t, ids[i], a.ID)
		}

		mid, err := repo.ListAuthors(c, 1, 2)
		require.NoError(t, err)
		require.Len(t, mid, 2)
		assert.Equal(t, ids[1], mid[0].ID)
		assert.Equal(t, ids[2], mid[1].ID)

		past, err := repo.ListAuthors(c, 10, 10)
		require.NoError(t, err)
		assert.Empty(t, past)

		_, err = repo.ListBooks(c, -1, 10)
		var ve *catalog.ValidationError
		require.ErrorAs(t, err, &ve)
	})
}
