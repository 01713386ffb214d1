package api

import (
	"embed"
	"html/template"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/zoravur/bookstore/internal/catalog"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type indexPage struct {
	Authors []catalog.Author
	Books   []catalog.Book
}

// handleIndex renders the first page of authors and books plus a small
// client for the realtime channel.
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	var page indexPage
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		page.Authors, err = h.Store.ListAuthors(ctx, defaultSkip, defaultLimit)
		return err
	})
	g.Go(func() error {
		var err error
		page.Books, err = h.Store.ListBooks(ctx, defaultSkip, defaultLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, page); err != nil {
		writeError(w, r, err)
	}
}
