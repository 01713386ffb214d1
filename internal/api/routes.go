package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SetupRoutes mounts the catalog API, the HTML index and the realtime
// endpoint served by ws.
func SetupRoutes(h *Handler, ws http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/", h.handleIndex)
	r.Get("/healthz", h.handleHealth)
	r.Handle("/ws", ws)
	r.Get("/realtime/clients", h.handleRealtimeClients)

	r.Route("/authors", func(r chi.Router) {
		r.Get("/", h.handleListAuthors)
		r.Post("/", h.handleCreateAuthor)
		r.Get("/{id}", h.handleGetAuthor)
		r.Put("/{id}", h.handleUpdateAuthor)
		r.Delete("/{id}", h.handleDeleteAuthor)
	})

	r.Route("/books", func(r chi.Router) {
		r.Get("/", h.handleListBooks)
		r.Post("/", h.handleCreateBook)
		r.Get("/{id}", h.handleGetBook)
		r.Patch("/{id}", h.handlePatchBook)
		r.Put("/{id}", h.handleReplaceBook)
		r.Delete("/{id}", h.handleDeleteBook)
	})

	return r
}
