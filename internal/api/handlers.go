package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zoravur/bookstore/internal/catalog"
	"github.com/zoravur/bookstore/internal/logutil"
	"github.com/zoravur/bookstore/internal/protocol"
	"github.com/zoravur/bookstore/internal/reactive"
)

const (
	defaultSkip  = 0
	defaultLimit = 10
)

// Handler holds shared resources injected from app.Server.
type Handler struct {
	Store    catalog.Repository
	Registry *reactive.Registry
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// --- authors ---

func (h *Handler) handleListAuthors(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	authors, err := h.Store.ListAuthors(r.Context(), skip, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authors)
}

func (h *Handler) handleGetAuthor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.Store.GetAuthor(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleCreateAuthor(w http.ResponseWriter, r *http.Request) {
	name, err := requiredQuery(r, "name")
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.Store.CreateAuthor(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.notify(r, protocol.AuthorCreated(a.Name))
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleUpdateAuthor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	name, err := requiredQuery(r, "name")
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.Store.UpdateAuthor(r.Context(), id, name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.notify(r, protocol.AuthorPut(a.Name))
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleDeleteAuthor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.Store.DeleteAuthor(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.notify(r, protocol.AuthorDeleted(id))
	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "Author deleted successfully"})
}

// --- books ---

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	books, err := h.Store.ListBooks(r.Context(), skip, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *Handler) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.Store.GetBook(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	in, err := bookInput(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.Store.CreateBook(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.notify(r, protocol.BookCreated(b.Title))
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) handlePatchBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	patch := catalog.BookPatch{
		Title:       q.Get("title"),
		Genre:       q.Get("genre"),
		PublishDate: q.Get("publish_date"),
	}
	if patch.AuthorID, err = optionalAuthorID(q.Get("author_id")); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.Store.PatchBook(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.notify(r, protocol.BookPatched(b.ID))
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) handleReplaceBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := bookInput(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.Store.ReplaceBook(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.notify(r, protocol.BookPut(b.ID))
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.Store.DeleteBook(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.notify(r, protocol.BookDeleted(id))
	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "Book deleted successfully"})
}

// notify broadcasts a committed change. The request may already be gone,
// so delivery does not inherit its cancellation.
func (h *Handler) notify(r *http.Request, text string) {
	rep := h.Registry.Broadcast(context.WithoutCancel(r.Context()), text)
	logutil.FromContext(r.Context()).Debug("change notified",
		logutil.Values(
			zap.String("message", text),
			zap.Int("recipients", rep.Recipients),
			zap.Int("failed", len(rep.Failures)),
		),
	)
}

// --- request parsing ---

func pathID(r *http.Request) (int64, error) {
	return parseID("id", chi.URLParam(r, "id"))
}

func parseID(field, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &catalog.ValidationError{Field: field, Reason: "must be a positive integer"}
	}
	return id, nil
}

// optionalAuthorID reads a patch author id. Empty and 0 both mean unchanged.
func optionalAuthorID(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, &catalog.ValidationError{Field: "author_id", Reason: "must be a non-negative integer"}
	}
	return id, nil
}

func requiredQuery(r *http.Request, key string) (string, error) {
	v := r.URL.Query().Get(key)
	if strings.TrimSpace(v) == "" {
		return "", &catalog.ValidationError{Field: key, Reason: "is required"}
	}
	return v, nil
}

func optionalInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &catalog.ValidationError{Field: key, Reason: "must be an integer"}
	}
	return n, nil
}

func pageParams(r *http.Request) (int, int, error) {
	skip, err := optionalInt(r, "skip", defaultSkip)
	if err != nil {
		return 0, 0, err
	}
	limit, err := optionalInt(r, "limit", defaultLimit)
	if err != nil {
		return 0, 0, err
	}
	return skip, limit, catalog.ValidatePage(skip, limit)
}

func bookInput(r *http.Request) (catalog.BookInput, error) {
	var in catalog.BookInput
	var err error
	if in.Title, err = requiredQuery(r, "title"); err != nil {
		return in, err
	}
	if in.Genre, err = requiredQuery(r, "genre"); err != nil {
		return in, err
	}
	if in.PublishDate, err = requiredQuery(r, "publish_date"); err != nil {
		return in, err
	}
	raw, err := requiredQuery(r, "author_id")
	if err != nil {
		return in, err
	}
	in.AuthorID, err = parseID("author_id", raw)
	return in, err
}

// --- responses ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the catalog error taxonomy onto HTTP statuses. Anything
// unrecognized is a store failure and surfaces as 500 with its message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		nf *catalog.NotFoundError
		df *catalog.DateFormatError
		ve *catalog.ValidationError
		ce *catalog.ConflictError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &nf):
		status = http.StatusNotFound
	case errors.As(err, &df), errors.As(err, &ve):
		status = http.StatusBadRequest
	case errors.As(err, &ce):
		status = http.StatusConflict
	}

	log := logutil.FromContext(r.Context())
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	} else {
		log.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}
