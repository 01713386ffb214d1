package api

import (
	"context"
	"net/http"
	"time"
)

func (h *Handler) handleRealtimeClients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Registry.SnapshotView())
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "realtime_clients": h.Registry.Len()})
}
