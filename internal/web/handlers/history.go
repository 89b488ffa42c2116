package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tahmidi1980-dev/facecomparison3llm/internal/compare"
)

// ResultStore reads persisted comparisons; satisfied by the PostgreSQL
// comparison repository.
type ResultStore interface {
	Get(ctx context.Context, requestID string) (*compare.Result, error)
	List(ctx context.Context, limit int) ([]compare.Result, error)
}

// HistoryHandler serves persisted comparison results. The store may be
// nil when the server runs without a database.
type HistoryHandler struct {
	store ResultStore
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(store ResultStore) *HistoryHandler {
	return &HistoryHandler{store: store}
}

// List returns recent comparison summaries, newest first.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	results, err := h.store.List(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list comparisons")
		return
	}
	if results == nil {
		results = []compare.Result{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"comparisons": results})
}

// Get returns one persisted comparison with its full vote ledger.
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}

	result, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load comparison")
		return
	}
	if result == nil {
		respondError(w, http.StatusNotFound, "comparison not found")
		return
	}
	respondJSON(w, http.StatusOK, result)
}
