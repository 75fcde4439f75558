package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Cardboom/cardboomtest-sub005/internal/pricing"
)

const maxRecentErrors = 100

func (s *Server) handleItemPrice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	force := queryBool(r, "force")

	rec := s.deps.Pricing.GetMarketItemPrice(r.Context(), id, force)
	if rec == nil {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	opts := pricing.ListOptions{
		Category: r.URL.Query().Get("category"),
		Limit:    queryInt(r, "limit"),
		Trending: queryBool(r, "trending"),
	}

	records := s.deps.Pricing.GetAllMarketItems(r.Context(), opts)
	respondJSON(w, http.StatusOK, map[string]any{
		"items": records,
		"count": len(records),
	})
}

func (s *Server) handleItemHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	opts := pricing.HistoryOptions{
		Days:     queryInt(r, "days"),
		ItemName: r.URL.Query().Get("name"),
		Category: r.URL.Query().Get("category"),
	}

	points := s.deps.Pricing.GetPriceHistory(r.Context(), id, opts)
	respondJSON(w, http.StatusOK, map[string]any{
		"item_id": id,
		"points":  points,
	})
}

func (s *Server) handleInvalidateAll(w http.ResponseWriter, r *http.Request) {
	s.deps.Pricing.InvalidateCache(r.Context(), "")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInvalidateItem(w http.ResponseWriter, r *http.Request) {
	s.deps.Pricing.InvalidateCache(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Pricing.CacheStats())
}

func (s *Server) handleRecentErrors(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reporter == nil {
		respondJSON(w, http.StatusOK, map[string]any{"entries": []any{}})
		return
	}

	limit := queryInt(r, "limit")
	if limit <= 0 || limit > maxRecentErrors {
		limit = maxRecentErrors
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"entries": s.deps.Reporter.Recent(limit),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady reports 503 while the backing store is unreachable. The cache
// keeps serving degraded data either way; readiness only gates traffic
// routing.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	h := s.deps.Health.Health()
	if h.CircuitState == "open" || h.ConsecutiveFailures >= 3 {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":               "degraded",
			"store":                h.Store,
			"circuit_state":        h.CircuitState,
			"consecutive_failures": h.ConsecutiveFailures,
			"last_error":           h.LastError,
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}

func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return v
}
