package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Cardboom/cardboomtest-sub005/internal/platform/observability"
	"github.com/Cardboom/cardboomtest-sub005/internal/pricing"
	"github.com/Cardboom/cardboomtest-sub005/internal/report"
	"github.com/Cardboom/cardboomtest-sub005/internal/store"
)

type scriptedQuerier struct {
	respond func(q store.Query) ([]store.Row, error)
}

func (s *scriptedQuerier) Query(_ context.Context, q store.Query) ([]store.Row, error) {
	if s.respond == nil {
		return nil, nil
	}
	return s.respond(q)
}

type staticHealth struct {
	health store.Health
}

func (h *staticHealth) Health() store.Health { return h.health }

func newTestServer(t *testing.T, querier store.Querier, health store.HealthReporter) (*Server, *report.Reporter) {
	t.Helper()

	rep := report.NewReporter(observability.NewNopLogger(), nil, 32)
	svc := pricing.NewService(context.Background(), pricing.ServiceConfig{
		Windows: pricing.Windows{
			Fresh:  5 * time.Minute,
			Stale:  30 * time.Minute,
			MaxAge: 24 * time.Hour,
		},
		MaxEntries:       100,
		MaxSwing:         0.9,
		RefreshWorkers:   1,
		RefreshQueueSize: 8,
	}, pricing.Deps{
		Querier:  querier,
		Reporter: rep,
		Logger:   observability.NewNopLogger(),
	})
	t.Cleanup(svc.Close)

	srv := New(Config{Port: 0}, Deps{
		Pricing:  svc,
		Reporter: rep,
		Health:   health,
		Logger:   observability.NewNopLogger(),
	})
	return srv, rep
}

func doRequest(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	return rec
}

func TestItemPriceEndpoint(t *testing.T) {
	querier := &scriptedQuerier{respond: func(q store.Query) ([]store.Row, error) {
		return []store.Row{{
			"id":            "card-1",
			"name":          "Pikachu Illustrator",
			"category":      "pokemon",
			"current_price": 5000.0,
			"updated_at":    time.Now(),
		}}, nil
	}}
	srv, _ := newTestServer(t, querier, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/items/card-1/price")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body["id"] != "card-1" {
		t.Errorf("unexpected body: %v", body)
	}
	if body["confidence"] == "" {
		t.Error("response should carry a confidence level")
	}
}

func TestItemPriceNotFound(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedQuerier{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/items/missing/price")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for absent item, got %d", rec.Code)
	}
}

func TestCacheStatsAndInvalidate(t *testing.T) {
	querier := &scriptedQuerier{respond: func(q store.Query) ([]store.Row, error) {
		return []store.Row{{
			"id":            "card-1",
			"name":          "Blue-Eyes White Dragon",
			"category":      "yugioh",
			"current_price": 300.0,
			"updated_at":    time.Now(),
		}}, nil
	}}
	srv, _ := newTestServer(t, querier, nil)

	doRequest(t, srv, http.MethodGet, "/api/items/card-1/price")

	rec := doRequest(t, srv, http.MethodGet, "/api/cache/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats pricing.CacheStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid stats JSON: %v", err)
	}
	if stats.Count != 1 {
		t.Errorf("expected 1 cached entry, got %d", stats.Count)
	}

	if rec := doRequest(t, srv, http.MethodDelete, "/api/cache/card-1"); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/cache/stats")
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid stats JSON: %v", err)
	}
	if stats.Count != 0 {
		t.Errorf("expected empty cache after invalidation, got %d", stats.Count)
	}
}

func TestRecentErrorsEndpoint(t *testing.T) {
	querier := &scriptedQuerier{respond: func(q store.Query) ([]store.Row, error) {
		return nil, errors.New("connection refused")
	}}
	srv, _ := newTestServer(t, querier, nil)

	doRequest(t, srv, http.MethodGet, "/api/items/card-1/price")

	rec := doRequest(t, srv, http.MethodGet, "/api/errors/recent")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Entries []report.Entry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if len(body.Entries) != 1 {
		t.Fatalf("expected 1 error entry, got %d", len(body.Entries))
	}
	if body.Entries[0].Category != report.CategoryPricing {
		t.Errorf("unexpected category: %s", body.Entries[0].Category)
	}
}

func TestReadinessReflectsStoreHealth(t *testing.T) {
	t.Run("healthy store", func(t *testing.T) {
		srv, _ := newTestServer(t, &scriptedQuerier{}, &staticHealth{
			health: store.Health{Store: "postgres", CircuitState: "closed"},
		})
		if rec := doRequest(t, srv, http.MethodGet, "/ready"); rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("open circuit", func(t *testing.T) {
		srv, _ := newTestServer(t, &scriptedQuerier{}, &staticHealth{
			health: store.Health{Store: "postgres", CircuitState: "open", ConsecutiveFailures: 7},
		})
		if rec := doRequest(t, srv, http.MethodGet, "/ready"); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})
}
