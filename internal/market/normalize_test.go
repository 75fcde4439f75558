package market

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/Cardboom/cardboomtest-sub005/internal/store"
)

func TestRecordNormalization(t *testing.T) {
	n, _ := newTestNormalizer()
	now := time.Now()

	rec := n.Record(context.Background(), store.Row{
		"id":              "card-1",
		"name":            "Charizard Base Set",
		"category":        "pokemon",
		"current_price":   350.0,
		"change_24h":      -2.5,
		"change_7d":       math.NaN(),
		"sales_count_30d": int64(12),
		"liquidity":       "high",
		"data_source":     "tcgplayer",
		"updated_at":      now.Add(-time.Hour),
	}, nil, now)

	if rec == nil {
		t.Fatal("expected a record")
	}
	if rec.ID != "card-1" || rec.Category != "pokemon" {
		t.Errorf("unexpected identity: %+v", rec)
	}
	if rec.CurrentPrice == nil || *rec.CurrentPrice != 350 {
		t.Errorf("unexpected price: %v", rec.CurrentPrice)
	}
	if rec.Change24h == nil || *rec.Change24h != -2.5 {
		t.Errorf("negative delta should survive, got %v", rec.Change24h)
	}
	if rec.Change7d != nil {
		t.Errorf("NaN delta should be dropped, got %v", *rec.Change7d)
	}
	if rec.Liquidity != LiquidityHigh {
		t.Errorf("unexpected liquidity: %s", rec.Liquidity)
	}
	// price, sales, source, recency, liquidity all score
	if rec.Confidence != ConfidenceHigh {
		t.Errorf("expected high confidence, got %s", rec.Confidence)
	}
}

func TestRecordSwingAgainstPrevious(t *testing.T) {
	n, _ := newTestNormalizer()
	now := time.Now()

	previous := &PriceRecord{ID: "card-1", CurrentPrice: fp(100)}
	rec := n.Record(context.Background(), store.Row{
		"id":            "card-1",
		"name":          "Charizard Base Set",
		"current_price": 900.0, // 800% swing against the cached price
		"updated_at":    now,
	}, previous, now)

	if rec == nil {
		t.Fatal("expected a record")
	}
	if rec.CurrentPrice != nil {
		t.Errorf("implausible swing should null the price, got %v", *rec.CurrentPrice)
	}
}

func TestRecordDefaultsSourceAndLiquidity(t *testing.T) {
	n, _ := newTestNormalizer()
	now := time.Now()

	rec := n.Record(context.Background(), store.Row{
		"id":            "card-1",
		"name":          "Mystery Card",
		"current_price": 10.0,
		"liquidity":     "whatever",
	}, nil, now)

	if rec.Source != defaultSource {
		t.Errorf("missing source should default to %q, got %q", defaultSource, rec.Source)
	}
	if rec.Liquidity != LiquidityUnknown {
		t.Errorf("unrecognized liquidity should map to unknown, got %s", rec.Liquidity)
	}
	// only the price scores: confidence stays low
	if rec.Confidence != ConfidenceLow {
		t.Errorf("expected low confidence, got %s", rec.Confidence)
	}
}

func TestRecordCoercions(t *testing.T) {
	n, _ := newTestNormalizer()
	now := time.Now()

	rec := n.Record(context.Background(), store.Row{
		"id":              "card-1",
		"name":            "Coerced Card",
		"current_price":   "19.99",
		"sales_count_30d": "7",
		"updated_at":      now.Format(time.RFC3339),
	}, nil, now)

	if rec.CurrentPrice == nil || *rec.CurrentPrice != 19.99 {
		t.Errorf("string price should coerce, got %v", rec.CurrentPrice)
	}
	if rec.Sales30d != 7 {
		t.Errorf("string sales count should coerce, got %d", rec.Sales30d)
	}
	if rec.UpdatedAt.IsZero() {
		t.Error("RFC3339 timestamp should coerce")
	}
}

func TestRecordNilRow(t *testing.T) {
	n, _ := newTestNormalizer()
	if rec := n.Record(context.Background(), nil, nil, time.Now()); rec != nil {
		t.Errorf("nil row should produce nil record, got %+v", rec)
	}
}
