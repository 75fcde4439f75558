package market

import (
	"context"
	"strconv"
	"time"

	"github.com/Cardboom/cardboomtest-sub005/internal/store"
)

// Record builds a normalized PriceRecord from a raw row. The previous record,
// when present, supplies the reference price for swing validation. Confidence
// is recomputed here on every call, never carried over from the row.
func (n *Normalizer) Record(ctx context.Context, row store.Row, previous *PriceRecord, now time.Time) *PriceRecord {
	if row == nil {
		return nil
	}

	var prevPrice *float64
	if previous != nil {
		prevPrice = previous.CurrentPrice
	}

	rec := &PriceRecord{
		ID:        stringField(row, "id"),
		Name:      stringField(row, "name"),
		Category:  stringField(row, "category"),
		Sales30d:  intField(row, "sales_count_30d"),
		Source:    stringField(row, "data_source"),
		UpdatedAt: timeField(row, "updated_at"),
	}
	if rec.Source == "" {
		rec.Source = defaultSource
	}

	rec.Liquidity = parseLiquidity(stringField(row, "liquidity"))
	rec.CurrentPrice = n.ValidatePrice(ctx, floatField(row, "current_price"), prevPrice)
	rec.Change24h = sanitizeDelta(floatField(row, "change_24h"))
	rec.Change7d = sanitizeDelta(floatField(row, "change_7d"))
	rec.Change30d = sanitizeDelta(floatField(row, "change_30d"))
	rec.Confidence = CalculateConfidence(rec, now)

	return rec
}

func parseLiquidity(s string) Liquidity {
	switch Liquidity(s) {
	case LiquidityHigh, LiquidityMedium, LiquidityLow:
		return Liquidity(s)
	default:
		return LiquidityUnknown
	}
}

// Row values arrive loosely typed; the coercions below accept the numeric
// shapes the driver is known to produce.

func floatField(row store.Row, key string) *float64 {
	v, ok := row[key]
	if !ok || v == nil {
		return nil
	}
	switch x := v.(type) {
	case float64:
		return &x
	case float32:
		f := float64(x)
		return &f
	case int64:
		f := float64(x)
		return &f
	case int32:
		f := float64(x)
		return &f
	case int:
		f := float64(x)
		return &f
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

func intField(row store.Row, key string) int {
	v, ok := row[key]
	if !ok || v == nil {
		return 0
	}
	switch x := v.(type) {
	case int64:
		return int(x)
	case int32:
		return int(x)
	case int:
		return x
	case float64:
		return int(x)
	case string:
		i, err := strconv.Atoi(x)
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}

func stringField(row store.Row, key string) string {
	v, ok := row[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func timeField(row store.Row, key string) time.Time {
	v, ok := row[key]
	if !ok || v == nil {
		return time.Time{}
	}
	switch x := v.(type) {
	case time.Time:
		return x
	case string:
		t, err := time.Parse(time.RFC3339, x)
		if err != nil {
			return time.Time{}
		}
		return t
	default:
		return time.Time{}
	}
}
