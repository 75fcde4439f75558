// Package market defines the price record model and the pure functions that
// normalize, validate, and score raw market data.
package market

import "time"

// Confidence is a categorical quality signal, distinct from cache freshness.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// rank orders confidence levels for capping. Unknown values rank lowest.
func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// Cap returns the lower of c and ceiling.
func (c Confidence) Cap(ceiling Confidence) Confidence {
	if c.rank() > ceiling.rank() {
		return ceiling
	}
	return c
}

// Liquidity rates how readily an item trades.
type Liquidity string

const (
	LiquidityHigh    Liquidity = "high"
	LiquidityMedium  Liquidity = "medium"
	LiquidityLow     Liquidity = "low"
	LiquidityUnknown Liquidity = "unknown"
)

// PriceRecord is a normalized market item price. Numeric fields are nil when
// the upstream value was absent or failed validation.
type PriceRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`

	CurrentPrice *float64 `json:"current_price"`
	Change24h    *float64 `json:"change_24h"`
	Change7d     *float64 `json:"change_7d"`
	Change30d    *float64 `json:"change_30d"`

	Sales30d  int       `json:"sales_count_30d"`
	Liquidity Liquidity `json:"liquidity"`
	Source    string    `json:"data_source"`
	UpdatedAt time.Time `json:"updated_at"`

	// Confidence is derived at normalization time, never read from upstream.
	Confidence Confidence `json:"confidence"`
}

// Clone returns a deep copy. Cached records are shared between callers, so
// any mutation (such as a confidence downgrade) must operate on a copy.
func (r *PriceRecord) Clone() *PriceRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.CurrentPrice = cloneFloat(r.CurrentPrice)
	cp.Change24h = cloneFloat(r.Change24h)
	cp.Change7d = cloneFloat(r.Change7d)
	cp.Change30d = cloneFloat(r.Change30d)
	return &cp
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

// PricePoint is one observation in an item's price history.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}
