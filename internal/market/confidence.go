package market

import "time"

// defaultSource is the provenance string assigned when upstream data carries
// no attribution. It earns no confidence points.
const defaultSource = "internal"

// CalculateConfidence scores a normalized record over independent
// data-quality signals and maps the total to a categorical level.
// Deterministic for a fixed "now".
//
//	valid positive price        +2
//	sales in last 30d: >=5      +2, >=1 +1
//	attributed external source  +1
//	updated within 24h          +1
//	liquidity rated above low   +1
//
// Total >= 5 is high, >= 3 is medium, anything below is low.
func CalculateConfidence(rec *PriceRecord, now time.Time) Confidence {
	if rec == nil {
		return ConfidenceLow
	}

	score := 0

	if rec.CurrentPrice != nil && *rec.CurrentPrice > 0 {
		score += 2
	}

	switch {
	case rec.Sales30d >= 5:
		score += 2
	case rec.Sales30d >= 1:
		score++
	}

	if rec.Source != "" && rec.Source != defaultSource {
		score++
	}

	if !rec.UpdatedAt.IsZero() && now.Sub(rec.UpdatedAt) < 24*time.Hour {
		score++
	}

	if rec.Liquidity == LiquidityHigh || rec.Liquidity == LiquidityMedium {
		score++
	}

	switch {
	case score >= 5:
		return ConfidenceHigh
	case score >= 3:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
