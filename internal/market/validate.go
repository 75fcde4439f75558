package market

import (
	"context"
	"math"

	"github.com/Cardboom/cardboomtest-sub005/internal/platform/observability"
	"github.com/Cardboom/cardboomtest-sub005/internal/report"
)

// Normalizer validates raw numeric input and assembles PriceRecords.
// Rejections never surface as errors; an invalid value becomes nil and a
// warning lands on the report channel.
type Normalizer struct {
	maxSwing float64
	reporter *report.Reporter
	metrics  *observability.Metrics
}

// NewNormalizer creates a Normalizer. maxSwing is the largest relative price
// change accepted in a single update (0.9 means 90%).
func NewNormalizer(maxSwing float64, reporter *report.Reporter, metrics *observability.Metrics) *Normalizer {
	if maxSwing <= 0 {
		maxSwing = 0.9
	}
	return &Normalizer{
		maxSwing: maxSwing,
		reporter: reporter,
		metrics:  metrics,
	}
}

// ValidatePrice returns candidate if it is a finite positive price, nil
// otherwise. When previous is a positive reference value and the relative
// change exceeds the swing bound, the candidate is rejected as a suspect
// feed glitch and a validation warning is reported.
func (n *Normalizer) ValidatePrice(ctx context.Context, candidate, previous *float64) *float64 {
	if candidate == nil {
		return nil
	}

	v := *candidate
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		n.reject(ctx, "non_finite_or_non_positive")
		return nil
	}

	if previous != nil && *previous > 0 {
		swing := math.Abs(v-*previous) / *previous
		if swing > n.maxSwing {
			n.reject(ctx, "excessive_swing")
			if n.reporter != nil {
				n.reporter.Warn(ctx, report.CategoryValidation, "price rejected: swing exceeds bound", nil,
					"candidate", v,
					"previous", *previous,
					"swing", swing,
					"max_swing", n.maxSwing,
				)
			}
			return nil
		}
	}

	return &v
}

func (n *Normalizer) reject(ctx context.Context, reason string) {
	if n.metrics != nil {
		n.metrics.RecordValidationReject(ctx, reason)
	}
}

// sanitizeDelta keeps finite change values (negative included) and drops
// NaN or infinite ones.
func sanitizeDelta(v *float64) *float64 {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}
