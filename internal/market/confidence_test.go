package market

import (
	"testing"
	"time"
)

func TestCalculateConfidence(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		rec  *PriceRecord
		want Confidence
	}{
		{
			name: "all signals present",
			rec: &PriceRecord{
				CurrentPrice: fp(10),
				Sales30d:     8,
				Source:       "external",
				UpdatedAt:    now.Add(-time.Hour),
				Liquidity:    LiquidityMedium,
			},
			want: ConfidenceHigh,
		},
		{
			name: "price only scores low",
			rec: &PriceRecord{
				CurrentPrice: fp(10),
			},
			want: ConfidenceLow,
		},
		{
			name: "price plus moderate sales scores medium",
			rec: &PriceRecord{
				CurrentPrice: fp(10),
				Sales30d:     2,
			},
			want: ConfidenceMedium,
		},
		{
			name: "internal source earns no provenance point",
			rec: &PriceRecord{
				CurrentPrice: fp(10),
				Sales30d:     8,
				Source:       defaultSource,
			},
			want: ConfidenceMedium,
		},
		{
			name: "stale update earns no recency point",
			rec: &PriceRecord{
				CurrentPrice: fp(10),
				Sales30d:     8,
				Source:       "external",
				UpdatedAt:    now.Add(-48 * time.Hour),
				Liquidity:    LiquidityLow,
			},
			want: ConfidenceHigh,
		},
		{
			name: "no price and no sales scores low",
			rec: &PriceRecord{
				Source:    "external",
				UpdatedAt: now.Add(-time.Hour),
			},
			want: ConfidenceLow,
		},
		{
			name: "nil record",
			rec:  nil,
			want: ConfidenceLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateConfidence(tt.rec, now); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestConfidenceCap(t *testing.T) {
	if got := ConfidenceHigh.Cap(ConfidenceMedium); got != ConfidenceMedium {
		t.Errorf("high capped at medium should be medium, got %s", got)
	}
	if got := ConfidenceLow.Cap(ConfidenceMedium); got != ConfidenceLow {
		t.Errorf("low capped at medium should stay low, got %s", got)
	}
	if got := ConfidenceMedium.Cap(ConfidenceHigh); got != ConfidenceMedium {
		t.Errorf("medium capped at high should stay medium, got %s", got)
	}
}
