package notification

import (
	"context"

	"github.com/Cardboom/cardboomtest-sub005/internal/platform/observability"
)

// NoOpPublisher logs price updates instead of publishing them.
// Use this when SNS is not configured (local development, testing).
type NoOpPublisher struct {
	logger *observability.Logger
}

// NewNoOpPublisher creates a publisher that only logs.
func NewNoOpPublisher(logger *observability.Logger) *NoOpPublisher {
	return &NoOpPublisher{logger: logger}
}

// PublishPriceUpdate logs the update instead of publishing it.
func (p *NoOpPublisher) PublishPriceUpdate(ctx context.Context, update PriceUpdate) error {
	if p.logger != nil {
		price := float64(0)
		if update.Price != nil {
			price = *update.Price
		}
		p.logger.Debug("price update (SNS disabled)",
			"item_id", update.ItemID,
			"price", price,
			"confidence", string(update.Confidence),
		)
	}
	return nil
}
