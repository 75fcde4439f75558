// Package notification fans price updates out to external consumers.
// A bridge subscribes to the pricing cache and forwards per-item changes
// through a Publisher.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Cardboom/cardboomtest-sub005/internal/market"
	"github.com/Cardboom/cardboomtest-sub005/internal/platform/aws"
	"github.com/Cardboom/cardboomtest-sub005/internal/platform/observability"
)

// PriceUpdate is the event payload published when a cached price changes.
type PriceUpdate struct {
	ItemID     string            `json:"item_id"`
	Name       string            `json:"name"`
	Category   string            `json:"category"`
	Price      *float64          `json:"price"`
	Confidence market.Confidence `json:"confidence"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Publisher delivers price updates to an external channel.
type Publisher interface {
	PublishPriceUpdate(ctx context.Context, update PriceUpdate) error
}

// SNSPublisher publishes price updates to an SNS topic.
type SNSPublisher struct {
	snsClient *aws.SNSClient
	topicARN  string
	logger    *observability.Logger
	tracer    observability.Tracer
}

// SNSPublisherConfig holds publisher configuration.
type SNSPublisherConfig struct {
	SNSClient *aws.SNSClient
	TopicARN  string
	Logger    *observability.Logger
	Tracer    observability.Tracer
}

// NewSNSPublisher creates a price update publisher backed by SNS.
func NewSNSPublisher(cfg SNSPublisherConfig) (*SNSPublisher, error) {
	if cfg.SNSClient == nil {
		return nil, fmt.Errorf("SNS client is required")
	}
	if cfg.TopicARN == "" {
		return nil, fmt.Errorf("SNS topic ARN is required")
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoopTracer()
	}

	return &SNSPublisher{
		snsClient: cfg.SNSClient,
		topicARN:  cfg.TopicARN,
		logger:    cfg.Logger,
		tracer:    cfg.Tracer,
	}, nil
}

// PublishPriceUpdate publishes one update to SNS. Message attributes carry
// the item id, category, and confidence so subscriptions can filter.
func (p *SNSPublisher) PublishPriceUpdate(ctx context.Context, update PriceUpdate) error {
	ctx, span := p.tracer.StartSpan(
		ctx,
		"SNSPublisher.PublishPriceUpdate",
		observability.WithAttributes(
			attribute.String("item_id", update.ItemID),
			attribute.String("topic_arn", p.topicARN),
		),
	)
	defer span.End()

	payload, err := json.Marshal(update)
	if err != nil {
		span.NoticeError(err)
		return fmt.Errorf("failed to marshal price update: %w", err)
	}

	attributes := map[string]string{
		"itemId":     update.ItemID,
		"category":   update.Category,
		"confidence": string(update.Confidence),
	}

	if err := p.snsClient.Publish(ctx, p.topicARN, string(payload), attributes); err != nil {
		span.NoticeError(err)
		if p.logger != nil {
			p.logger.LogError(ctx, "failed to publish price update to SNS", err,
				"item_id", update.ItemID,
				"topic_arn", p.topicARN,
			)
		}
		return fmt.Errorf("SNS publish failed: %w", err)
	}

	if p.logger != nil {
		p.logger.Debug("published price update to SNS",
			"item_id", update.ItemID,
			"confidence", string(update.Confidence),
		)
	}
	return nil
}

// CircuitBreakerState returns the current circuit breaker state.
func (p *SNSPublisher) CircuitBreakerState() string {
	return p.snsClient.CircuitBreakerState().String()
}

// ResetCircuitBreaker manually resets the circuit breaker.
func (p *SNSPublisher) ResetCircuitBreaker() {
	p.snsClient.ResetCircuitBreaker()
	if p.logger != nil {
		p.logger.Info("reset SNS circuit breaker")
	}
}
