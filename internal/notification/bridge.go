package notification

import (
	"context"
	"sync"
	"time"

	"github.com/Cardboom/cardboomtest-sub005/internal/market"
	"github.com/Cardboom/cardboomtest-sub005/internal/platform/observability"
	"github.com/Cardboom/cardboomtest-sub005/internal/platform/worker"
)

const publishTimeout = 10 * time.Second

// Bridge connects the pricing cache's subscriber bus to a Publisher. It
// diffs consecutive snapshots and publishes only the items whose price or
// confidence actually changed, off the caller's goroutine so a slow
// publisher never stalls a cache write.
type Bridge struct {
	publisher Publisher
	pool      *worker.Pool
	logger    *observability.Logger

	mu   sync.Mutex
	seen map[string]fingerprint
}

type fingerprint struct {
	price      float64
	hasPrice   bool
	confidence market.Confidence
}

// NewBridge creates a bridge publishing through pool.
func NewBridge(publisher Publisher, pool *worker.Pool, logger *observability.Logger) *Bridge {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Bridge{
		publisher: publisher,
		pool:      pool,
		logger:    logger,
		seen:      make(map[string]fingerprint),
	}
}

// OnSnapshot is the callback to register with the pricing cache. It must
// return quickly; publishing happens on the worker pool.
func (b *Bridge) OnSnapshot(snapshot map[string]*market.PriceRecord) {
	changed := b.diff(snapshot)
	for _, update := range changed {
		update := update
		submitted := b.pool.TrySubmit(worker.Task{
			Name: "publish:" + update.ItemID,
			Run: func(ctx context.Context) error {
				ctx, cancel := context.WithTimeout(ctx, publishTimeout)
				defer cancel()
				return b.publisher.PublishPriceUpdate(ctx, update)
			},
		})
		if !submitted {
			b.logger.Warn("price update publish dropped, queue full", "item_id", update.ItemID)
		}
	}
}

// diff returns updates for records that changed since the last snapshot.
// Fingerprints for ids no longer in the snapshot are pruned so evicted or
// invalidated items do not pin memory.
func (b *Bridge) diff(snapshot map[string]*market.PriceRecord) []PriceUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id := range b.seen {
		if _, ok := snapshot[id]; !ok {
			delete(b.seen, id)
		}
	}

	var changed []PriceUpdate
	for id, rec := range snapshot {
		if rec == nil {
			continue
		}
		fp := fingerprint{confidence: rec.Confidence}
		if rec.CurrentPrice != nil {
			fp.price = *rec.CurrentPrice
			fp.hasPrice = true
		}
		if prev, ok := b.seen[id]; ok && prev == fp {
			continue
		}
		b.seen[id] = fp
		changed = append(changed, PriceUpdate{
			ItemID:     rec.ID,
			Name:       rec.Name,
			Category:   rec.Category,
			Price:      rec.CurrentPrice,
			Confidence: rec.Confidence,
			UpdatedAt:  rec.UpdatedAt,
		})
	}
	return changed
}
