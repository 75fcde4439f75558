package pricing

import (
	"context"
	"sync"

	"github.com/Cardboom/cardboomtest-sub005/internal/market"
	"github.com/Cardboom/cardboomtest-sub005/internal/platform/observability"
)

// UpdateFunc receives a snapshot of all currently cached records after a
// successful cache write.
type UpdateFunc func(map[string]*market.PriceRecord)

// subscriberBus broadcasts cache writes to registered callbacks. Each
// invocation is isolated so one panicking subscriber cannot take down the
// notifier or starve the others. No ordering across subscribers is
// guaranteed.
type subscriberBus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]UpdateFunc

	logger  *observability.Logger
	metrics *observability.Metrics
}

func newSubscriberBus(logger *observability.Logger, metrics *observability.Metrics) *subscriberBus {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &subscriberBus{
		subs:    make(map[int]UpdateFunc),
		logger:  logger,
		metrics: metrics,
	}
}

// subscribe registers cb and returns its unsubscribe function. Unsubscribing
// twice is harmless.
func (b *subscriberBus) subscribe(cb UpdateFunc) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = cb
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// notify hands snapshot to every registered callback.
func (b *subscriberBus) notify(ctx context.Context, snapshot map[string]*market.PriceRecord) {
	b.mu.Lock()
	callbacks := make([]UpdateFunc, 0, len(b.subs))
	for _, cb := range b.subs {
		callbacks = append(callbacks, cb)
	}
	b.mu.Unlock()

	if len(callbacks) == 0 {
		return
	}

	for _, cb := range callbacks {
		b.invoke(ctx, cb, snapshot)
	}

	if b.metrics != nil {
		b.metrics.RecordSubscriberNotify(ctx, int64(len(callbacks)))
	}
}

func (b *subscriberBus) invoke(ctx context.Context, cb UpdateFunc, snapshot map[string]*market.PriceRecord) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.LogWarn(ctx, "price update subscriber panicked", "panic", r)
			if b.metrics != nil {
				b.metrics.RecordSubscriberPanic(ctx)
			}
		}
	}()
	cb(snapshot)
}
