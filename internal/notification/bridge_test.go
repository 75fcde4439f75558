package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Cardboom/cardboomtest-sub005/internal/market"
	"github.com/Cardboom/cardboomtest-sub005/internal/platform/observability"
	"github.com/Cardboom/cardboomtest-sub005/internal/platform/worker"
)

type capturingPublisher struct {
	mu      sync.Mutex
	updates []PriceUpdate
}

func (p *capturingPublisher) PublishPriceUpdate(_ context.Context, update PriceUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, update)
	return nil
}

func (p *capturingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.updates)
}

func snapshotWith(id string, price float64, confidence market.Confidence) map[string]*market.PriceRecord {
	return map[string]*market.PriceRecord{
		id: {
			ID:           id,
			Name:         "Black Lotus",
			Category:     "mtg",
			CurrentPrice: &price,
			Confidence:   confidence,
		},
	}
}

func waitForCount(t *testing.T, p *capturingPublisher, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for p.count() < want && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := p.count(); got != want {
		t.Fatalf("expected %d published updates, got %d", want, got)
	}
}

func TestBridgePublishesOnlyChanges(t *testing.T) {
	pub := &capturingPublisher{}
	pool := worker.NewPool(context.Background(), 1, 8, observability.NewNopLogger())
	defer pool.Close()

	bridge := NewBridge(pub, pool, observability.NewNopLogger())

	bridge.OnSnapshot(snapshotWith("card-1", 100, market.ConfidenceHigh))
	waitForCount(t, pub, 1)

	// Identical snapshot publishes nothing new.
	bridge.OnSnapshot(snapshotWith("card-1", 100, market.ConfidenceHigh))
	time.Sleep(50 * time.Millisecond)
	if pub.count() != 1 {
		t.Fatalf("unchanged snapshot must not republish, got %d updates", pub.count())
	}

	// A price move publishes again.
	bridge.OnSnapshot(snapshotWith("card-1", 110, market.ConfidenceHigh))
	waitForCount(t, pub, 2)

	// So does a confidence change at the same price.
	bridge.OnSnapshot(snapshotWith("card-1", 110, market.ConfidenceLow))
	waitForCount(t, pub, 3)
}

func TestBridgePrunesDroppedItems(t *testing.T) {
	pub := &capturingPublisher{}
	pool := worker.NewPool(context.Background(), 1, 8, observability.NewNopLogger())
	defer pool.Close()

	bridge := NewBridge(pub, pool, observability.NewNopLogger())

	bridge.OnSnapshot(snapshotWith("card-1", 100, market.ConfidenceHigh))
	waitForCount(t, pub, 1)

	// The item leaves the cache; its fingerprint must not linger.
	bridge.OnSnapshot(map[string]*market.PriceRecord{})

	bridge.mu.Lock()
	remaining := len(bridge.seen)
	bridge.mu.Unlock()
	if remaining != 0 {
		t.Errorf("fingerprints of dropped items should be pruned, %d remain", remaining)
	}

	// Coming back at the same price is a change again.
	bridge.OnSnapshot(snapshotWith("card-1", 100, market.ConfidenceHigh))
	waitForCount(t, pub, 2)
}

func TestBridgePublishPayload(t *testing.T) {
	pub := &capturingPublisher{}
	pool := worker.NewPool(context.Background(), 1, 8, observability.NewNopLogger())
	defer pool.Close()

	bridge := NewBridge(pub, pool, observability.NewNopLogger())
	bridge.OnSnapshot(snapshotWith("card-1", 100, market.ConfidenceHigh))
	waitForCount(t, pub, 1)

	pub.mu.Lock()
	update := pub.updates[0]
	pub.mu.Unlock()

	if update.ItemID != "card-1" || update.Category != "mtg" {
		t.Errorf("unexpected update identity: %+v", update)
	}
	if update.Price == nil || *update.Price != 100 {
		t.Errorf("unexpected update price: %v", update.Price)
	}
	if update.Confidence != market.ConfidenceHigh {
		t.Errorf("unexpected update confidence: %s", update.Confidence)
	}
}
