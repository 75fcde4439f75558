package pricing

import (
	"fmt"
	"testing"
	"time"

	"github.com/Cardboom/cardboomtest-sub005/internal/market"
)

func testWindows() Windows {
	return Windows{
		Fresh:  5 * time.Minute,
		Stale:  30 * time.Minute,
		MaxAge: 24 * time.Hour,
	}
}

func testRecord(id string) *market.PriceRecord {
	price := 10.0
	return &market.PriceRecord{
		ID:           id,
		Name:         "Test Card " + id,
		CurrentPrice: &price,
		Confidence:   market.ConfidenceHigh,
	}
}

func TestEntryStoreClassification(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		age  time.Duration
		want Freshness
	}{
		{"4 minutes old is fresh", 4 * time.Minute, FreshnessFresh},
		{"exactly at fresh window", 5 * time.Minute, FreshnessFresh},
		{"20 minutes old is stale", 20 * time.Minute, FreshnessStale},
		{"2 hours old is a miss", 2 * time.Hour, FreshnessMiss},
		{"past max age is a miss", 25 * time.Hour, FreshnessMiss},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newEntryStore(10, testWindows())
			s.now = func() time.Time { return now }

			s.setEntry("item-1", &Entry{Record: testRecord("item-1"), CachedAt: now.Add(-tt.age)})

			_, freshness := s.get("item-1")
			if freshness != tt.want {
				t.Errorf("got %s, want %s", freshness, tt.want)
			}
		})
	}
}

func TestEntryStoreMissOnAbsentKey(t *testing.T) {
	s := newEntryStore(10, testWindows())

	entry, freshness := s.get("nope")
	if entry != nil || freshness != FreshnessMiss {
		t.Errorf("expected nil/miss, got %v/%s", entry, freshness)
	}
}

func TestEntryStoreRetainsExpiredEntriesForFallback(t *testing.T) {
	now := time.Now()
	s := newEntryStore(10, testWindows())
	s.now = func() time.Time { return now }

	s.setEntry("item-1", &Entry{Record: testRecord("item-1"), CachedAt: now.Add(-25 * time.Hour)})

	if _, freshness := s.get("item-1"); freshness != FreshnessMiss {
		t.Fatalf("expected miss, got %s", freshness)
	}
	if s.len() != 1 {
		t.Errorf("expired entry should remain resident, store has %d entries", s.len())
	}
	if entry := s.peek("item-1"); entry == nil {
		t.Error("expired entry should still be reachable via peek")
	}
}

func TestEntryStoreEvictsLeastRecentlyUsed(t *testing.T) {
	s := newEntryStore(3, testWindows())

	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("item-%d", i)
		s.set(id, testRecord(id))
	}

	// Touch item-1 so item-2 becomes the eviction candidate.
	s.get("item-1")
	s.set("item-4", testRecord("item-4"))

	if entry := s.peek("item-2"); entry != nil {
		t.Error("item-2 should have been evicted")
	}
	if entry := s.peek("item-1"); entry == nil {
		t.Error("item-1 should have survived eviction")
	}
	if s.len() != 3 {
		t.Errorf("expected 3 entries, got %d", s.len())
	}
}

func TestEntryStoreLastWriteWins(t *testing.T) {
	s := newEntryStore(10, testWindows())

	s.set("item-1", testRecord("item-1"))
	second := testRecord("item-1")
	s.set("item-1", second)

	if s.len() != 1 {
		t.Fatalf("expected one entry per key, got %d", s.len())
	}
	if entry := s.peek("item-1"); entry.Record != second {
		t.Error("latest write should win")
	}
}

func TestEntryStoreStats(t *testing.T) {
	now := time.Now()
	s := newEntryStore(10, testWindows())

	if stats := s.stats(); stats.Count != 0 || stats.OldestEntry != nil {
		t.Fatalf("empty store stats: %+v", stats)
	}

	s.setEntry("old", &Entry{Record: testRecord("old"), CachedAt: now.Add(-10 * time.Minute)})
	s.setEntry("new", &Entry{Record: testRecord("new"), CachedAt: now})

	stats := s.stats()
	if stats.Count != 2 {
		t.Errorf("expected count 2, got %d", stats.Count)
	}
	if stats.OldestEntry == nil || !stats.OldestEntry.Equal(now.Add(-10*time.Minute)) {
		t.Errorf("unexpected oldest entry: %v", stats.OldestEntry)
	}
	if stats.NewestEntry == nil || !stats.NewestEntry.Equal(now) {
		t.Errorf("unexpected newest entry: %v", stats.NewestEntry)
	}
}

func TestEntryStoreClear(t *testing.T) {
	s := newEntryStore(10, testWindows())
	s.set("a", testRecord("a"))
	s.set("b", testRecord("b"))

	s.clear()

	if s.len() != 0 {
		t.Errorf("expected empty store, got %d entries", s.len())
	}
	if _, freshness := s.get("a"); freshness != FreshnessMiss {
		t.Errorf("cleared key should miss, got %s", freshness)
	}
}
