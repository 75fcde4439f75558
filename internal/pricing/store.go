// Package pricing implements the stale-while-revalidate price cache: a typed
// in-memory entry store, the fetch-and-cache orchestrator, and the subscriber
// bus behind the public Service API.
package pricing

import (
	"container/list"
	"sync"
	"time"

	"github.com/Cardboom/cardboomtest-sub005/internal/market"
)

// Freshness classifies a cached entry at lookup time.
type Freshness string

const (
	FreshnessFresh Freshness = "fresh"
	FreshnessStale Freshness = "stale"
	FreshnessMiss  Freshness = "miss"
)

// Entry wraps a cached record with its cache instant. Entries are immutable;
// a refresh replaces the entry rather than mutating it.
type Entry struct {
	Record   *market.PriceRecord `json:"record"`
	CachedAt time.Time           `json:"cached_at"`
}

// Windows holds the freshness thresholds. An entry younger than Fresh serves
// as-is, younger than Stale serves while a refresh runs, and older than Stale
// counts as absent for reads while remaining reachable for fallback. MaxAge
// bounds the shared tier's TTL.
type Windows struct {
	Fresh  time.Duration
	Stale  time.Duration
	MaxAge time.Duration
}

// CacheStats is a diagnostic snapshot of the entry store.
type CacheStats struct {
	Count       int        `json:"count"`
	MaxEntries  int        `json:"max_entries"`
	OldestEntry *time.Time `json:"oldest_entry,omitempty"`
	NewestEntry *time.Time `json:"newest_entry,omitempty"`
}

type storeItem struct {
	key   string
	entry *Entry
}

// entryStore is an LRU-bounded keyed store of immutable entries.
// Classification is lazy; expiry is logical, so stale entries leave only
// through the LRU bound, delete, or clear.
type entryStore struct {
	maxEntries int
	windows    Windows

	mu    sync.RWMutex
	items map[string]*list.Element
	lru   *list.List

	now func() time.Time
}

func newEntryStore(maxEntries int, windows Windows) *entryStore {
	if maxEntries <= 0 {
		maxEntries = 5000
	}
	return &entryStore{
		maxEntries: maxEntries,
		windows:    windows,
		items:      make(map[string]*list.Element),
		lru:        list.New(),
		now:        time.Now,
	}
}

// get returns the entry for key and its freshness classification. Entries
// past the stale window report as a miss but stay resident so the
// last-known-good fallback can still reach them; capacity is the LRU
// bound's job, not expiry's.
func (s *entryStore) get(key string) (*Entry, Freshness) {
	s.mu.Lock()
	defer s.mu.Unlock()

	element, exists := s.items[key]
	if !exists {
		return nil, FreshnessMiss
	}

	entry := element.Value.(*storeItem).entry
	age := s.now().Sub(entry.CachedAt)

	s.lru.MoveToFront(element)

	switch {
	case age <= s.windows.Fresh:
		return entry, FreshnessFresh
	case age <= s.windows.Stale:
		return entry, FreshnessStale
	default:
		return entry, FreshnessMiss
	}
}

// peek returns the entry regardless of age, for last-known-good fallback.
func (s *entryStore) peek(key string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	element, exists := s.items[key]
	if !exists {
		return nil
	}
	return element.Value.(*storeItem).entry
}

// set stores rec under key with the current instant and returns the entry.
func (s *entryStore) set(key string, rec *market.PriceRecord) *Entry {
	entry := &Entry{Record: rec, CachedAt: s.now()}
	s.setEntry(key, entry)
	return entry
}

// setEntry stores a pre-built entry, preserving its CachedAt. Used when
// backfilling from the shared cache tier.
func (s *entryStore) setEntry(key string, entry *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if element, exists := s.items[key]; exists {
		element.Value.(*storeItem).entry = entry
		s.lru.MoveToFront(element)
		return
	}

	element := s.lru.PushFront(&storeItem{key: key, entry: entry})
	s.items[key] = element

	if s.lru.Len() > s.maxEntries {
		s.evictOldest()
	}
}

func (s *entryStore) delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(key)
}

func (s *entryStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*list.Element)
	s.lru.Init()
}

func (s *entryStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// stats reports entry count and the cache-instant extremes.
func (s *entryStore) stats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := CacheStats{
		Count:      len(s.items),
		MaxEntries: s.maxEntries,
	}
	for _, element := range s.items {
		at := element.Value.(*storeItem).entry.CachedAt
		if stats.OldestEntry == nil || at.Before(*stats.OldestEntry) {
			t := at
			stats.OldestEntry = &t
		}
		if stats.NewestEntry == nil || at.After(*stats.NewestEntry) {
			t := at
			stats.NewestEntry = &t
		}
	}
	return stats
}

// snapshot returns the currently cached records keyed by item id.
func (s *entryStore) snapshot() map[string]*market.PriceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*market.PriceRecord, len(s.items))
	for key, element := range s.items {
		out[key] = element.Value.(*storeItem).entry.Record
	}
	return out
}

// remove drops an item; caller must hold the write lock.
func (s *entryStore) remove(key string) {
	if element, exists := s.items[key]; exists {
		s.lru.Remove(element)
		delete(s.items, key)
	}
}

// evictOldest drops the least recently used item; caller must hold the lock.
func (s *entryStore) evictOldest() {
	element := s.lru.Back()
	if element != nil {
		s.remove(element.Value.(*storeItem).key)
	}
}
