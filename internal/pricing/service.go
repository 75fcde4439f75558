package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/Cardboom/cardboomtest-sub005/internal/market"
	"github.com/Cardboom/cardboomtest-sub005/internal/platform/cache"
	"github.com/Cardboom/cardboomtest-sub005/internal/platform/observability"
	"github.com/Cardboom/cardboomtest-sub005/internal/platform/resilience"
	"github.com/Cardboom/cardboomtest-sub005/internal/platform/worker"
	"github.com/Cardboom/cardboomtest-sub005/internal/report"
	"github.com/Cardboom/cardboomtest-sub005/internal/store"
)

const (
	itemsTable   = "market_items"
	historyTable = "price_history"

	defaultListLimit   = 50
	defaultHistoryRows = 500
	refreshTimeout     = 10 * time.Second
)

// ServiceConfig tunes the pricing cache.
type ServiceConfig struct {
	Windows     Windows
	MaxEntries  int
	MaxSwing    float64
	HistoryDays int

	RefreshWorkers   int
	RefreshQueueSize int
	RefreshRate      float64
	RefreshBurst     int

	SharedTTL       time.Duration
	WarmupItemLimit int
}

// Deps are the service's collaborators. Shared and Tracer may be nil.
type Deps struct {
	Querier  store.Querier
	Shared   cache.Cache
	Reporter *report.Reporter
	Logger   *observability.Logger
	Metrics  *observability.Metrics
	Tracer   observability.Tracer
}

// Service is the public pricing API: stale-while-revalidate reads over an
// LRU entry store, fetch-and-cache against the backing row store, and a
// subscriber bus for push updates.
//
// Public read methods return values, never errors. Failures degrade to the
// last-known-good value at low confidence, or to nil, with the failure
// recorded on the report channel.
type Service struct {
	cfg    ServiceConfig
	deps   Deps
	logger *observability.Logger
	tracer observability.Tracer

	cache      *entryStore
	normalizer *market.Normalizer
	bus        *subscriberBus
	pool       *worker.Pool
	limiter    *resilience.RateLimiter
	group      singleflight.Group
}

// NewService builds the pricing service and starts its background refresh
// pool. Close must be called on shutdown.
func NewService(ctx context.Context, cfg ServiceConfig, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = observability.NewNoopTracer()
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 30
	}
	if cfg.RefreshRate <= 0 {
		cfg.RefreshRate = 10
	}
	if cfg.RefreshBurst <= 0 {
		cfg.RefreshBurst = 20
	}

	return &Service{
		cfg:        cfg,
		deps:       deps,
		logger:     logger,
		tracer:     tracer,
		cache:      newEntryStore(cfg.MaxEntries, cfg.Windows),
		normalizer: market.NewNormalizer(cfg.MaxSwing, deps.Reporter, deps.Metrics),
		bus:        newSubscriberBus(logger, deps.Metrics),
		pool:       worker.NewPool(ctx, cfg.RefreshWorkers, cfg.RefreshQueueSize, logger),
		limiter:    resilience.NewRateLimiter(cfg.RefreshRate, cfg.RefreshBurst),
	}
}

// Close stops the background refresh pool. In-flight refreshes complete;
// queued ones are dropped.
func (s *Service) Close() {
	s.pool.Close()
}

// GetMarketItemPrice returns the price record for id, or nil when the item
// does not exist or no data can be obtained.
//
// A fresh cache hit returns the cached record as-is. A stale hit returns the
// record with confidence capped at medium and schedules a non-blocking
// background refresh. A miss, or forceRefresh, fetches synchronously.
func (s *Service) GetMarketItemPrice(ctx context.Context, id string, forceRefresh bool) *market.PriceRecord {
	ctx, span := s.tracer.StartSpan(ctx, "pricing.GetMarketItemPrice",
		observability.WithAttributes(attribute.String("item.id", id)),
	)
	defer span.End()

	if id == "" {
		return nil
	}

	if forceRefresh {
		return s.fetchAndCache(ctx, id)
	}

	entry, freshness := s.cache.get(id)
	if freshness == FreshnessMiss {
		if backfilled, f := s.sharedLookup(ctx, id); backfilled != nil {
			entry, freshness = backfilled, f
		}
	}

	s.recordLookup(ctx, freshness)
	span.SetAttributes(attribute.String("cache.freshness", string(freshness)))

	switch freshness {
	case FreshnessFresh:
		return entry.Record
	case FreshnessStale:
		s.scheduleRefresh(id)
		downgraded := entry.Record.Clone()
		if downgraded != nil {
			downgraded.Confidence = downgraded.Confidence.Cap(market.ConfidenceMedium)
		}
		return downgraded
	default:
		return s.fetchAndCache(ctx, id)
	}
}

// ListOptions filter the bulk listing.
type ListOptions struct {
	Category string
	Limit    int
	Trending bool
}

// GetAllMarketItems lists items from the backing store, normalizing and
// caching each row. On query failure it degrades to whatever the cache
// holds for the requested category, capped at low confidence.
func (s *Service) GetAllMarketItems(ctx context.Context, opts ListOptions) []*market.PriceRecord {
	ctx, span := s.tracer.StartSpan(ctx, "pricing.GetAllMarketItems")
	defer span.End()

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	q := store.Query{
		Table:      itemsTable,
		Limit:      limit,
		OrderBy:    "updated_at",
		Descending: true,
	}
	if opts.Category != "" {
		q.Filters = append(q.Filters, store.Filter{Column: "category", Op: store.OpEq, Value: opts.Category})
	}
	if opts.Trending {
		q.OrderBy = "trending_score"
	}

	rows, err := s.deps.Querier.Query(ctx, q)
	if err != nil {
		s.report(ctx, report.SeverityError, "listing market items failed", err, "category", opts.Category)
		span.RecordError(err)
		return s.cachedList(opts.Category, limit)
	}

	now := time.Now()
	records := make([]*market.PriceRecord, 0, len(rows))
	for _, row := range rows {
		rec := s.normalizeAndStore(ctx, row, now)
		if rec != nil {
			records = append(records, rec)
		}
	}

	if len(records) > 0 {
		s.notify(ctx)
	}
	return records
}

// HistoryOptions tune the price history lookup. ItemName feeds the
// loosest match strategy; Category narrows it.
type HistoryOptions struct {
	Days     int
	ItemName string
	Category string
}

// GetPriceHistory returns dated price points for an item, oldest first.
// Three progressively looser match strategies are tried in order, each only
// when the previous one yielded zero rows: exact item id, partial id, then
// a name-token search. An empty slice, never nil, signals no history.
func (s *Service) GetPriceHistory(ctx context.Context, id string, opts HistoryOptions) []market.PricePoint {
	ctx, span := s.tracer.StartSpan(ctx, "pricing.GetPriceHistory",
		observability.WithAttributes(attribute.String("item.id", id)),
	)
	defer span.End()

	days := opts.Days
	if days <= 0 {
		days = s.cfg.HistoryDays
	}
	since := time.Now().AddDate(0, 0, -days)

	strategies := s.historyStrategies(id, opts, since)
	for _, strat := range strategies {
		rows, err := s.deps.Querier.Query(ctx, strat.query)
		if err != nil {
			s.report(ctx, report.SeverityWarning, "price history query failed", err,
				"item_id", id,
				"strategy", strat.name,
			)
			continue
		}
		if len(rows) == 0 {
			continue
		}
		span.SetAttributes(attribute.String("history.strategy", strat.name))
		return historyPoints(rows)
	}

	return []market.PricePoint{}
}

type historyStrategy struct {
	name  string
	query store.Query
}

func (s *Service) historyStrategies(id string, opts HistoryOptions, since time.Time) []historyStrategy {
	base := func() store.Query {
		return store.Query{
			Table:   historyTable,
			Filters: []store.Filter{{Column: "recorded_at", Op: store.OpGte, Value: since}},
			OrderBy: "recorded_at",
			Limit:   defaultHistoryRows,
		}
	}

	var strategies []historyStrategy

	exact := base()
	exact.Filters = append(exact.Filters, store.Filter{Column: "item_id", Op: store.OpEq, Value: id})
	strategies = append(strategies, historyStrategy{name: "exact_id", query: exact})

	partial := base()
	partial.Filters = append(partial.Filters, store.Filter{Column: "item_id", Op: store.OpILike, Value: "%" + id + "%"})
	strategies = append(strategies, historyStrategy{name: "partial_id", query: partial})

	if token := longestNameToken(opts.ItemName); token != "" {
		byName := base()
		byName.Filters = append(byName.Filters, store.Filter{Column: "item_name", Op: store.OpILike, Value: "%" + token + "%"})
		if opts.Category != "" {
			byName.Filters = append(byName.Filters, store.Filter{Column: "category", Op: store.OpEq, Value: opts.Category})
		}
		strategies = append(strategies, historyStrategy{name: "name_token", query: byName})
	}

	return strategies
}

// longestNameToken picks the most selective token from an item name.
// Tokens shorter than three characters match too broadly to be useful.
func longestNameToken(name string) string {
	var longest string
	for _, token := range strings.Fields(name) {
		if len(token) >= 3 && len(token) > len(longest) {
			longest = token
		}
	}
	return longest
}

func historyPoints(rows []store.Row) []market.PricePoint {
	points := make([]market.PricePoint, 0, len(rows))
	for _, row := range rows {
		price, ok := row["price"]
		if !ok || price == nil {
			continue
		}
		var v float64
		switch x := price.(type) {
		case float64:
			v = x
		case float32:
			v = float64(x)
		case int64:
			v = float64(x)
		default:
			continue
		}
		if v <= 0 {
			continue
		}
		at, ok := row["recorded_at"].(time.Time)
		if !ok {
			continue
		}
		points = append(points, market.PricePoint{Date: at, Price: v})
	}
	return points
}

// InvalidateCache drops one cached entry, or all of them when id is empty.
// The shared tier entries are dropped too so other instances do not re-seed
// us; clearing all covers every key this instance currently holds.
func (s *Service) InvalidateCache(ctx context.Context, id string) {
	if id == "" {
		cached := s.cache.snapshot()
		s.cache.clear()
		for key := range cached {
			s.sharedDelete(ctx, key)
		}
	} else {
		s.cache.delete(id)
		s.sharedDelete(ctx, id)
	}
	s.setEntriesGauge(ctx)
}

func (s *Service) sharedDelete(ctx context.Context, id string) {
	if s.deps.Shared == nil {
		return
	}
	if err := s.deps.Shared.Delete(ctx, sharedKey(id)); err != nil {
		s.logger.LogWarn(ctx, "shared cache invalidation failed", "item_id", id, "error", err.Error())
	}
}

// CacheStats reports a diagnostic snapshot of the entry store.
func (s *Service) CacheStats() CacheStats {
	return s.cache.stats()
}

// SubscribeToPriceUpdates registers cb to receive a snapshot of all cached
// records after every successful cache write. Returns the unsubscribe
// function.
func (s *Service) SubscribeToPriceUpdates(cb UpdateFunc) func() {
	return s.bus.subscribe(cb)
}

// Name implements cache.WarmupProvider.
func (s *Service) Name() string { return "pricing" }

// Warmup implements cache.WarmupProvider by pre-populating the cache with
// trending items.
func (s *Service) Warmup(ctx context.Context) error {
	limit := s.cfg.WarmupItemLimit
	if limit <= 0 {
		limit = defaultListLimit
	}

	// An empty store is a valid state, not a warmup failure.
	records := s.GetAllMarketItems(ctx, ListOptions{Limit: limit, Trending: true})
	s.logger.LogInfo(ctx, "pricing cache warmed", "items", len(records))
	return nil
}

// fetchAndCache fetches id from the backing store, normalizes and caches the
// row, and returns the record. Concurrent calls for the same id are
// deduplicated. On failure it falls back to the last cached value at low
// confidence, or nil when nothing was ever cached. Never returns an error.
func (s *Service) fetchAndCache(ctx context.Context, id string) *market.PriceRecord {
	v, _, _ := s.group.Do(id, func() (any, error) {
		return s.fetchAndCacheOnce(ctx, id), nil
	})
	rec, _ := v.(*market.PriceRecord)
	return rec
}

func (s *Service) fetchAndCacheOnce(ctx context.Context, id string) *market.PriceRecord {
	ctx, span := s.tracer.StartSpan(ctx, "pricing.fetchAndCache",
		observability.WithAttributes(attribute.String("item.id", id)),
	)
	defer span.End()

	rows, err := s.deps.Querier.Query(ctx, store.Query{
		Table:   itemsTable,
		Filters: []store.Filter{{Column: "id", Op: store.OpEq, Value: id}},
		Limit:   1,
	})
	if err != nil {
		s.report(ctx, report.SeverityError, "fetching market item price failed", err, "item_id", id)
		span.RecordError(err)
		return s.fallback(id)
	}

	// Absence is a valid terminal state, distinct from an error.
	if len(rows) == 0 {
		return nil
	}

	rec := s.normalizeAndStore(ctx, rows[0], time.Now())
	if rec != nil {
		s.notify(ctx)
	}
	return rec
}

// fallback returns the last-known-good value for id at low confidence.
func (s *Service) fallback(id string) *market.PriceRecord {
	entry := s.cache.peek(id)
	if entry == nil || entry.Record == nil {
		return nil
	}
	rec := entry.Record.Clone()
	rec.Confidence = market.ConfidenceLow
	return rec
}

// normalizeAndStore validates and scores a raw row, then writes the record
// through to the local and shared cache tiers.
func (s *Service) normalizeAndStore(ctx context.Context, row store.Row, now time.Time) *market.PriceRecord {
	var previous *market.PriceRecord
	if prev := s.cache.peek(storeRowID(row)); prev != nil {
		previous = prev.Record
	}

	rec := s.normalizer.Record(ctx, row, previous, now)
	if rec == nil || rec.ID == "" {
		return nil
	}

	entry := s.cache.set(rec.ID, rec)
	s.sharedStore(ctx, rec.ID, entry)
	s.setEntriesGauge(ctx)

	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordConfidence(ctx, string(rec.Confidence))
	}
	return rec
}

func storeRowID(row store.Row) string {
	if v, ok := row["id"].(string); ok {
		return v
	}
	return ""
}

// scheduleRefresh submits a background refresh for id. The caller never
// blocks: when the rate limiter or the queue rejects the task, the refresh
// is dropped and the next stale read will try again.
func (s *Service) scheduleRefresh(id string) {
	if !s.limiter.Allow() {
		s.refreshDropped(id, "rate_limited")
		return
	}

	submitted := s.pool.TrySubmit(worker.Task{
		Name: "refresh:" + id,
		Run: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
			defer cancel()

			start := time.Now()
			rec := s.fetchAndCache(ctx, id)

			status := "success"
			if rec == nil {
				status = "empty"
			}
			if s.deps.Metrics != nil {
				s.deps.Metrics.RecordRefresh(ctx, "background", status, time.Since(start))
			}
			return nil
		},
	})
	if !submitted {
		s.refreshDropped(id, "queue_full")
	}
}

func (s *Service) refreshDropped(id, reason string) {
	s.logger.Debug("background refresh dropped", "item_id", id, "reason", reason)
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordRefreshDropped(context.Background())
	}
}

// sharedLookup backfills the local store from the shared cache tier.
func (s *Service) sharedLookup(ctx context.Context, id string) (*Entry, Freshness) {
	if s.deps.Shared == nil {
		return nil, FreshnessMiss
	}

	data, err := s.deps.Shared.Get(ctx, sharedKey(id))
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			s.logger.LogWarn(ctx, "shared cache read failed", "item_id", id, "error", err.Error())
		}
		return nil, FreshnessMiss
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.report(ctx, report.SeverityWarning, "shared cache entry corrupt", err, "item_id", id)
		return nil, FreshnessMiss
	}
	if entry.Record == nil {
		return nil, FreshnessMiss
	}

	age := time.Since(entry.CachedAt)
	if age > s.cfg.Windows.Stale {
		return nil, FreshnessMiss
	}

	s.cache.setEntry(id, &entry)
	s.setEntriesGauge(ctx)

	if age <= s.cfg.Windows.Fresh {
		return &entry, FreshnessFresh
	}
	return &entry, FreshnessStale
}

// sharedStore writes an entry through to the shared cache tier.
func (s *Service) sharedStore(ctx context.Context, id string, entry *Entry) {
	if s.deps.Shared == nil {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		s.logger.LogWarn(ctx, "encoding shared cache entry failed", "item_id", id, "error", err.Error())
		return
	}

	ttl := s.cfg.SharedTTL
	if ttl <= 0 {
		ttl = s.cfg.Windows.MaxAge
	}
	if err := s.deps.Shared.Set(ctx, sharedKey(id), data, ttl); err != nil {
		s.logger.LogWarn(ctx, "shared cache write failed", "item_id", id, "error", err.Error())
	}
}

func sharedKey(id string) string {
	return fmt.Sprintf("pricing:item:%s", id)
}

func (s *Service) cachedList(category string, limit int) []*market.PriceRecord {
	records := make([]*market.PriceRecord, 0, limit)
	for _, rec := range s.cache.snapshot() {
		if category != "" && rec.Category != category {
			continue
		}
		degraded := rec.Clone()
		degraded.Confidence = market.ConfidenceLow
		records = append(records, degraded)
		if len(records) >= limit {
			break
		}
	}
	return records
}

func (s *Service) notify(ctx context.Context) {
	s.bus.notify(ctx, s.cache.snapshot())
}

func (s *Service) report(ctx context.Context, severity report.Severity, msg string, err error, fields ...any) {
	if s.deps.Reporter == nil {
		return
	}
	s.deps.Reporter.Report(ctx, report.CategoryPricing, severity, msg, err, fields...)
}

func (s *Service) recordLookup(ctx context.Context, freshness Freshness) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordCacheLookup(ctx, string(freshness))
	}
}

func (s *Service) setEntriesGauge(ctx context.Context) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.SetCacheEntries(ctx, int64(s.cache.len()))
	}
}
