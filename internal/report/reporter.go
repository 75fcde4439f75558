// Package report is the error-reporting side channel for the pricing core.
// Every failure the core swallows at its public boundary lands here instead:
// categorized, logged, counted, and retained in a small ring for diagnostics.
package report

import (
	"context"
	"sync"
	"time"

	"github.com/Cardboom/cardboomtest-sub005/internal/platform/observability"
)

// Category classifies the subsystem a report originates from.
type Category string

const (
	CategoryPricing    Category = "pricing"
	CategoryImage      Category = "image"
	CategoryAPI        Category = "api"
	CategoryValidation Category = "validation"
	CategoryNetwork    Category = "network"
	CategoryAuth       Category = "auth"
	CategoryDatabase   Category = "database"
	CategoryUnknown    Category = "unknown"
)

// Severity is the weight of a report.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Entry is a single recorded report.
type Entry struct {
	Category Category  `json:"category"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	Error    string    `json:"error,omitempty"`
	Time     time.Time `json:"time"`
}

const defaultRingSize = 256

// Reporter fans reports out to the logger, the error counter, and an
// in-memory ring of recent entries. The zero value is not usable; construct
// with NewReporter. Logger and metrics may be nil.
type Reporter struct {
	logger  *observability.Logger
	metrics *observability.Metrics

	mu   sync.Mutex
	ring []Entry
	next int
	full bool

	now func() time.Time
}

// NewReporter creates a Reporter retaining ringSize recent entries
// (defaultRingSize when <= 0).
func NewReporter(logger *observability.Logger, metrics *observability.Metrics, ringSize int) *Reporter {
	if ringSize <= 0 {
		ringSize = defaultRingSize
	}
	return &Reporter{
		logger:  logger,
		metrics: metrics,
		ring:    make([]Entry, ringSize),
		now:     time.Now,
	}
}

// Report records a single entry. err may be nil.
func (r *Reporter) Report(ctx context.Context, category Category, severity Severity, msg string, err error, fields ...any) {
	entry := Entry{
		Category: category,
		Severity: severity,
		Message:  msg,
		Time:     r.now(),
	}
	if err != nil {
		entry.Error = err.Error()
	}

	r.mu.Lock()
	r.ring[r.next] = entry
	r.next++
	if r.next == len(r.ring) {
		r.next = 0
		r.full = true
	}
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordError(ctx, string(category), string(severity))
	}

	if r.logger == nil {
		return
	}
	fields = append(fields, "category", string(category))
	switch severity {
	case SeverityError:
		r.logger.LogError(ctx, msg, err, fields...)
	case SeverityWarning:
		if err != nil {
			fields = append(fields, "error", err.Error())
		}
		r.logger.LogWarn(ctx, msg, fields...)
	default:
		r.logger.LogInfo(ctx, msg, fields...)
	}
}

// Error records an error-severity entry.
func (r *Reporter) Error(ctx context.Context, category Category, msg string, err error, fields ...any) {
	r.Report(ctx, category, SeverityError, msg, err, fields...)
}

// Warn records a warning-severity entry.
func (r *Reporter) Warn(ctx context.Context, category Category, msg string, err error, fields ...any) {
	r.Report(ctx, category, SeverityWarning, msg, err, fields...)
}

// Info records an info-severity entry.
func (r *Reporter) Info(ctx context.Context, category Category, msg string, fields ...any) {
	r.Report(ctx, category, SeverityInfo, msg, nil, fields...)
}

// Recent returns up to limit entries, newest first. limit <= 0 returns all
// retained entries.
func (r *Reporter) Recent(limit int) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.next
	if r.full {
		size = len(r.ring)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]Entry, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (r.next - 1 - i + len(r.ring)) % len(r.ring)
		out = append(out, r.ring[idx])
	}
	return out
}

// CountBy returns the number of retained entries in the given category.
func (r *Reporter) CountBy(category Category) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.next
	if r.full {
		size = len(r.ring)
	}

	n := 0
	for i := 0; i < size; i++ {
		if r.ring[i].Category == category {
			n++
		}
	}
	return n
}
