package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Cardboom/cardboomtest-sub005/internal/platform/observability"
	"github.com/Cardboom/cardboomtest-sub005/internal/platform/resilience"
)

// PostgresStore implements Querier on top of a pgx connection pool, with
// retry and a circuit breaker around every query.
type PostgresStore struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
	breaker      *resilience.CircuitBreaker
	retryConfig  resilience.RetryConfig
	logger       *observability.Logger
	metrics      *observability.Metrics
	health       *healthTracker
}

// PostgresConfig configures the pool.
type PostgresConfig struct {
	URL          string
	MaxConns     int32
	QueryTimeout time.Duration
}

// NewPostgresStore connects to Postgres and verifies the connection.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig, logger *observability.Logger, metrics *observability.Metrics) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	queryTimeout := cfg.QueryTimeout
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}

	if logger == nil {
		logger = observability.NewNopLogger()
	}

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "postgres",
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          15 * time.Second,
		OnStateChange: func(from, to resilience.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", "postgres",
				"from", from.String(),
				"to", to.String(),
			)
			if metrics != nil {
				metrics.SetCircuitBreakerState(context.Background(), "postgres", int64(to))
			}
		},
	})

	return &PostgresStore{
		pool:         pool,
		queryTimeout: queryTimeout,
		breaker:      breaker,
		retryConfig:  resilience.DefaultRetryConfig(),
		logger:       logger,
		metrics:      metrics,
		health:       newHealthTracker("postgres"),
	}, nil
}

// Query executes q and returns the result set as loosely typed rows.
func (s *PostgresStore) Query(ctx context.Context, q Query) ([]Row, error) {
	sql, args, err := q.SQL()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := resilience.ExecuteWithResult(s.breaker, ctx, func(ctx context.Context) ([]Row, error) {
		return resilience.RetryIfWithResult(ctx, s.retryConfig, resilience.IsRetryable, func(ctx context.Context) ([]Row, error) {
			return s.queryOnce(ctx, sql, args)
		})
	})

	elapsed := time.Since(start)
	status := "success"
	if err != nil {
		status = "error"
		s.health.recordFailure(elapsed, err)
	} else {
		s.health.recordSuccess(elapsed)
	}
	if s.metrics != nil {
		s.metrics.RecordQuery(ctx, q.Table, status, elapsed)
	}

	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.Table, err)
	}
	return rows, nil
}

// Health returns the current health status of the store.
func (s *PostgresStore) Health() Health {
	h := s.health.snapshot()
	h.CircuitState = s.breaker.State().String()
	return h
}

func (s *PostgresStore) queryOnce(ctx context.Context, sql string, args []any) ([]Row, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rs, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	fields := rs.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	var out []Row
	for rs.Next() {
		vals, err := rs.Values()
		if err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rs.Err()
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// BreakerState reports the current circuit breaker state.
func (s *PostgresStore) BreakerState() resilience.State {
	return s.breaker.State()
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
