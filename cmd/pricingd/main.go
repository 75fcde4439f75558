package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Cardboom/cardboomtest-sub005/internal/market"
	"github.com/Cardboom/cardboomtest-sub005/internal/notification"
	"github.com/Cardboom/cardboomtest-sub005/internal/platform/aws"
	"github.com/Cardboom/cardboomtest-sub005/internal/platform/cache"
	"github.com/Cardboom/cardboomtest-sub005/internal/platform/config"
	"github.com/Cardboom/cardboomtest-sub005/internal/platform/observability"
	"github.com/Cardboom/cardboomtest-sub005/internal/platform/worker"
	"github.com/Cardboom/cardboomtest-sub005/internal/pricing"
	"github.com/Cardboom/cardboomtest-sub005/internal/report"
	"github.com/Cardboom/cardboomtest-sub005/internal/server"
	"github.com/Cardboom/cardboomtest-sub005/internal/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Println("Loading configuration...")
	cfg := config.MustLoad(os.Getenv("CONFIG_PATH"))

	// Observability comes first; everything else depends on it.
	logger := observability.NewLogger(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	metrics, err := observability.NewMetrics("pricingd", cfg.Observability.Metrics.Enabled)
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	tracerProvider, err := observability.NewTracerProvider(ctx, "pricingd", cfg.Observability.Tracing.Endpoint, cfg.Observability.Tracing.Enabled)
	if err != nil {
		log.Fatalf("Failed to create tracer: %v", err)
	}
	defer tracerProvider.Shutdown(context.Background())
	tracer := observability.NewTracer("pricingd")

	reporter := report.NewReporter(logger, metrics, 0)
	logger.Info("observability setup complete")

	// Backing row store.
	logger.Info("connecting to database...")
	pgStore, err := store.NewPostgresStore(ctx, store.PostgresConfig{
		URL:          cfg.Database.URL,
		MaxConns:     cfg.Database.MaxConns,
		QueryTimeout: cfg.Database.QueryTimeout,
	}, logger, metrics)
	if err != nil {
		logger.LogError(ctx, "failed to connect to database", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pgStore.Close()

	// Optional shared cache tier.
	var shared cache.Cache
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.LogError(ctx, "failed to connect to Redis", err)
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisCache.Close()
		shared = redisCache
		logger.Info("shared cache tier enabled", "address", cfg.Redis.Address)
	}

	// Pricing service.
	svc := pricing.NewService(ctx, pricing.ServiceConfig{
		Windows: pricing.Windows{
			Fresh:  cfg.Cache.FreshWindow,
			Stale:  cfg.Cache.StaleWindow,
			MaxAge: cfg.Cache.MaxAge,
		},
		MaxEntries:       cfg.Cache.MaxEntries,
		MaxSwing:         cfg.Pricing.MaxSwing,
		HistoryDays:      cfg.Pricing.HistoryDays,
		RefreshWorkers:   cfg.Refresh.Workers,
		RefreshQueueSize: cfg.Refresh.QueueSize,
		RefreshRate:      cfg.Refresh.RatePerSecond,
		RefreshBurst:     cfg.Refresh.Burst,
		SharedTTL:        cfg.Redis.TTL,
		WarmupItemLimit:  cfg.Warmup.ItemLimit,
	}, pricing.Deps{
		Querier:  pgStore,
		Shared:   shared,
		Reporter: reporter,
		Logger:   logger,
		Metrics:  metrics,
		Tracer:   tracer,
	})
	defer svc.Close()

	// Price update fan-out.
	var publisher notification.Publisher
	if cfg.AWS.SNSTopicARN != "" {
		awsCfg, err := aws.LoadAWSConfig(ctx, aws.Config{Region: cfg.AWS.Region})
		if err != nil {
			logger.LogError(ctx, "failed to load AWS config", err)
			log.Fatalf("Failed to load AWS config: %v", err)
		}

		snsClient := aws.NewSNSClient(aws.SNSClientConfig{
			AWSConfig: awsCfg,
			Logger:    logger,
			Metrics:   metrics,
		})
		publisher, err = notification.NewSNSPublisher(notification.SNSPublisherConfig{
			SNSClient: snsClient,
			TopicARN:  cfg.AWS.SNSTopicARN,
			Logger:    logger,
			Tracer:    tracer,
		})
		if err != nil {
			log.Fatalf("Failed to create SNS publisher: %v", err)
		}
		logger.Info("SNS price update publishing enabled", "topic_arn", cfg.AWS.SNSTopicARN)
	} else {
		publisher = notification.NewNoOpPublisher(logger)
	}

	publishPool := worker.NewPool(ctx, 1, 64, logger)
	defer publishPool.Close()
	bridge := notification.NewBridge(publisher, publishPool, logger)
	unsubscribe := svc.SubscribeToPriceUpdates(func(snapshot map[string]*market.PriceRecord) {
		bridge.OnSnapshot(snapshot)
	})
	defer unsubscribe()

	// Warm the cache before taking traffic.
	if cfg.Warmup.Enabled {
		warmer := cache.NewWarmer(logger, cache.WarmupConfig{
			Timeout:  cfg.Warmup.Timeout,
			Parallel: true,
		})
		warmer.RegisterProvider(svc)
		if results := warmer.Warmup(ctx); results.HasErrors() {
			logger.Warn("cache warmup completed with errors")
		}
	}

	// HTTP API.
	srv := server.New(server.Config{Port: cfg.HTTP.Port}, server.Deps{
		Pricing:  svc,
		Reporter: reporter,
		Health:   pgStore,
		Logger:   logger,
		Metrics:  metrics,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received, gracefully stopping...", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.LogError(ctx, "HTTP server error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.LogError(shutdownCtx, "HTTP shutdown error", err)
	}

	logger.Info("application stopped")
}
