package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-sync/internal/engine"
	"github.com/sells-group/lead-sync/internal/gateway"
	"github.com/sells-group/lead-sync/internal/resilience"
	"github.com/sells-group/lead-sync/internal/store"
	"github.com/sells-group/lead-sync/pkg/attio"
	"github.com/sells-group/lead-sync/pkg/clay"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadsync.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEngine wires the gateways, resilience policies, and run log into a
// ready reconciliation engine.
func initEngine(st store.Store) (*engine.Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	retryPolicy := resilience.FromConfig(
		cfg.Retry.MaxAttempts,
		cfg.Retry.InitialBackoffMs,
		cfg.Retry.MaxBackoffMs,
		cfg.Retry.Multiplier,
		cfg.Retry.JitterFraction,
	)

	attioClient := attio.NewClient(cfg.Attio.APIKey,
		attio.WithBaseURL(cfg.Attio.BaseURL),
		attio.WithRetryPolicy(retryPolicy),
	)
	clayClient := clay.NewClient(cfg.Clay.APIKey,
		clay.WithBaseURL(cfg.Clay.BaseURL),
		clay.WithRetryPolicy(retryPolicy),
	)

	mapping := attio.DefaultMapping()
	if cfg.Attio.MappingPath != "" {
		m, err := attio.LoadMapping(cfg.Attio.MappingPath)
		if err != nil {
			return nil, err
		}
		mapping = m
	}

	crm := gateway.NewAttioCRM(attioClient, mapping)
	enricher := gateway.NewClayEnricher(clayClient, cfg.Clay.TableID)

	breaker := resilience.NewBreaker(resilience.BreakerFromConfig(
		cfg.Circuit.FailureThreshold,
		cfg.Circuit.ResetTimeoutSecs,
	))

	params := engine.Params{
		BatchSize:       cfg.Sync.BatchSize,
		RateLimit:       time.Duration(cfg.Sync.RateLimitSeconds * float64(time.Second)),
		Timeout:         time.Duration(cfg.Sync.TimeoutHours * float64(time.Hour)),
		PollConcurrency: cfg.Sync.PollConcurrency,
	}

	zap.L().Info("engine configured",
		zap.Int("batch_size", params.BatchSize),
		zap.Duration("timeout", params.Timeout),
		zap.String("store_driver", cfg.Store.Driver),
	)

	return engine.New(crm, enricher, params,
		engine.WithRunLog(st),
		engine.WithBreaker(breaker),
	), nil
}
