package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"readiness/internal/cache"
	"readiness/internal/config"
	"readiness/internal/lock"
	"readiness/internal/logging"
	"readiness/internal/metrics"
	"readiness/internal/service"
	"readiness/internal/store"
)

// app holds the collaborators built for one command invocation.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *store.Store
	registry *prometheus.Registry
	svc      *service.ReadinessService
	closers  []func() error
}

// newApp loads configuration and wires the service.
func newApp(ctx context.Context, configPath, logLevel string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}

	a.store, err = store.Open(cfg.Store.Backend, cfg.Store.DSN)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("opening database: %w", err), a.close())
	}
	a.closers = append(a.closers, a.store.Close)

	c, closeCache, err := cache.New(ctx, cfg.Cache.Backend, cache.RedisOptions{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("creating cache: %w", err), a.close())
	}
	a.closers = append(a.closers, closeCache)

	locker, err := newLocker(ctx, cfg.Lock)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("creating lock: %w", err), a.close())
	}

	a.svc, err = service.NewReadinessService(a.store,
		service.WithCache(c),
		service.WithCacheTTL(cfg.Cache.TTL),
		service.WithLocker(locker),
		service.WithLogger(log),
		service.WithMetrics(metrics.NewManager(
			metrics.WithNamespace(cfg.Metrics.Namespace),
			metrics.WithHistogramBuckets(cfg.Metrics.Buckets),
			metrics.WithRegistry(a.registry),
		)),
		service.WithParams(cfg.Model),
	)
	if err != nil {
		return nil, errors.Join(err, a.close())
	}
	return a, nil
}

func newLocker(ctx context.Context, cfg config.LockConfig) (lock.Locker, error) {
	switch cfg.Backend {
	case config.LockRedis:
		return lock.NewRedlock(ctx, cfg.Addrs, cfg.TTL)
	case config.LockLocal:
		return lock.NewLocal(), nil
	default:
		return lock.Noop{}, nil
	}
}

// close writes the metrics textfile and releases backends in reverse order.
func (a *app) close() error {
	var errs []error
	if a.cfg.Metrics.Textfile != "" && a.svc != nil {
		if err := prometheus.WriteToTextfile(a.cfg.Metrics.Textfile, a.registry); err != nil {
			errs = append(errs, fmt.Errorf("writing metrics textfile: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	_ = a.log.Sync()
	return errors.Join(errs...)
}
