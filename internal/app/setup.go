// Package app wires the cart service together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nikolayk812/cartstore/internal/bootstrap"
	"github.com/nikolayk812/cartstore/internal/cart"
	"github.com/nikolayk812/cartstore/internal/catalog"
	"github.com/nikolayk812/cartstore/internal/config"
	"github.com/nikolayk812/cartstore/internal/domain"
	"github.com/nikolayk812/cartstore/internal/notify"
	"github.com/nikolayk812/cartstore/internal/port"
	"github.com/nikolayk812/cartstore/internal/repository"
	"github.com/nikolayk812/cartstore/internal/transport/rest"
	"github.com/nikolayk812/cartstore/internal/web"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Dependencies struct {
	Store  *cart.Store
	Logger *slog.Logger

	closers []func()
}

// Close releases connections in reverse order of acquisition.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// SetupDependencies connects to storage and NATS, then hydrates the cart.
func SetupDependencies(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *Dependencies, err error) {
	deps := &Dependencies{Logger: logger}
	defer func() {
		if err != nil {
			deps.Close()
		}
	}()

	repo, err := deps.setupRepository(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	notifier, err := deps.setupNotifier(cfg.NATS)
	if err != nil {
		return nil, err
	}

	unit, err := cfg.Catalog.CurrencyUnit()
	if err != nil {
		return nil, err
	}
	catalogClient, err := catalog.NewClient(catalog.Config{
		BaseURL:  cfg.Catalog.URL,
		Timeout:  cfg.Catalog.Timeout,
		Currency: unit,
		CircuitBreaker: catalog.CircuitBreakerConfig{
			ConsecutiveFailures: cfg.Catalog.CircuitBreaker.ConsecutiveFailures,
			ErrorRatePercent:    cfg.Catalog.CircuitBreaker.ErrorRatePercent,
			OpenTimeout:         cfg.Catalog.CircuitBreaker.OpenTimeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("catalog.NewClient: %w", err)
	}

	store, err := cart.New(ctx, cfg.Storage.Key, repo, catalogClient, notifier, logger)
	if err != nil {
		return nil, fmt.Errorf("cart.New: %w", err)
	}
	store.Subscribe(func(c domain.Cart) {
		logger.Debug("Cart changed", "products", c.Len())
	})
	deps.Store = store

	return deps, nil
}

func (d *Dependencies) setupRepository(ctx context.Context, cfg config.StorageConfig) (port.SnapshotRepository, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		d.Logger.Warn("Using in-memory storage, the cart is lost on restart")
		return repository.NewMemory(), nil

	case config.DriverRedis:
		client, err := bootstrap.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() { _ = client.Close() })
		d.Logger.Info("Successfully connected to redis!")
		return repository.NewRedis(client), nil

	case config.DriverPostgres:
		pool, err := bootstrap.NewDbPool(ctx, cfg.Postgres.URL, cfg.Postgres.Timeout)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, pool.Close)
		d.Logger.Info("Successfully connected to the database!")

		if err := bootstrap.Migrate(cfg.Postgres.URL, cfg.Postgres.Timeout); err != nil {
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		return repository.NewPostgres(pool), nil

	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
	}
}

func (d *Dependencies) setupNotifier(cfg config.NATSConfig) (port.Notifier, error) {
	logNotifier := notify.NewLogNotifier(d.Logger)
	if !cfg.Enabled() {
		return logNotifier, nil
	}

	nc, err := notify.NewConn(cfg.URL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, func() {
		if err := nc.Drain(); err != nil && !errors.Is(err, context.Canceled) {
			d.Logger.Warn("Failed to drain NATS connection", "error", err)
		}
	})

	js, err := notify.NewJetStream(nc)
	if err != nil {
		return nil, err
	}
	d.Logger.Info("Successfully connected to NATS!", "subject", cfg.Subject)

	return notify.Fanout(logNotifier, notify.NewNATSNotifier(js, cfg.Subject, d.Logger)), nil
}

// SetupHttpHandler builds the router with middleware and cart routes.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := web.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return otelhttp.NewHandler(mux, "cartd")
}

func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	rest.NewHandler(deps.Store, deps.Logger).RegisterRoutes(mux)
}

func SetupHttpServer(deps *Dependencies, cfg config.ServerConfig) *http.Server {
	return web.NewHTTPServer(web.HTTPConfig{
		Port:           cfg.Port,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
		ReadTimeout:    cfg.Timeout.Read,
		WriteTimeout:   cfg.Timeout.Write,
		IdleTimeout:    cfg.Timeout.Idle,
		ReadHeader:     cfg.Timeout.ReadHeader,
	}, SetupHttpHandler(deps))
}
