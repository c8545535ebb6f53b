package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/config"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/platform/kafka"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/platform/observability"
	platformredis "github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/platform/redis"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/platform/stream"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage/memory"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage/postgres"
	redisstore "github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage/redis"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage/sqlite"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Container holds expensive-to-create singleton resources and dependencies
type Container struct {
	config *config.Config
	logger *zap.Logger
	tracer observability.Tracer
	meter  metric.Meter

	events   stream.Stream
	products storage.ProductStore
	orders   storage.OrderStore

	redisClient *goredis.Client
	closers     []func() error

	otelLogShutdown    func(context.Context) error
	otelTraceShutdown  func(context.Context) error
	otelMetricShutdown func(context.Context) error
}

// NewContainer initializes telemetry, the event stream and the record stores
// selected by cfg.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	c := &Container{config: cfg}

	// Bootstrap logger until the OTel bridge is available
	c.logger = zap.NewNop()
	if bootstrap, err := zap.NewProduction(); err == nil {
		c.logger = bootstrap
	}

	tp := c.setupObservability(ctx)

	if err := c.setupStream(ctx, tp); err != nil {
		c.Shutdown(context.Background())
		return nil, fmt.Errorf("setup %s stream: %w", cfg.StreamBackend, err)
	}
	if err := c.setupStores(ctx); err != nil {
		c.Shutdown(context.Background())
		return nil, fmt.Errorf("setup %s store: %w", cfg.StoreBackend, err)
	}

	c.logger.Info("Infrastructure ready",
		zap.String("stream_backend", cfg.StreamBackend),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Bool("otel_export", observability.Enabled(cfg)),
	)
	return c, nil
}

// setupObservability configures OpenTelemetry logging, tracing and metrics.
// Export failures are logged and the process carries on without export.
func (c *Container) setupObservability(ctx context.Context) trace.TracerProvider {
	otelLogShutdown, err := observability.SetupLoggingSDK(ctx, c.config)
	if err != nil {
		c.logger.Error("Failed to setup OpenTelemetry logging", zap.Error(err))
	}
	c.otelLogShutdown = otelLogShutdown

	tp, otelTraceShutdown, err := observability.SetupTracingSDK(ctx, c.config)
	if err != nil {
		c.logger.Error("Failed to setup OpenTelemetry tracing", zap.Error(err))
	}
	c.otelTraceShutdown = otelTraceShutdown

	otelMetricShutdown, err := observability.SetupMetricsSDK(ctx, c.config)
	if err != nil {
		c.logger.Error("Failed to setup OpenTelemetry metrics", zap.Error(err))
	}
	c.otelMetricShutdown = otelMetricShutdown

	// Re-initialize logger with OTel bridge
	c.logger = observability.NewLogger(c.config.ServiceName, c.config.LogLevel)
	c.tracer = otel.Tracer(c.config.ServiceName)
	c.meter = otel.Meter(c.config.ServiceName)

	if tp == nil {
		return otel.GetTracerProvider()
	}
	return tp
}

func (c *Container) redis(ctx context.Context) (*goredis.Client, error) {
	if c.redisClient != nil {
		return c.redisClient, nil
	}
	client, err := platformredis.NewClient(ctx, c.config)
	if err != nil {
		return nil, err
	}
	c.redisClient = client
	c.closers = append(c.closers, client.Close)
	return client, nil
}

func (c *Container) setupStream(ctx context.Context, tp trace.TracerProvider) error {
	switch c.config.StreamBackend {
	case config.BackendMemory:
		c.events = stream.NewMemory()
	case config.BackendRedis:
		client, err := c.redis(ctx)
		if err != nil {
			return err
		}
		c.events = platformredis.NewStream(client)
	case config.BackendKafka:
		writer, err := kafka.NewWriter(c.config, tp)
		if err != nil {
			return err
		}
		s := kafka.NewStream(writer, kafka.NewReaderFactory(c.config))
		c.closers = append(c.closers, s.Close)
		c.events = s
	default:
		return fmt.Errorf("unsupported stream backend %q", c.config.StreamBackend)
	}
	return nil
}

func (c *Container) setupStores(ctx context.Context) error {
	switch c.config.StoreBackend {
	case config.BackendMemory:
		c.products = memory.NewProductStore()
		c.orders = memory.NewOrderStore()
	case config.BackendRedis:
		client, err := c.redis(ctx)
		if err != nil {
			return err
		}
		c.products = redisstore.NewProductStore(client)
		c.orders = redisstore.NewOrderStore(client)
	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, c.config.SQLitePath)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, db.Close)
		c.products = db.Products()
		c.orders = db.Orders()
	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, c.config.PostgresURL)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, func() error { pool.Close(); return nil })
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		c.products = postgres.NewProductStore(pool)
		c.orders = postgres.NewOrderStore(pool)
	default:
		return fmt.Errorf("unsupported store backend %q", c.config.StoreBackend)
	}
	return nil
}

// Shutdown gracefully shuts down all infrastructure components
func (c *Container) Shutdown(ctx context.Context) {
	c.logger.Info("Shutting down infrastructure...")

	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.logger.Error("Failed to close resource", zap.Error(err))
		}
	}
	c.closers = nil

	shutdown := observability.JoinShutdown(c.otelMetricShutdown, c.otelTraceShutdown, c.otelLogShutdown)
	if err := shutdown(ctx); err != nil {
		c.logger.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
	}

	c.logger.Info("Infrastructure shutdown complete")
	_ = c.logger.Sync()
}

// Getters for accessing infrastructure components
func (c *Container) Config() *config.Config             { return c.config }
func (c *Container) Logger() observability.Logger       { return c.logger }
func (c *Container) Tracer() observability.Tracer       { return c.tracer }
func (c *Container) Meter() metric.Meter                { return c.meter }
func (c *Container) Events() stream.Stream              { return c.events }
func (c *Container) ProductStore() storage.ProductStore { return c.products }
func (c *Container) OrderStore() storage.OrderStore     { return c.orders }
