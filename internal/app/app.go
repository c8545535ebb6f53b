// Package app assembles the saga participants from configuration and
// supervises their HTTP servers and consumer loops.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/config"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/consumer"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/httpapi"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/inventory"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/payment"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const readHeaderTimeout = 10 * time.Second

// Role selects which saga participants a process runs.
type Role string

const (
	RoleInventory  Role = "inventory"
	RolePayment    Role = "payment"
	RoleStandalone Role = "standalone"
)

func (r Role) runsInventory() bool { return r == RoleInventory || r == RoleStandalone }
func (r Role) runsPayment() bool   { return r == RolePayment || r == RoleStandalone }

// Application holds all the components and manages the application lifecycle
type Application struct {
	role      Role
	container *Container
	mux       *http.ServeMux
	server    *http.Server
	loops     []*consumer.Loop
	completer *payment.Completer
}

// NewApplication creates and fully initializes a new Application instance
func NewApplication(ctx context.Context, cfg *config.Config, role Role) (*Application, error) {
	if !role.runsInventory() && !role.runsPayment() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	container, err := NewContainer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &Application{
		role:      role,
		container: container,
		mux:       http.NewServeMux(),
	}
	if err := app.wire(ctx); err != nil {
		container.Shutdown(context.Background())
		return nil, err
	}

	app.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	container.Logger().Info("Application initialized successfully", zap.String("role", string(role)))
	return app, nil
}

func (app *Application) wire(ctx context.Context) error {
	c := app.container
	cfg := c.Config()

	var invSvc *inventory.Service

	if app.role.runsInventory() {
		invSvc = inventory.NewService(c.ProductStore(), c.Logger(), c.Tracer())
		inventory.NewAPI(invSvc, c.Logger()).Register(app.mux)

		reservation := inventory.NewReservationHandler(c.ProductStore(), c.Events(), c.Logger(), c.Tracer())
		if err := app.addLoop(ctx, config.OrderPlacedTopic, config.InventoryGroup, config.InventoryConsumer, reservation); err != nil {
			return err
		}
	}

	if app.role.runsPayment() {
		var client payment.InventoryClient
		if invSvc != nil {
			client = payment.NewLocalInventoryClient(invSvc)
		} else {
			client = payment.NewHTTPInventoryClient(cfg.InventoryServiceURL, cfg.InventoryTimeout)
		}

		app.completer = payment.NewCompleter(c.OrderStore(), cfg.PaymentCompletionDelay, c.Logger(), c.Tracer())
		svc := payment.NewService(c.OrderStore(), client, c.Events(), app.completer, c.Logger(), c.Tracer(),
			payment.WithLegacyStockWrite(cfg.LegacyStockWrite),
		)
		payment.NewAPI(svc, c.Logger()).Register(app.mux)

		compensation := payment.NewCompensationHandler(c.OrderStore(), app.completer, c.Logger(), c.Tracer())
		if err := app.addLoop(ctx, config.RefundRequestedTopic, config.PaymentGroup, config.PaymentConsumer, compensation); err != nil {
			return err
		}
	}

	health := string(RoleStandalone)
	switch app.role {
	case RoleInventory:
		health = inventory.HealthName
	case RolePayment:
		health = payment.HealthName
	}
	app.mux.Handle("GET /health", httpapi.Health(health))
	return nil
}

// addLoop builds the consumer of topic and creates its group up front, so
// events published before the loop first runs are still delivered.
func (app *Application) addLoop(ctx context.Context, topic, group, name string, handler consumer.Handler) error {
	c := app.container
	cfg := c.Config()
	if err := c.Events().EnsureGroup(ctx, topic, group); err != nil {
		c.Logger().Warn("Failed to create consumer group, the loop will retry",
			zap.String("topic", topic), zap.String("group", group), zap.Error(err))
	}
	loop, err := consumer.New(c.Events(), handler, consumer.Config{
		Topic:        topic,
		Group:        group,
		Consumer:     name,
		BlockTimeout: cfg.ConsumerBlockTimeout,
		Backoff:      cfg.ConsumerBackoff,
		MaxBackoff:   cfg.ConsumerMaxBackoff,
		RetryDelay:   cfg.ConsumerRetryDelay,
		ReclaimIdle:  cfg.ConsumerReclaimIdle,
	}, c.Logger(), c.Tracer(), c.Meter())
	if err != nil {
		return fmt.Errorf("consumer %s/%s: %w", topic, group, err)
	}
	app.loops = append(app.loops, loop)
	return nil
}

// Handler returns the instrumented HTTP handler of every registered route.
func (app *Application) Handler() http.Handler {
	cfg := app.container.Config()
	return httpapi.Wrap(cfg.ServiceName, app.container.Logger(), cfg.AllowedOrigins, app.mux)
}

// Run serves HTTP and runs the consumer loops until ctx is cancelled or one
// of them fails, in which case the others are stopped too. Pending payment
// completions are disarmed before Run returns.
func (app *Application) Run(ctx context.Context) error {
	logger := app.container.Logger()
	cfg := app.container.Config()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpapi.Serve(gctx, app.server, logger, cfg.ShutdownTimeout)
	})
	for _, loop := range app.loops {
		g.Go(func() error {
			return loop.Run(gctx)
		})
	}

	err := g.Wait()
	if app.completer != nil {
		app.completer.Stop()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application stopped with error", zap.Error(err))
		return err
	}
	logger.Info("Application stopped")
	return nil
}

// Shutdown releases the infrastructure. Call it after Run returns.
func (app *Application) Shutdown(ctx context.Context) {
	app.container.Logger().Info("Starting application shutdown...")
	if app.completer != nil {
		app.completer.Stop()
	}
	app.container.Shutdown(ctx)
}
