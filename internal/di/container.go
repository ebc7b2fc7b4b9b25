package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/suitline/fulfillment/internal/commerce"
	"github.com/suitline/fulfillment/internal/platform/config"
	"github.com/suitline/fulfillment/internal/platform/observability"
	"github.com/suitline/fulfillment/internal/repositories"
	"github.com/suitline/fulfillment/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Orders    services.OrderAssembler
	Discounts services.DiscountService
	System    services.SystemService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services

	closers []func(context.Context) error
}

// Option supplies infrastructure built outside the container.
type Option func(*containerOptions)

type containerOptions struct {
	catalog   commerce.Client
	publisher services.OrderEventPublisher
	checks    []repositories.DependencyCheck
	build     services.BuildInfo
	logger    *zap.Logger
	clock     func() time.Time
	closers   []func(context.Context) error
}

// WithCatalog sets the commerce platform client. Required.
func WithCatalog(client commerce.Client) Option {
	return func(o *containerOptions) {
		o.catalog = client
	}
}

// WithOrderEventPublisher sets the publisher notified after orders are assembled.
func WithOrderEventPublisher(publisher services.OrderEventPublisher) Option {
	return func(o *containerOptions) {
		o.publisher = publisher
	}
}

// WithHealthChecks registers dependency probes backing the readiness endpoint.
func WithHealthChecks(checks ...repositories.DependencyCheck) Option {
	return func(o *containerOptions) {
		o.checks = append(o.checks, checks...)
	}
}

// WithBuildInfo sets the version metadata reported by health endpoints.
func WithBuildInfo(build services.BuildInfo) Option {
	return func(o *containerOptions) {
		o.build = build
	}
}

// WithLogger sets the base logger for service events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the clock shared by all services.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithCloser registers a release hook run by Close in reverse registration order.
func WithCloser(fn func(context.Context) error) Option {
	return func(o *containerOptions) {
		if fn != nil {
			o.closers = append(o.closers, fn)
		}
	}
}

// NewContainer constructs the runtime dependencies. Production wiring provides Firestore
// repositories, tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	options := containerOptions{
		logger: zap.NewNop(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.catalog == nil {
		return nil, errors.New("commerce client is required")
	}

	svc, err := buildServices(ctx, reg, cfg, options)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
		closers:      options.closers,
	}, nil
}

// Close releases resources such as repository clients, publishers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, opts containerOptions) (Services, error) {
	var svc Services
	logger := observability.ServiceLogger(opts.logger)

	discountSvc, err := services.NewDiscountService(services.DiscountServiceDeps{
		Events:     reg.Events(),
		Attendees:  reg.Attendees(),
		Looks:      reg.Looks(),
		Discounts:  reg.Discounts(),
		Catalog:    opts.catalog,
		UnitOfWork: reg,
		Currency:   cfg.Commerce.Currency,
		Clock:      opts.clock,
		Logger:     logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build discount service: %w", err)
	}
	svc.Discounts = discountSvc

	assembler, err := services.NewOrderAssembler(services.OrderAssemblerDeps{
		Orders:             reg.Orders(),
		Products:           reg.Products(),
		Users:              reg.Users(),
		Sizings:            reg.Sizings(),
		Measurements:       reg.Measurements(),
		Attendees:          reg.Attendees(),
		Catalog:            opts.catalog,
		Discounts:          discountSvc,
		UnitOfWork:         reg,
		Events:             opts.publisher,
		ResolveConcurrency: cfg.Orders.ResolveConcurrency,
		Clock:              opts.clock,
		Logger:             logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order assembler: %w", err)
	}
	svc.Orders = assembler

	if len(opts.checks) == 0 {
		return svc, nil
	}
	healthRepo, err := repositories.NewDependencyHealthRepository(opts.checks, repositories.WithDependencyClock(opts.clock))
	if err != nil {
		return Services{}, fmt.Errorf("build health repository: %w", err)
	}
	build := opts.build
	if build.Environment == "" {
		build.Environment = cfg.Environment
	}
	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: healthRepo,
		Clock:            opts.clock,
		Build:            build,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = systemSvc

	return svc, nil
}
