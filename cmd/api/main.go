package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/suitline/fulfillment/internal/commerce"
	"github.com/suitline/fulfillment/internal/di"
	"github.com/suitline/fulfillment/internal/handlers"
	"github.com/suitline/fulfillment/internal/platform/auth"
	"github.com/suitline/fulfillment/internal/platform/config"
	pfirestore "github.com/suitline/fulfillment/internal/platform/firestore"
	"github.com/suitline/fulfillment/internal/platform/idempotency"
	"github.com/suitline/fulfillment/internal/platform/jobs"
	"github.com/suitline/fulfillment/internal/platform/observability"
	"github.com/suitline/fulfillment/internal/platform/secrets"
	"github.com/suitline/fulfillment/internal/repositories"
	firestoreRepo "github.com/suitline/fulfillment/internal/repositories/firestore"
	"github.com/suitline/fulfillment/internal/services"
)

const webhookSource = "orders"

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("fulfillment")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(fetcher),
		config.WithRequiredSecrets("Webhooks.SigningSecret"),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(cfg, startedAt)
	checks := make([]repositories.DependencyCheck, 0, 3)
	var closers []di.Option

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := firestoreProvider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	closers = append(closers, di.WithCloser(firestoreProvider.Close))
	checks = append(checks, repositories.DependencyCheck{
		Name:     "firestore",
		Critical: true,
		Timeout:  1500 * time.Millisecond,
		Check:    firestoreProvider.Ping,
	})

	registry, err := firestoreRepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	var rdb *redis.Client
	if addr := strings.TrimSpace(cfg.Cache.RedisAddr); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		closers = append(closers, di.WithCloser(func(context.Context) error {
			return rdb.Close()
		}))
		checks = append(checks, repositories.DependencyCheck{
			Name:    "redis",
			Timeout: 500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		})
	}

	catalog, err := newCommerceClient(cfg, logger, rdb)
	if err != nil {
		logger.Fatal("failed to initialise commerce client", zap.Error(err))
	}

	containerOpts := []di.Option{
		di.WithCatalog(catalog),
		di.WithBuildInfo(buildInfo),
		di.WithLogger(logger.Named("services")),
	}

	if topicID := strings.TrimSpace(cfg.PubSub.OrderEventsTopic); topicID != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		topic := pubsubClient.Topic(topicID)
		publisher, err := jobs.NewPubSubOrderEventPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise order event publisher", zap.Error(err))
		}
		containerOpts = append(containerOpts, di.WithOrderEventPublisher(publisher))
		closers = append(closers, di.WithCloser(func(context.Context) error {
			topic.Stop()
			return pubsubClient.Close()
		}))
		checks = append(checks, repositories.DependencyCheck{
			Name:    "pubsub",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				exists, err := topic.Exists(ctx)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("topic %s not found", topicID)
				}
				return nil
			},
		})
	} else {
		logger.Warn("order events topic not configured; publishing disabled")
	}

	containerOpts = append(containerOpts, di.WithHealthChecks(checks...))
	containerOpts = append(containerOpts, closers...)

	container, err := di.NewContainer(ctx, cfg, registry, containerOpts...)
	if err != nil {
		logger.Fatal("failed to build service container", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	verifier := auth.NewWebhookVerifier(
		auth.StaticSecret(cfg.Webhooks.SigningSecret),
		auth.WithSignatureHeader(cfg.Webhooks.SignatureHeader),
		auth.WithWebhookLogger(logger.Named("auth")),
	)

	projectID := strings.TrimSpace(cfg.Firestore.ProjectID)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	healthOpts := []handlers.HealthOption{handlers.WithHealthBuildInfo(buildInfo)}
	if container.Services.System != nil {
		healthOpts = append(healthOpts, handlers.WithHealthSystemService(container.Services.System))
	}
	healthHandlers := handlers.NewHealthHandlers(healthOpts...)
	webhookHandlers := handlers.NewWebhookHandlers(container.Services.Orders)
	eventHandlers := handlers.NewEventHandlers(container.Services.Discounts)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
		handlers.WithWebhookMiddlewares(verifier.Require(webhookSource)),
		handlers.WithEventRoutes(eventHandlers.Routes),
		handlers.WithEventMiddlewares(idempotency.Guard(
			newIdempotencyStore(logger, rdb),
			idempotency.WithLogger(logger.Named("idempotency")),
		)),
	)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("fulfillment api listening", zap.String("commerceMode", cfg.Commerce.Mode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(os.Getenv("FULFILLMENT_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("FULFILLMENT_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

// newCommerceClient selects the platform adapter and wraps it with the Redis variant cache
// when rdb is set.
func newCommerceClient(cfg config.Config, logger *zap.Logger, rdb *redis.Client) (commerce.Client, error) {
	commerceLogger := commerce.Logger(observability.ServiceLogger(logger.Named("commerce")))

	var client commerce.Client
	switch cfg.Commerce.Mode {
	case config.CommerceModeFake:
		logger.Warn("using in-memory commerce client")
		client = commerce.NewFakeClient(commerceLogger)
	default:
		stripeClient, err := commerce.NewStripeClient(commerce.StripeClientConfig{
			APIKey:    cfg.Commerce.APIKey,
			AccountID: cfg.Commerce.AccountID,
			Currency:  cfg.Commerce.Currency,
			Logger:    commerceLogger,
		})
		if err != nil {
			return nil, err
		}
		client = stripeClient
	}

	if rdb == nil {
		return client, nil
	}
	cached, err := commerce.NewCachedClient(client, rdb,
		commerce.WithVariantTTL(cfg.Cache.TTL),
		commerce.WithCacheLogger(commerceLogger),
	)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

// newIdempotencyStore shares the cache Redis when configured. The in-memory store only
// deduplicates retries that reach the same instance.
func newIdempotencyStore(logger *zap.Logger, rdb *redis.Client) idempotency.Store {
	if rdb == nil {
		logger.Warn("redis not configured; idempotency keys are tracked per instance")
		return idempotency.NewMemoryStore()
	}
	store, err := idempotency.NewRedisStore(rdb)
	if err != nil {
		logger.Fatal("failed to initialise idempotency store", zap.Error(err))
	}
	return store
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		value, err := config.Lookup(key)
		if err != nil {
			logger.Warn("config lookup failed", zap.String("key", key), zap.Error(err))
			return ""
		}
		return strings.TrimSpace(value)
	}

	projectID := lookup("FULFILLMENT_SECRETS_PROJECT_ID")
	if projectID == "" {
		projectID = lookup("FULFILLMENT_FIRESTORE_PROJECT_ID")
	}
	fallbackPath := lookup("FULFILLMENT_SECRETS_FALLBACK_FILE")

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
	}
	if projectID != "" {
		opts = append(opts, secrets.WithProject(projectID))
	}
	if fallbackPath != "" {
		opts = append(opts, secrets.WithFallbackFile(fallbackPath))
	}
	return secrets.NewFetcher(ctx, opts...)
}
