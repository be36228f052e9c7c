package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/lunchbox/pkg/accounts"
	"github.com/platinummonkey/lunchbox/pkg/api"
	"github.com/platinummonkey/lunchbox/pkg/auth"
	"github.com/platinummonkey/lunchbox/pkg/billing"
	"github.com/platinummonkey/lunchbox/pkg/children"
	"github.com/platinummonkey/lunchbox/pkg/config"
	"github.com/platinummonkey/lunchbox/pkg/middleware"
	"github.com/platinummonkey/lunchbox/pkg/notify"
	"github.com/platinummonkey/lunchbox/pkg/observability"
	"github.com/platinummonkey/lunchbox/pkg/offdays"
	"github.com/platinummonkey/lunchbox/pkg/orders"
	"github.com/platinummonkey/lunchbox/pkg/storage/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "Print the version and exit")
	envFile := flag.String("env-file", "", "KEY=VALUE file loaded into the environment (default: $LUNCHBOX_ENV_FILE or .env)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	if _, err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "lunchbox: %v\n", err)
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lunchbox: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", "lunchbox").
		WithField("version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := observability.InitOTel(ctx, cfg.OTelConfig(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	conn, err := postgres.NewConnectionManager(cfg.Storage, logger)
	if err != nil {
		return err
	}
	db := conn.DB()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		conn.Close()
		return err
	}
	conn.StartStatsRoutine(ctx, 0, metrics)

	var redisClient *postgres.RedisClient
	var rawRedis *redis.Client
	if cfg.Storage.RedisEnabled() {
		redisClient, err = postgres.NewRedisClient(cfg.Storage)
		if err != nil {
			conn.Close()
			return err
		}
		rawRedis = redisClient.GetClient()
		logger.Info("Redis enabled for webhook de-duplication and rate limiting")
	}

	var mailer notify.Mailer = notify.NewLogMailer(logger)
	if cfg.Email.Enabled {
		resendMailer, err := notify.NewResendMailer(cfg.Email.ResendBaseURL, cfg.Email.ResendAPIKey, cfg.Email.From, cfg.Email.RequestTimeout, metrics)
		if err != nil {
			conn.Close()
			return err
		}
		mailer = resendMailer
	}

	accountStore := accounts.NewStore(db)
	offDayService := offdays.NewService(offdays.NewPostgresStore(db), cfg.Storage.OffDayCacheSize, cfg.Storage.OffDayCacheTTL, logger, metrics)
	orderService := orders.NewService(orders.NewPostgresStore(db), offDayService, mailer, logger, metrics)
	childService := children.NewService(children.NewPostgresStore(db), logger)

	var provider billing.Provider = disabledProvider{}
	if cfg.Stripe.Enabled {
		provider = billing.NewStripeClient(billing.StripeClientConfig{
			SecretKey:         cfg.Stripe.SecretKey,
			BaseURL:           cfg.Stripe.APIBaseURL,
			Timeout:           cfg.Stripe.RequestTimeout,
			MaxNetworkRetries: int64(cfg.Stripe.MaxNetworkRetries),
		}, logger)
	}
	billingOpts := []billing.Option{
		billing.WithNotifier(orderService),
		billing.WithAccessNotifier(notify.NewAccessNotifier(accountStore, mailer)),
		billing.WithMetrics(metrics),
	}
	if redisClient != nil {
		billingOpts = append(billingOpts, billing.WithDeduplicator(
			billing.NewRedisDeduplicator(redisClient, cfg.Storage.WebhookDedupTTL)))
	}
	billingService := billing.NewService(
		billing.NewPostgresStore(db),
		accountStore,
		provider,
		billing.Config{
			WebhookSecret:    cfg.Stripe.WebhookSecret,
			WebhookTolerance: cfg.Stripe.WebhookTolerance,
			AppBaseURL:       cfg.App.BaseURL,
		},
		logger,
		billingOpts...,
	)

	var verifier auth.TokenVerifier = rejectingVerifier{}
	if cfg.AuthEnabled() {
		verifier, err = auth.NewOIDCVerifier(ctx, cfg.Auth.IssuerURL, cfg.Auth.ClientID)
		if err != nil {
			conn.Close()
			return err
		}
	} else {
		logger.Warn("OIDC is not configured, every authenticated request will be rejected")
	}
	authMiddleware := middleware.NewAuthMiddleware(verifier, accountStore, logger)

	checkoutLimiter := newLimiter(ctx, rawRedis, middleware.CheckoutRateLimitConfig(), "lunchbox:ratelimit:checkout")
	webhookLimiter := newLimiter(ctx, rawRedis, middleware.WebhookRateLimitConfig(), "lunchbox:ratelimit:webhook")

	router := api.NewRouter(
		api.Services{Billing: billingService, Orders: orderService, OffDays: offDayService, Children: childService},
		logger,
		api.RouterConfig{
			Auth:          authMiddleware.Handler,
			CheckoutLimit: middleware.NewRateLimitMiddleware("checkout", checkoutLimiter, logger).Handler,
			WebhookLimit:  middleware.NewRateLimitMiddleware("webhook", webhookLimiter, logger).Handler,
			Metrics:       metrics,
			MaxBodyBytes:  cfg.Server.MaxBodyBytes,
		},
	)

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      observability.InstrumentHandler(router, "lunchbox-api"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, rawRedis, version))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.RegisterShutdownFunc("opentelemetry", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	shutdown.RegisterShutdownFunc("postgres", func(context.Context) error {
		return conn.Close()
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc("redis", func(context.Context) error {
			return redisClient.Close()
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("API server listening on %s", apiServer.Addr)
		return serve(apiServer)
	})
	g.Go(func() error {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		return serve(healthServer)
	})
	g.Go(func() error {
		return shutdown.WaitForSignal(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Server stopped with error")
		return err
	}
	logger.Info("Server stopped")
	return nil
}

func serve(server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server %s failed: %w", server.Addr, err)
	}
	return nil
}

// newLimiter shares limits across instances when Redis is available
func newLimiter(ctx context.Context, client *redis.Client, cfg *middleware.RateLimitConfig, prefix string) middleware.Limiter {
	if client != nil {
		return middleware.NewDistributedRateLimiter(client, cfg, prefix)
	}
	limiter := middleware.NewRateLimiter(cfg)
	limiter.StartCleanup(ctx)
	return limiter
}
