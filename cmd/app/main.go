// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"course-payments/internal/config"
	"course-payments/internal/domain/ports/adapter"
	"course-payments/internal/domain/ports/repository"
	payAdapters "course-payments/internal/infra/adapters/payment"
	"course-payments/internal/infra/api"
	pg "course-payments/internal/infra/db/postgres"
	"course-payments/internal/infra/logging"
	"course-payments/internal/infra/messaging"
	"course-payments/internal/infra/metrics"
	red "course-payments/internal/infra/redis"
	"course-payments/internal/infra/security"
	"course-payments/internal/infra/worker"
	"course-payments/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("service stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, cfg.Gateway.Provider)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	// ---- Repositories ----
	var catalogRepo repository.CatalogRepository = pg.NewPostgresCatalogRepo(pool)
	orderRepo := pg.NewPostgresOrderRepo(pool)
	entitlementRepo := pg.NewPostgresEntitlementRepo(pool)
	webhookRepo := pg.NewPostgresWebhookEventRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Redis (optional) ----
	var limiter api.RateLimiter
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()
		catalogRepo = pg.NewCatalogRepoCacheDecorator(catalogRepo, redisClient, cfg.Redis.TTL, logger)
		if cfg.HTTP.OrderRateLimit > 0 {
			limiter = red.NewRateLimiter(redisClient, cfg.HTTP.OrderRateLimit, cfg.HTTP.OrderRateWindow)
		}
	} else {
		logger.Info().Msg("redis disabled: catalog cache and order rate limit are off")
	}

	// ---- Gateway ----
	var (
		gateway adapter.PaymentGateway
		decoder adapter.WebhookDecoder
	)
	switch cfg.Gateway.Provider {
	case config.ProviderSandbox:
		sb := payAdapters.NewSandboxGateway()
		gateway, decoder = sb, sb
	default:
		rzp, err := payAdapters.NewRazorpayGateway(payAdapters.RazorpayOptions{
			KeyID:          cfg.Gateway.KeyID,
			KeySecret:      cfg.Gateway.KeySecret,
			BaseURL:        cfg.Gateway.BaseURL,
			Timeout:        cfg.Gateway.Timeout,
			MaxAttempts:    cfg.Gateway.MaxAttempts,
			InitialBackoff: cfg.Gateway.InitialBackoff,
		}, logger)
		if err != nil {
			return fmt.Errorf("gateway: %w", err)
		}
		gateway, decoder = rzp, rzp
	}
	logger.Info().Str("provider", gateway.Name()).Msg("payment gateway ready")

	verifier, err := security.NewSignatureVerifier(cfg.Gateway.KeySecret, cfg.Gateway.WebhookSecret)
	if err != nil {
		return fmt.Errorf("signature verifier: %w", err)
	}

	// ---- Order events ----
	var events adapter.OrderEventPublisher = messaging.NoopPublisher{}
	if cfg.Messaging.AMQPURL != "" {
		rabbit, err := messaging.NewRabbitPublisher(cfg.Messaging.AMQPURL, cfg.Messaging.Exchange, logger)
		if err != nil {
			return fmt.Errorf("rabbitmq: %w", err)
		}
		defer rabbit.Close()

		pubPool := worker.NewPool(cfg.Messaging.Workers, cfg.Messaging.QueueSize, logger)
		pubPool.Start(ctx)
		defer pubPool.Stop()
		events = messaging.NewAsyncPublisher(rabbit, pubPool, logger)
	}

	// ---- Use cases ----
	sm := usecase.NewOrderStateMachine(orderRepo, entitlementRepo, txManager, events, logger)
	orderUC := usecase.NewOrderUseCase(orderRepo, catalogRepo, entitlementRepo, gateway, cfg.Gateway.Currency, logger)
	paymentUC := usecase.NewPaymentUseCase(sm, verifier, logger, cfg.Runtime.Dev)
	webhookUC := usecase.NewWebhookUseCase(sm, orderRepo, webhookRepo, verifier, decoder, logger, cfg.Runtime.Dev)
	adminUC := usecase.NewAdminUseCase(sm, orderRepo, gateway, logger)

	// ---- HTTP ----
	auth := api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AdminRole)
	apiServer := api.NewServer(orderUC, paymentUC, webhookUC, adminUC, auth, limiter, api.Options{
		RequestTimeout:  cfg.HTTP.RequestTimeout,
		WebhookMaxBytes: cfg.Gateway.WebhookMaxBytes,
		Dev:             cfg.Runtime.Dev,
	}, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           apiServer.Routes(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// ---- Graceful shutdown ----
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
