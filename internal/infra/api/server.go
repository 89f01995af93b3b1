package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"course-payments/internal/usecase"
)

// RateLimiter gates order creation per user. Nil disables limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Options struct {
	RequestTimeout  time.Duration
	WebhookMaxBytes int64
	Dev             bool
}

// Server exposes the order, payment, webhook and admin use cases over HTTP.
type Server struct {
	orders   usecase.OrderUseCase
	payments usecase.PaymentUseCase
	webhooks usecase.WebhookUseCase
	admin    usecase.AdminUseCase
	auth     *Authenticator
	limiter  RateLimiter
	validate *validator.Validate
	opts     Options
	log      *zerolog.Logger
}

func NewServer(
	orders usecase.OrderUseCase,
	payments usecase.PaymentUseCase,
	webhooks usecase.WebhookUseCase,
	admin usecase.AdminUseCase,
	auth *Authenticator,
	limiter RateLimiter,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.WebhookMaxBytes <= 0 {
		opts.WebhookMaxBytes = 64 << 10
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 25 * time.Second
	}
	return &Server{
		orders:   orders,
		payments: payments,
		webhooks: webhooks,
		admin:    admin,
		auth:     auth,
		limiter:  limiter,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		opts:     opts,
		log:      logger,
	}
}

// Routes builds the chi router with all middlewares attached.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Timeout(s.opts.RequestTimeout))

		// authenticated by signature only
		r.Post("/webhooks/gateway", s.handleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireUser())

			r.Post("/orders", s.handleCreateOrder)
			r.Get("/orders/{id}", s.handleGetOrder)
			r.Post("/payments/verify", s.handleVerifyPayment)
			r.Post("/payments/failure", s.handleReportFailure)

			r.Route("/admin/orders/{id}", func(r chi.Router) {
				r.Use(s.auth.RequireAdmin())
				r.Post("/activate", s.handleActivate)
				r.Post("/refund", s.handleRefund)
				r.Get("/gateway", s.handleGatewayStatus)
			})
		})
	})
	return r
}
