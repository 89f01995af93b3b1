package messaging

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"course-payments/internal/domain/ports/adapter"
	"course-payments/internal/infra/worker"
)

var (
	_ adapter.OrderEventPublisher = (*AsyncPublisher)(nil)
	_ adapter.OrderEventPublisher = NoopPublisher{}
)

// AsyncPublisher hands events to the worker pool so publishing never delays
// or fails the transition that produced them.
type AsyncPublisher struct {
	inner   adapter.OrderEventPublisher
	pool    *worker.Pool
	timeout time.Duration
	log     *zerolog.Logger
}

func NewAsyncPublisher(inner adapter.OrderEventPublisher, pool *worker.Pool, logger *zerolog.Logger) *AsyncPublisher {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &AsyncPublisher{inner: inner, pool: pool, timeout: 5 * time.Second, log: logger}
}

// Publish enqueues ev. A full queue drops the event with a warning.
func (a *AsyncPublisher) Publish(_ context.Context, ev adapter.OrderEvent) error {
	err := a.pool.Submit(func(ctx context.Context) error {
		// request contexts are already gone by the time this runs
		pctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		return a.inner.Publish(pctx, ev)
	})
	if err != nil {
		a.log.Warn().Err(err).Str("order_id", ev.OrderID).Str("type", ev.Type).Msg("order event dropped")
	}
	return err
}

// NoopPublisher is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, adapter.OrderEvent) error { return nil }
