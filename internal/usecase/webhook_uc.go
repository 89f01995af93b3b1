package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"course-payments/internal/domain"
	"course-payments/internal/domain/model"
	"course-payments/internal/domain/ports/adapter"
	"course-payments/internal/domain/ports/repository"
	"course-payments/internal/infra/logging"
	"course-payments/internal/infra/metrics"
	"course-payments/internal/infra/security"
)

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

// WebhookResult is what the ingest endpoint reports back for an accepted delivery.
type WebhookResult struct {
	EventID string
	Kind    model.WebhookEventKind
	OrderID string
	Outcome string // one of model.WebhookOutcome*
}

type WebhookUseCase interface {
	// Handle verifies, decodes and applies one gateway delivery. A nil error
	// means the delivery is done with and must not be redelivered; errors
	// matching domain.ErrTransient ask the gateway to retry.
	Handle(ctx context.Context, body []byte, signature, eventID string) (WebhookResult, error)
}

type webhookUC struct {
	sm       *OrderStateMachine
	orders   repository.OrderRepository
	audit    repository.WebhookEventRepository
	verifier adapter.SignatureVerifier
	decoder  adapter.WebhookDecoder
	log      *zerolog.Logger
	dev      bool
}

func NewWebhookUseCase(
	sm *OrderStateMachine,
	orders repository.OrderRepository,
	audit repository.WebhookEventRepository,
	verifier adapter.SignatureVerifier,
	decoder adapter.WebhookDecoder,
	logger *zerolog.Logger,
	dev bool,
) *webhookUC {
	return &webhookUC{
		sm:       sm,
		orders:   orders,
		audit:    audit,
		verifier: verifier,
		decoder:  decoder,
		log:      logger,
		dev:      dev,
	}
}

func (u *webhookUC) Handle(ctx context.Context, body []byte, signature, eventID string) (WebhookResult, error) {
	defer logging.TraceDuration(u.log, "WebhookUC.Handle")()

	rec := &model.WebhookEventRecord{EventID: eventID, ReceivedAt: time.Now().UTC()}
	res := WebhookResult{EventID: eventID}

	if err := u.verifier.VerifyWebhook(body, signature); err != nil {
		metrics.IncSignatureFailure(security.PathWebhook)
		metrics.IncWebhookEvent("", model.WebhookOutcomeRejected)
		u.log.Warn().
			Err(err).
			Str("event_id", eventID).
			Str("signature", logging.Redact(signature, u.dev)).
			Int("body_bytes", len(body)).
			Msg("webhook signature rejected")
		rec.Outcome = model.WebhookOutcomeRejected
		rec.Error = err.Error()
		u.record(ctx, rec)
		return res, err
	}
	rec.SignatureValid = true

	ev, err := u.decoder.DecodeWebhook(body, eventID)
	if err != nil {
		metrics.IncWebhookEvent("", model.WebhookOutcomeRejected)
		u.log.Warn().Err(err).Str("event_id", eventID).Msg("webhook payload rejected")
		rec.Outcome = model.WebhookOutcomeRejected
		rec.Error = err.Error()
		u.record(ctx, rec)
		return res, err
	}
	rec.Kind = ev.RawKind
	rec.GatewayOrderID = ev.GatewayOrderID
	res.Kind = ev.Kind

	outcome, orderID, err := u.apply(ctx, ev)
	res.Outcome = outcome
	res.OrderID = orderID

	rec.Outcome = outcome
	if err != nil {
		rec.Error = err.Error()
	}
	now := time.Now().UTC()
	rec.ProcessedAt = &now
	u.record(ctx, rec)

	metrics.IncWebhookEvent(string(ev.Kind), outcome)
	return res, err
}

// apply maps a decoded event onto a state machine transition.
func (u *webhookUC) apply(ctx context.Context, ev model.WebhookEvent) (string, string, error) {
	l := u.log.With().Str("event_id", ev.ID).Str("event", ev.RawKind).Str("gateway_order_id", ev.GatewayOrderID).Logger()

	var tr Transition
	switch ev.Kind {
	case model.EventPaymentCaptured, model.EventOrderPaid:
		method := ev.Succeeded.Method
		if method == "" {
			method = "gateway"
		}
		paymentID := ev.Succeeded.GatewayPaymentID
		tr = Transition{
			From:  model.OrderStatusPending,
			To:    model.OrderStatusCompleted,
			Patch: model.StatusPatch{TransactionID: &paymentID, PaymentMethod: &method},
		}
	case model.EventPaymentFailed:
		reason := ev.Failed.Reason
		tr = Transition{
			From:  model.OrderStatusPending,
			To:    model.OrderStatusFailed,
			Patch: model.StatusPatch{FailureReason: &reason},
		}
	case model.EventRefundProcessed:
		refundID := ev.Refund.RefundID
		tr = Transition{
			From:  model.OrderStatusCompleted,
			To:    model.OrderStatusRefunded,
			Patch: model.StatusPatch{RefundID: &refundID},
		}
	default:
		// payment.authorized waits for capture; anything else is not ours
		l.Info().Msg("webhook event ignored")
		return model.WebhookOutcomeIgnored, "", nil
	}
	tr.Idempotent = true

	o, err := u.orders.FindByGatewayOrderID(ctx, repository.NoTX, ev.GatewayOrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// the order may still be committing on the create path
			l.Warn().Msg("webhook for unknown gateway order")
			return model.WebhookOutcomeRetry, "", errors.Join(domain.ErrTransient,
				fmt.Errorf("no order for gateway order %s", ev.GatewayOrderID))
		}
		l.Error().Err(err).Msg("webhook order lookup failed")
		return model.WebhookOutcomeRetry, "", asTransient(err)
	}
	tr.OrderID = o.ID
	l = l.With().Str("order_id", o.ID).Logger()

	res, err := u.sm.Apply(ctx, tr)
	switch {
	case err == nil && res.Applied:
		return model.WebhookOutcomeApplied, o.ID, nil
	case err == nil:
		return model.WebhookOutcomeAlreadyApplied, o.ID, nil
	case errors.Is(err, domain.ErrStateConflict):
		// redelivery cannot change this; reconcile by hand
		l.Error().Err(err).Msg("webhook conflicts with order state")
		return model.WebhookOutcomeConflict, o.ID, nil
	default:
		l.Error().Err(err).Msg("webhook transition failed")
		return model.WebhookOutcomeRetry, o.ID, asTransient(err)
	}
}

// asTransient marks storage failures as retryable so the gateway redelivers
// the event with a 503 rather than a 500.
func asTransient(err error) error {
	if errors.Is(err, domain.ErrTransient) {
		return err
	}
	return errors.Join(domain.ErrTransient, err)
}

func (u *webhookUC) record(ctx context.Context, rec *model.WebhookEventRecord) {
	if err := u.audit.Record(ctx, repository.NoTX, rec); err != nil {
		u.log.Error().Err(err).Str("event_id", rec.EventID).Str("outcome", rec.Outcome).Msg("webhook audit write failed")
	}
}
