package model

import "time"

// WebhookEventKind is the closed set of gateway events this service understands.
type WebhookEventKind string

const (
	EventPaymentCaptured   WebhookEventKind = "payment.captured"
	EventPaymentAuthorized WebhookEventKind = "payment.authorized"
	EventPaymentFailed     WebhookEventKind = "payment.failed"
	EventOrderPaid         WebhookEventKind = "order.paid"
	EventRefundProcessed   WebhookEventKind = "refund.processed"
	EventUnknown           WebhookEventKind = "unknown"
)

// Known reports whether k is part of the closed set.
func (k WebhookEventKind) Known() bool {
	switch k {
	case EventPaymentCaptured, EventPaymentAuthorized, EventPaymentFailed,
		EventOrderPaid, EventRefundProcessed:
		return true
	}
	return false
}

// PaymentSucceeded is the per-kind payload of payment.captured and order.paid.
type PaymentSucceeded struct {
	GatewayPaymentID string
	Method           string
	Amount           int64
}

// PaymentFailed is the payload of payment.failed.
type PaymentFailed struct {
	GatewayPaymentID string
	Reason           string
}

// RefundProcessed is the payload of refund.processed.
type RefundProcessed struct {
	RefundID         string
	GatewayPaymentID string
	Amount           int64
}

// WebhookEvent is a parsed, signature-verified gateway notification.
// Exactly one of the payload pointers is set for the kinds that carry one.
type WebhookEvent struct {
	ID             string // provider event id, may be empty
	Kind           WebhookEventKind
	RawKind        string // as received; differs from Kind for unknown events
	GatewayOrderID string

	Succeeded *PaymentSucceeded
	Failed    *PaymentFailed
	Refund    *RefundProcessed
}

// Webhook processing outcomes recorded in the audit log.
const (
	WebhookOutcomeApplied        = "applied"
	WebhookOutcomeAlreadyApplied = "already_applied"
	WebhookOutcomeIgnored        = "ignored"
	WebhookOutcomeConflict       = "conflict"
	WebhookOutcomeRejected       = "rejected"
	WebhookOutcomeRetry          = "retry"
)

// WebhookEventRecord is the audit row written for every delivery, valid or not.
type WebhookEventRecord struct {
	EventID        string
	Kind           string
	GatewayOrderID string
	SignatureValid bool
	Outcome        string
	Error          string
	ReceivedAt     time.Time
	ProcessedAt    *time.Time
}
