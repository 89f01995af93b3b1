package adapter

import (
	"context"
	"time"

	"course-payments/internal/domain/model"
)

// GatewayOrder is the remote view of an order.
type GatewayOrder struct {
	ID         string
	Amount     int64 // minor units
	AmountPaid int64
	Currency   string
	Receipt    string
	Status     string // created | attempted | paid
	Attempts   int
	CreatedAt  time.Time
}

// RefundResult captures a minimal, provider-agnostic result of a refund request.
type RefundResult struct {
	ID        string
	PaymentID string
	Status    string // pending | processed | failed
	Amount    int64
	CreatedAt time.Time
}

// PaymentGateway is the hex port for the payment provider.
// Implementations classify failures into *domain.GatewayError.
type PaymentGateway interface {
	Name() string

	// CreateOrder registers an order remotely. receipt must be unique per local
	// order so the provider can deduplicate retried creations.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (GatewayOrder, error)
	// FetchOrder queries the remote state of an order.
	FetchOrder(ctx context.Context, gatewayOrderID string) (GatewayOrder, error)
	// RefundPayment refunds a captured payment in full when amount is 0.
	RefundPayment(ctx context.Context, gatewayPaymentID string, amount int64, notes map[string]string) (RefundResult, error)
}

// WebhookDecoder turns a verified webhook body into a typed event.
// Unknown event kinds decode successfully with Kind == model.EventUnknown.
type WebhookDecoder interface {
	DecodeWebhook(body []byte, eventID string) (model.WebhookEvent, error)
}
