package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"course-payments/internal/domain"
	"course-payments/internal/domain/model"
	"course-payments/internal/domain/ports/adapter"
)

var (
	_ adapter.PaymentGateway = (*SandboxGateway)(nil)
	_ adapter.WebhookDecoder = (*SandboxGateway)(nil)
)

// SandboxGateway is an in-memory gateway for dev runs and tests.
// It speaks the same webhook format as Razorpay.
type SandboxGateway struct {
	mu       sync.Mutex
	seq      int64
	orders   map[string]*adapter.GatewayOrder
	receipts map[string]string // receipt -> order id
	refunds  map[string]adapter.RefundResult
	now      func() time.Time
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{
		orders:   make(map[string]*adapter.GatewayOrder),
		receipts: make(map[string]string),
		refunds:  make(map[string]adapter.RefundResult),
		now:      time.Now,
	}
}

func (g *SandboxGateway) Name() string { return "sandbox" }

func (g *SandboxGateway) next(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_sbx%06d", prefix, g.seq)
}

// CreateOrder returns the existing order for a repeated receipt.
func (g *SandboxGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (adapter.GatewayOrder, error) {
	if amount <= 0 {
		return adapter.GatewayOrder{}, &domain.GatewayError{Op: "create_order", StatusCode: 400, Err: errors.New("amount must be positive")}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.receipts[receipt]; ok && receipt != "" {
		return *g.orders[id], nil
	}
	o := &adapter.GatewayOrder{
		ID:        g.next("order"),
		Amount:    amount,
		Currency:  currency,
		Receipt:   receipt,
		Status:    "created",
		CreatedAt: g.now().UTC(),
	}
	g.orders[o.ID] = o
	if receipt != "" {
		g.receipts[receipt] = o.ID
	}
	return *o, nil
}

func (g *SandboxGateway) FetchOrder(ctx context.Context, gatewayOrderID string) (adapter.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[gatewayOrderID]
	if !ok {
		return adapter.GatewayOrder{}, &domain.GatewayError{Op: "fetch_order", StatusCode: 400, Err: errors.New("order does not exist")}
	}
	return *o, nil
}

// MarkPaid simulates a successful checkout and returns the new payment id.
func (g *SandboxGateway) MarkPaid(gatewayOrderID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[gatewayOrderID]
	if !ok {
		return "", fmt.Errorf("sandbox: order %s not found", gatewayOrderID)
	}
	o.Status = "paid"
	o.AmountPaid = o.Amount
	o.Attempts++
	return g.next("pay"), nil
}

func (g *SandboxGateway) RefundPayment(ctx context.Context, gatewayPaymentID string, amount int64, notes map[string]string) (adapter.RefundResult, error) {
	if gatewayPaymentID == "" {
		return adapter.RefundResult{}, &domain.GatewayError{Op: "refund", StatusCode: 400, Err: errors.New("payment id required")}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.refunds[gatewayPaymentID]; ok {
		return r, nil
	}
	r := adapter.RefundResult{
		ID:        g.next("rfnd"),
		PaymentID: gatewayPaymentID,
		Status:    "processed",
		Amount:    amount,
		CreatedAt: g.now().UTC(),
	}
	g.refunds[gatewayPaymentID] = r
	return r, nil
}

func (g *SandboxGateway) DecodeWebhook(body []byte, eventID string) (model.WebhookEvent, error) {
	return DecodeRazorpayWebhook(body, eventID)
}
