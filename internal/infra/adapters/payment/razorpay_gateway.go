// File: internal/infra/adapters/payment/razorpay_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"course-payments/internal/domain"
	"course-payments/internal/domain/ports/adapter"
	"course-payments/internal/infra/metrics"
)

var (
	_ adapter.PaymentGateway = (*RazorpayGateway)(nil)
	_ adapter.WebhookDecoder = (*RazorpayGateway)(nil)
)

const (
	defaultBaseURL        = "https://api.razorpay.com/v1"
	defaultTimeout        = 15 * time.Second
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 200 * time.Millisecond
	maxResponseBytes      = 1 << 20
)

// RazorpayOptions configures the REST client. Zero values fall back to defaults.
type RazorpayOptions struct {
	KeyID          string
	KeySecret      string
	BaseURL        string
	Timeout        time.Duration // per attempt
	MaxAttempts    int
	InitialBackoff time.Duration
}

// RazorpayGateway implements adapter.PaymentGateway against the Razorpay v1 REST API.
// It is built once at startup and shared; it holds no per-request state.
type RazorpayGateway struct {
	keyID          string
	keySecret      string
	baseURL        string
	client         *http.Client
	maxAttempts    int
	initialBackoff time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
	log            *zerolog.Logger
}

// NewRazorpayGateway validates credentials eagerly so a misconfigured
// service fails at startup instead of on the first order.
func NewRazorpayGateway(opts RazorpayOptions, logger *zerolog.Logger) (*RazorpayGateway, error) {
	if strings.TrimSpace(opts.KeyID) == "" {
		return nil, errors.New("razorpay: key id empty")
	}
	if strings.TrimSpace(opts.KeySecret) == "" {
		return nil, errors.New("razorpay: key secret empty")
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("razorpay: invalid base url: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &RazorpayGateway{
		keyID:          opts.KeyID,
		keySecret:      opts.KeySecret,
		baseURL:        base,
		client:         &http.Client{Timeout: opts.Timeout},
		maxAttempts:    opts.MaxAttempts,
		initialBackoff: opts.InitialBackoff,
		sleep:          sleepCtx,
		log:            logger,
	}, nil
}

func (g *RazorpayGateway) Name() string { return "razorpay" }

type rzpOrder struct {
	ID         string            `json:"id"`
	Entity     string            `json:"entity"`
	Amount     int64             `json:"amount"`
	AmountPaid int64             `json:"amount_paid"`
	Currency   string            `json:"currency"`
	Receipt    string            `json:"receipt"`
	Status     string            `json:"status"`
	Attempts   int               `json:"attempts"`
	Notes      map[string]string `json:"notes"`
	CreatedAt  int64             `json:"created_at"`
}

func (o rzpOrder) toGatewayOrder() adapter.GatewayOrder {
	return adapter.GatewayOrder{
		ID:         o.ID,
		Amount:     o.Amount,
		AmountPaid: o.AmountPaid,
		Currency:   o.Currency,
		Receipt:    o.Receipt,
		Status:     o.Status,
		Attempts:   o.Attempts,
		CreatedAt:  time.Unix(o.CreatedAt, 0).UTC(),
	}
}

// CreateOrder calls POST /orders. The receipt lets Razorpay recognise a
// retried creation for the same local order.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (adapter.GatewayOrder, error) {
	if amount <= 0 {
		return adapter.GatewayOrder{}, &domain.GatewayError{Op: "create_order", Err: errors.New("amount must be positive")}
	}
	if receipt == "" {
		return adapter.GatewayOrder{}, &domain.GatewayError{Op: "create_order", Err: errors.New("receipt required")}
	}
	payload := map[string]any{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		payload["notes"] = notes
	}
	var out rzpOrder
	if err := g.do(ctx, "create_order", http.MethodPost, "/orders", payload, &out); err != nil {
		return adapter.GatewayOrder{}, err
	}
	if out.ID == "" {
		return adapter.GatewayOrder{}, &domain.GatewayError{Op: "create_order", Err: errors.New("response missing order id")}
	}
	return out.toGatewayOrder(), nil
}

// FetchOrder calls GET /orders/{id}.
func (g *RazorpayGateway) FetchOrder(ctx context.Context, gatewayOrderID string) (adapter.GatewayOrder, error) {
	if gatewayOrderID == "" {
		return adapter.GatewayOrder{}, &domain.GatewayError{Op: "fetch_order", Err: errors.New("order id required")}
	}
	var out rzpOrder
	if err := g.do(ctx, "fetch_order", http.MethodGet, "/orders/"+url.PathEscape(gatewayOrderID), nil, &out); err != nil {
		return adapter.GatewayOrder{}, err
	}
	return out.toGatewayOrder(), nil
}

// RefundPayment calls POST /payments/{id}/refund. amount 0 refunds in full.
func (g *RazorpayGateway) RefundPayment(ctx context.Context, gatewayPaymentID string, amount int64, notes map[string]string) (adapter.RefundResult, error) {
	if gatewayPaymentID == "" {
		return adapter.RefundResult{}, &domain.GatewayError{Op: "refund", Err: errors.New("payment id required")}
	}
	payload := map[string]any{}
	if amount > 0 {
		payload["amount"] = amount
	}
	if len(notes) > 0 {
		payload["notes"] = notes
	}
	var out struct {
		ID        string `json:"id"`
		PaymentID string `json:"payment_id"`
		Amount    int64  `json:"amount"`
		Status    string `json:"status"`
		CreatedAt int64  `json:"created_at"`
	}
	if err := g.do(ctx, "refund", http.MethodPost, "/payments/"+url.PathEscape(gatewayPaymentID)+"/refund", payload, &out); err != nil {
		return adapter.RefundResult{}, err
	}
	return adapter.RefundResult{
		ID:        out.ID,
		PaymentID: out.PaymentID,
		Status:    out.Status,
		Amount:    out.Amount,
		CreatedAt: time.Unix(out.CreatedAt, 0).UTC(),
	}, nil
}

// do executes one logical call with bounded exponential backoff.
// Retryable: transport errors, timeouts, 429 and 5xx. Everything else is fatal.
func (g *RazorpayGateway) do(ctx context.Context, op, method, path string, payload any, out any) error {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return &domain.GatewayError{Op: op, Err: err}
		}
		body = b
	}

	var last *domain.GatewayError
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := time.Duration(math.Pow(2, float64(attempt-2))) * g.initialBackoff
			if err := g.sleep(ctx, delay); err != nil {
				last.Err = errors.Join(last.Err, err)
				break
			}
		}

		gerr := g.attempt(ctx, op, method, path, body, out)
		if gerr == nil {
			metrics.IncGatewayRequest(op, "ok")
			return nil
		}
		gerr.Attempts = attempt
		last = gerr
		if !gerr.Retryable {
			metrics.IncGatewayRequest(op, "fatal")
			return gerr
		}
		metrics.IncGatewayRequest(op, "retry")
		g.log.Warn().
			Str("op", op).
			Int("attempt", attempt).
			Int("status", gerr.StatusCode).
			Err(gerr.Err).
			Msg("gateway call failed, retrying")
		if ctx.Err() != nil {
			break
		}
	}
	metrics.IncGatewayRequest(op, "exhausted")
	// out of attempts: the caller must treat the failure as final
	last.Retryable = false
	return last
}

func (g *RazorpayGateway) attempt(ctx context.Context, op, method, path string, body []byte, out any) *domain.GatewayError {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, rdr)
	if err != nil {
		return &domain.GatewayError{Op: op, Err: err}
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return &domain.GatewayError{Op: op, Retryable: isTransportRetryable(ctx, err), Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Retryable: true, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.GatewayError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			Err:        errors.New(describeError(raw, resp.Status)),
		}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

func describeError(raw []byte, status string) string {
	var e struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error.Description != "" {
		return e.Error.Code + ": " + e.Error.Description
	}
	return status
}

// isTransportRetryable: timeouts and connection failures are worth another try,
// but not when our own context is already done.
func isTransportRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
