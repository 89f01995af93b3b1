// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"course-payments/internal/domain"
	"course-payments/internal/domain/model"
	"course-payments/internal/domain/ports/adapter"
	"course-payments/internal/infra/logging"
	"course-payments/internal/infra/metrics"
	"course-payments/internal/infra/security"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// VerifyPaymentInput is what the client posts after checkout.
type VerifyPaymentInput struct {
	OrderID          string
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	PaymentMethod    string
}

type ReportFailureInput struct {
	OrderID        string
	GatewayOrderID string
	Reason         string
}

type PaymentUseCase interface {
	// Verify checks the client-side signature and completes the order.
	// Repeating a successful call returns the already-completed order.
	Verify(ctx context.Context, userID string, in VerifyPaymentInput) (*model.PaymentOrder, error)
	// ReportFailure marks a pending order failed on the client's word.
	ReportFailure(ctx context.Context, userID string, in ReportFailureInput) (*model.PaymentOrder, error)
}

type paymentUC struct {
	sm       *OrderStateMachine
	verifier adapter.SignatureVerifier
	log      *zerolog.Logger
	dev      bool
}

func NewPaymentUseCase(sm *OrderStateMachine, verifier adapter.SignatureVerifier, logger *zerolog.Logger, dev bool) *paymentUC {
	return &paymentUC{sm: sm, verifier: verifier, log: logger, dev: dev}
}

func (u *paymentUC) Verify(ctx context.Context, userID string, in VerifyPaymentInput) (*model.PaymentOrder, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Verify")()

	switch {
	case in.OrderID == "":
		return nil, domain.NewInvalidArgument("orderId", "required")
	case in.GatewayOrderID == "":
		return nil, domain.NewInvalidArgument("gatewayOrderId", "required")
	case in.GatewayPaymentID == "":
		return nil, domain.NewInvalidArgument("gatewayPaymentId", "required")
	case in.Signature == "":
		return nil, domain.NewInvalidArgument("signature", "required")
	}

	l := logging.With(logging.WithOrderID(ctx, in.OrderID), u.log)

	// nothing is read or written before the signature checks out
	if err := u.verifier.VerifyPayment(in.GatewayOrderID, in.GatewayPaymentID, in.Signature); err != nil {
		metrics.IncSignatureFailure(security.PathClient)
		l.Warn().
			Err(err).
			Str("gateway_order_id", in.GatewayOrderID).
			Str("gateway_payment_id", in.GatewayPaymentID).
			Str("signature", logging.Redact(in.Signature, u.dev)).
			Msg("payment signature rejected")
		return nil, err
	}

	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		method = "gateway"
	}
	paymentID := in.GatewayPaymentID

	res, err := u.sm.Apply(ctx, Transition{
		OrderID:    in.OrderID,
		From:       model.OrderStatusPending,
		To:         model.OrderStatusCompleted,
		Patch:      model.StatusPatch{TransactionID: &paymentID, PaymentMethod: &method},
		Idempotent: true,
		Guard:      ownedGatewayOrder(userID, in.GatewayOrderID),
	})
	if err != nil {
		if errors.Is(err, domain.ErrStateConflict) {
			l.Warn().Err(err).Msg("verified payment for an order that cannot complete")
		}
		return nil, err
	}
	return res.Order, nil
}

func (u *paymentUC) ReportFailure(ctx context.Context, userID string, in ReportFailureInput) (*model.PaymentOrder, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.ReportFailure")()

	if in.OrderID == "" {
		return nil, domain.NewInvalidArgument("orderId", "required")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = "reported by client"
	}

	res, err := u.sm.Apply(ctx, Transition{
		OrderID:    in.OrderID,
		From:       model.OrderStatusPending,
		To:         model.OrderStatusFailed,
		Patch:      model.StatusPatch{FailureReason: &reason},
		Idempotent: true,
		Guard:      ownedGatewayOrder(userID, in.GatewayOrderID),
	})
	if err != nil {
		return nil, err
	}
	return res.Order, nil
}

// ownedGatewayOrder rejects orders that belong to someone else or were
// registered under a different gateway order id.
func ownedGatewayOrder(userID, gatewayOrderID string) func(*model.PaymentOrder) error {
	return func(o *model.PaymentOrder) error {
		if o.UserID != userID {
			return domain.ErrForbidden
		}
		if gatewayOrderID != "" && o.GatewayOrderID != gatewayOrderID {
			return domain.NewInvalidArgument("gatewayOrderId", "does not match order")
		}
		return nil
	}
}
