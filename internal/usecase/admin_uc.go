package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"course-payments/internal/domain"
	"course-payments/internal/domain/model"
	"course-payments/internal/domain/ports/adapter"
	"course-payments/internal/domain/ports/repository"
	"course-payments/internal/infra/logging"
	"course-payments/internal/infra/metrics"
)

// Compile-time check
var _ AdminUseCase = (*adminUC)(nil)

type AdminUseCase interface {
	// Activate moves a pending consultation order into its free state.
	// It is never idempotent: a second call reports ErrStateConflict.
	Activate(ctx context.Context, orderID, adminID string) (*model.PaymentOrder, error)
	// Refund refunds the captured payment and moves the order to refunded.
	Refund(ctx context.Context, orderID, adminID string) (*model.PaymentOrder, error)
	// GatewayStatus queries the gateway's view of the order.
	GatewayStatus(ctx context.Context, orderID string) (adapter.GatewayOrder, error)
}

type adminUC struct {
	sm      *OrderStateMachine
	orders  repository.OrderRepository
	gateway adapter.PaymentGateway
	log     *zerolog.Logger
	now     func() time.Time
}

func NewAdminUseCase(sm *OrderStateMachine, orders repository.OrderRepository, gateway adapter.PaymentGateway, logger *zerolog.Logger) *adminUC {
	return &adminUC{sm: sm, orders: orders, gateway: gateway, log: logger, now: time.Now}
}

func (u *adminUC) Activate(ctx context.Context, orderID, adminID string) (o *model.PaymentOrder, err error) {
	defer logging.TraceDuration(u.log, "AdminUC.Activate")()
	defer func() { metrics.IncAdminAction("activate", outcomeOf(err)) }()

	if adminID == "" {
		return nil, domain.ErrUnauthorized
	}
	cur, err := u.orders.FindByID(ctx, repository.NoTX, orderID)
	if err != nil {
		return nil, err
	}
	if !cur.IsConsultationPayment {
		return nil, domain.NewInvalidArgument("orderId", "only consultation orders can be activated")
	}
	if cur.Status != model.OrderStatusPending {
		return nil, fmt.Errorf("order %s is already %s: %w", cur.ID, cur.Status, domain.ErrStateConflict)
	}

	at := u.now().UTC()
	method := "admin"
	res, err := u.sm.Apply(ctx, Transition{
		OrderID: cur.ID,
		From:    model.OrderStatusPending,
		To:      cur.ActivationTarget(),
		Patch: model.StatusPatch{
			ActivatedBy:   &adminID,
			ActivatedAt:   &at,
			PaymentMethod: &method,
		},
		Guard: func(o *model.PaymentOrder) error {
			if !o.IsConsultationPayment {
				return domain.NewInvalidArgument("orderId", "only consultation orders can be activated")
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	logging.With(logging.WithOrderID(ctx, cur.ID), u.log).Info().
		Str("admin_id", adminID).
		Str("status", string(res.Order.Status)).
		Msg("order activated by admin")
	return res.Order, nil
}

func (u *adminUC) Refund(ctx context.Context, orderID, adminID string) (o *model.PaymentOrder, err error) {
	defer logging.TraceDuration(u.log, "AdminUC.Refund")()
	defer func() { metrics.IncAdminAction("refund", outcomeOf(err)) }()

	if adminID == "" {
		return nil, domain.ErrUnauthorized
	}
	cur, err := u.orders.FindByID(ctx, repository.NoTX, orderID)
	if err != nil {
		return nil, err
	}
	if cur.Status != model.OrderStatusCompleted {
		return nil, fmt.Errorf("order %s is %s, only completed orders can be refunded: %w", cur.ID, cur.Status, domain.ErrStateConflict)
	}
	if cur.TransactionID == "" {
		return nil, domain.NewInvalidArgument("orderId", "order has no captured payment")
	}

	l := logging.With(logging.WithOrderID(ctx, cur.ID), u.log)

	// gateway refunds are idempotent per payment, so a retry after a failed
	// local write is safe
	refund, err := u.gateway.RefundPayment(ctx, cur.TransactionID, 0, map[string]string{
		"order_id": cur.ID,
		"admin_id": adminID,
	})
	if err != nil {
		l.Error().Err(err).Str("payment_id", cur.TransactionID).Msg("gateway refund failed")
		return nil, err
	}

	refundID := refund.ID
	res, err := u.sm.Apply(ctx, Transition{
		OrderID:    cur.ID,
		From:       model.OrderStatusCompleted,
		To:         model.OrderStatusRefunded,
		Patch:      model.StatusPatch{RefundID: &refundID},
		Idempotent: true,
	})
	if err != nil {
		l.Error().Err(err).Str("refund_id", refundID).Msg("refund issued but order not updated")
		return nil, err
	}

	l.Info().Str("admin_id", adminID).Str("refund_id", refundID).Msg("order refunded")
	return res.Order, nil
}

func (u *adminUC) GatewayStatus(ctx context.Context, orderID string) (adapter.GatewayOrder, error) {
	defer logging.TraceDuration(u.log, "AdminUC.GatewayStatus")()

	o, err := u.orders.FindByID(ctx, repository.NoTX, orderID)
	if err != nil {
		return adapter.GatewayOrder{}, err
	}
	if o.GatewayOrderID == "" {
		return adapter.GatewayOrder{}, fmt.Errorf("order %s was never sent to the gateway: %w", o.ID, domain.ErrNotFound)
	}
	return u.gateway.FetchOrder(ctx, o.GatewayOrderID)
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	return domain.Kind(err)
}
