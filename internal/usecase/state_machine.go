package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"course-payments/internal/domain"
	"course-payments/internal/domain/model"
	"course-payments/internal/domain/ports/adapter"
	"course-payments/internal/domain/ports/repository"
	"course-payments/internal/infra/logging"
	"course-payments/internal/infra/metrics"
)

// Transition describes one requested status change.
type Transition struct {
	OrderID string
	From    model.OrderStatus
	To      model.OrderStatus
	Patch   model.StatusPatch
	// Idempotent reports an order already sitting in To as success.
	// Human-triggered paths leave it false and get ErrStateConflict instead.
	Idempotent bool
	// Guard inspects the current record before the write; a non-nil error aborts.
	Guard func(o *model.PaymentOrder) error
}

// TransitionResult is the post-transition view of the order.
type TransitionResult struct {
	Order          *model.PaymentOrder
	Applied        bool // this call performed the write and its side effects
	AlreadyApplied bool // another call got there first
}

// OrderStateMachine is the only writer of order status. Every transition is a
// single conditional update; fulfillment runs in the same transaction and only
// for the caller whose update changed a row.
type OrderStateMachine struct {
	orders       repository.OrderRepository
	entitlements repository.EntitlementRepository
	tm           repository.TransactionManager
	events       adapter.OrderEventPublisher
	log          *zerolog.Logger
	now          func() time.Time
}

func NewOrderStateMachine(
	orders repository.OrderRepository,
	entitlements repository.EntitlementRepository,
	tm repository.TransactionManager,
	events adapter.OrderEventPublisher,
	logger *zerolog.Logger,
) *OrderStateMachine {
	return &OrderStateMachine{
		orders:       orders,
		entitlements: entitlements,
		tm:           tm,
		events:       events,
		log:          logger,
		now:          time.Now,
	}
}

func (sm *OrderStateMachine) Apply(ctx context.Context, tr Transition) (TransitionResult, error) {
	defer logging.TraceDuration(sm.log, "OrderStateMachine.Apply")()

	if !model.CanTransition(tr.From, tr.To) {
		return TransitionResult{}, fmt.Errorf("illegal transition %s -> %s: %w", tr.From, tr.To, domain.ErrStateConflict)
	}

	var res TransitionResult
	err := sm.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		res = TransitionResult{}
		o, err := sm.orders.FindByID(ctx, tx, tr.OrderID)
		if err != nil {
			return err
		}
		if tr.Guard != nil {
			if err := tr.Guard(o); err != nil {
				return err
			}
		}
		if o.Status != tr.From {
			return sm.settle(o, tr, &res)
		}

		ok, err := sm.orders.CompareAndSetStatus(ctx, tx, o.ID, tr.From, tr.To, tr.Patch)
		if err != nil {
			return err
		}
		if !ok {
			// lost the race: the winner has committed, read what it wrote
			cur, err := sm.orders.FindByID(ctx, tx, o.ID)
			if err != nil {
				return err
			}
			return sm.settle(cur, tr, &res)
		}

		tr.Patch.Apply(o, tr.To)
		if err := sm.fulfill(ctx, tx, o, tr.To); err != nil {
			return err
		}
		res.Order = o
		res.Applied = true
		return nil
	})

	l := logging.With(logging.WithOrderID(ctx, tr.OrderID), sm.log)
	switch {
	case err == nil && res.Applied:
		metrics.IncOrderTransition(string(tr.From), string(tr.To), "applied")
		metrics.IncPayment(string(tr.To))
		if tr.To == model.OrderStatusCompleted {
			metrics.AddPaymentRevenue(res.Order.Currency, res.Order.Amount)
		}
		l.Info().Str("from", string(tr.From)).Str("to", string(tr.To)).Msg("order transition applied")
		sm.publish(ctx, res.Order)
	case err == nil:
		metrics.IncOrderTransition(string(tr.From), string(tr.To), "already_applied")
		l.Debug().Str("to", string(tr.To)).Msg("order transition already applied")
	case errors.Is(err, domain.ErrStateConflict):
		metrics.IncOrderTransition(string(tr.From), string(tr.To), "conflict")
	default:
		metrics.IncOrderTransition(string(tr.From), string(tr.To), "error")
	}
	return res, err
}

// settle decides between already-applied and conflict for an order that is
// no longer in the expected source state.
func (sm *OrderStateMachine) settle(cur *model.PaymentOrder, tr Transition, res *TransitionResult) error {
	if cur.Status == tr.To && tr.Idempotent {
		if tr.Patch.TransactionID != nil && cur.TransactionID != *tr.Patch.TransactionID {
			sm.log.Warn().
				Str("order_id", cur.ID).
				Str("recorded_payment", cur.TransactionID).
				Str("reported_payment", *tr.Patch.TransactionID).
				Msg("order already completed by a different payment")
		}
		res.Order = cur
		res.AlreadyApplied = true
		return nil
	}
	return fmt.Errorf("order %s is %s, cannot move %s -> %s: %w", cur.ID, cur.Status, tr.From, tr.To, domain.ErrStateConflict)
}

func (sm *OrderStateMachine) fulfill(ctx context.Context, tx repository.Tx, o *model.PaymentOrder, to model.OrderStatus) error {
	switch to {
	case model.OrderStatusCompleted, model.OrderStatusFreeConsultation, model.OrderStatusFreeService:
		for _, e := range model.EntitlementsFor(o, sm.now().UTC()) {
			if err := sm.entitlements.Grant(ctx, tx, e); err != nil {
				return fmt.Errorf("grant %s/%s: %w", e.ItemType, e.ItemID, err)
			}
		}
	case model.OrderStatusRefunded:
		if _, err := sm.entitlements.RevokeByOrder(ctx, tx, o.ID, sm.now().UTC()); err != nil {
			return fmt.Errorf("revoke entitlements: %w", err)
		}
	}
	return nil
}

func (sm *OrderStateMachine) publish(ctx context.Context, o *model.PaymentOrder) {
	if sm.events == nil {
		return
	}
	_ = sm.events.Publish(ctx, adapter.OrderEvent{
		Type:       "order." + string(o.Status),
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     o.Status,
		Amount:     o.Amount,
		Currency:   o.Currency,
		OccurredAt: sm.now().UTC(),
	})
}
