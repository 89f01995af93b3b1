package repository

import (
	"context"

	"course-payments/internal/domain/model"
)

// -----------------------------
// Payment orders
// -----------------------------

type OrderRepository interface {
	// Save inserts a new order. Orders are immutable apart from status changes,
	// so there is no upsert.
	Save(ctx context.Context, tx Tx, o *model.PaymentOrder) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentOrder, error)
	FindByGatewayOrderID(ctx context.Context, tx Tx, gatewayOrderID string) (*model.PaymentOrder, error)
	// CompareAndSetStatus moves the order from -> to and writes patch, but only
	// if the persisted status still equals from. It reports whether a row changed.
	CompareAndSetStatus(ctx context.Context, tx Tx, id string, from, to model.OrderStatus, patch model.StatusPatch) (bool, error)
}
