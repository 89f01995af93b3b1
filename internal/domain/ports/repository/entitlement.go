package repository

import (
	"context"
	"time"

	"course-payments/internal/domain/model"
)

type EntitlementRepository interface {
	// Grant is idempotent per (order, item type, item id).
	Grant(ctx context.Context, tx Tx, e *model.Entitlement) error
	RevokeByOrder(ctx context.Context, tx Tx, orderID string, at time.Time) (int64, error)
	ListByOrder(ctx context.Context, tx Tx, orderID string) ([]*model.Entitlement, error)
}
