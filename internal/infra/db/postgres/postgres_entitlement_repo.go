package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"course-payments/internal/domain"
	"course-payments/internal/domain/model"
	"course-payments/internal/domain/ports/repository"
)

var _ repository.EntitlementRepository = (*entitlementRepo)(nil)

type entitlementRepo struct{ pool *pgxpool.Pool }

func NewPostgresEntitlementRepo(pool *pgxpool.Pool) *entitlementRepo {
	return &entitlementRepo{pool: pool}
}

func (r *entitlementRepo) Grant(ctx context.Context, tx repository.Tx, e *model.Entitlement) error {
	const q = `
INSERT INTO entitlements (id, order_id, user_id, item_type, item_id, granted_at, expires_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (order_id, item_type, item_id) DO NOTHING;`
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.OrderID, e.UserID, string(e.ItemType), e.ItemID, e.GrantedAt, e.ExpiresAt)
	return mapExecErr(err)
}

func (r *entitlementRepo) RevokeByOrder(ctx context.Context, tx repository.Tx, orderID string, at time.Time) (int64, error) {
	const q = `UPDATE entitlements SET revoked_at=$2 WHERE order_id=$1 AND revoked_at IS NULL;`
	cmd, err := execSQL(ctx, r.pool, tx, q, orderID, at)
	if err != nil {
		return 0, mapExecErr(err)
	}
	return cmd.RowsAffected(), nil
}

func (r *entitlementRepo) ListByOrder(ctx context.Context, tx repository.Tx, orderID string) ([]*model.Entitlement, error) {
	const q = `
SELECT id, order_id, user_id, item_type, item_id, granted_at, expires_at, revoked_at
  FROM entitlements WHERE order_id=$1 ORDER BY granted_at, item_id;`
	rows, err := queryRows(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.Entitlement
	for rows.Next() {
		e := new(model.Entitlement)
		var typ string
		if err := rows.Scan(&e.ID, &e.OrderID, &e.UserID, &typ, &e.ItemID, &e.GrantedAt, &e.ExpiresAt, &e.RevokedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		e.ItemType = model.ItemType(typ)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(err)
	}
	return out, nil
}
