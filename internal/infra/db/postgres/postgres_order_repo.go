package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"course-payments/internal/domain"
	"course-payments/internal/domain/model"
	"course-payments/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewPostgresOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderColumns = `id, user_id, amount, currency, status, payment_method, gateway_order_id, transaction_id,
  items, is_consultation_payment, consultation_price, payment_activated_by_admin, activated_at, activated_by,
  failure_reason, refund_id, created_at, updated_at`

func (r *orderRepo) Save(ctx context.Context, tx repository.Tx, o *model.PaymentOrder) error {
	if o == nil || len(o.Items) == 0 {
		return domain.NewInvalidOrder("items", "order without items is never persisted")
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	const q = `
INSERT INTO payment_orders (` + orderColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18);`

	_, err = execSQL(ctx, r.pool, tx, q,
		o.ID, o.UserID, o.Amount, o.Currency, string(o.Status), o.PaymentMethod, nullIfEmpty(o.GatewayOrderID), o.TransactionID,
		string(items), o.IsConsultationPayment, o.ConsultationPrice, o.PaymentActivatedByAdmin, o.ActivatedAt, o.ActivatedBy,
		o.FailureReason, o.RefundID, o.CreatedAt, o.UpdatedAt,
	)
	return mapExecErr(err)
}

func (r *orderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentOrder, error) {
	const q = `SELECT ` + orderColumns + ` FROM payment_orders WHERE id=$1;`
	return r.findOne(ctx, tx, q, id)
}

func (r *orderRepo) FindByGatewayOrderID(ctx context.Context, tx repository.Tx, gatewayOrderID string) (*model.PaymentOrder, error) {
	if gatewayOrderID == "" {
		return nil, domain.ErrNotFound
	}
	const q = `SELECT ` + orderColumns + ` FROM payment_orders WHERE gateway_order_id=$1 LIMIT 1;`
	return r.findOne(ctx, tx, q, gatewayOrderID)
}

func (r *orderRepo) findOne(ctx context.Context, tx repository.Tx, q string, arg string) (*model.PaymentOrder, error) {
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		if isConnError(err) {
			return nil, transient(err)
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return o, nil
}

// CompareAndSetStatus is the only way an order's status changes.
// The WHERE clause carries the expected status; under READ COMMITTED a
// concurrent updater blocks on the row lock and then re-checks the predicate,
// so exactly one caller observes RowsAffected == 1.
func (r *orderRepo) CompareAndSetStatus(
	ctx context.Context, tx repository.Tx, id string, from, to model.OrderStatus, p model.StatusPatch,
) (bool, error) {
	const q = `
    UPDATE payment_orders
       SET status = $3,
           transaction_id = COALESCE($4, transaction_id),
           payment_method = COALESCE($5, payment_method),
           failure_reason = COALESCE($6, failure_reason),
           refund_id = COALESCE($7, refund_id),
           activated_by = COALESCE($8, activated_by),
           payment_activated_by_admin = payment_activated_by_admin OR $8::text IS NOT NULL,
           activated_at = COALESCE($9, activated_at),
           updated_at = NOW()
     WHERE id = $1
       AND status = $2`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(from), string(to),
		p.TransactionID, p.PaymentMethod, p.FailureReason, p.RefundID, p.ActivatedBy, p.ActivatedAt)
	if err != nil {
		return false, mapExecErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func scanOrder(row pgx.Row) (*model.PaymentOrder, error) {
	o := &model.PaymentOrder{}
	var (
		status    string
		gatewayID *string
		items     []byte
	)
	if err := row.Scan(
		&o.ID, &o.UserID, &o.Amount, &o.Currency, &status, &o.PaymentMethod, &gatewayID, &o.TransactionID,
		&items, &o.IsConsultationPayment, &o.ConsultationPrice, &o.PaymentActivatedByAdmin, &o.ActivatedAt, &o.ActivatedBy,
		&o.FailureReason, &o.RefundID, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	if gatewayID != nil {
		o.GatewayOrderID = *gatewayID
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return o, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
