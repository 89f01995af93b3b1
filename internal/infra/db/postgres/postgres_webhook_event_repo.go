package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"course-payments/internal/domain/model"
	"course-payments/internal/domain/ports/repository"
)

var _ repository.WebhookEventRepository = (*webhookEventRepo)(nil)

type webhookEventRepo struct{ pool *pgxpool.Pool }

func NewPostgresWebhookEventRepo(pool *pgxpool.Pool) *webhookEventRepo {
	return &webhookEventRepo{pool: pool}
}

// Record appends one audit row per delivery. Redeliveries of the same
// provider event id are kept as separate rows.
func (r *webhookEventRepo) Record(ctx context.Context, tx repository.Tx, rec *model.WebhookEventRecord) error {
	const q = `
INSERT INTO webhook_events (event_id, kind, gateway_order_id, signature_valid, outcome, error, received_at, processed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	_, err := execSQL(ctx, r.pool, tx, q,
		rec.EventID, rec.Kind, rec.GatewayOrderID, rec.SignatureValid, rec.Outcome, rec.Error, rec.ReceivedAt, rec.ProcessedAt)
	return mapExecErr(err)
}
