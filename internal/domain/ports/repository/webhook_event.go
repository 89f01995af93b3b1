package repository

import (
	"context"

	"course-payments/internal/domain/model"
)

// WebhookEventRepository keeps the audit trail of every webhook delivery.
type WebhookEventRepository interface {
	Record(ctx context.Context, tx Tx, rec *model.WebhookEventRecord) error
}
