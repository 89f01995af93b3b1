package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"course-payments/internal/domain"
	"course-payments/internal/domain/model"
	"course-payments/internal/domain/ports/repository"
)

var _ repository.CatalogRepository = (*catalogRepo)(nil)

type catalogRepo struct{ pool *pgxpool.Pool }

func NewPostgresCatalogRepo(pool *pgxpool.Pool) *catalogRepo {
	return &catalogRepo{pool: pool}
}

func (r *catalogRepo) FindItem(ctx context.Context, tx repository.Tx, itemType model.ItemType, itemID string) (*model.CatalogItem, error) {
	const q = `SELECT item_type, item_id, title, price, currency, active FROM catalog_items WHERE item_type=$1 AND item_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, string(itemType), itemID)
	if err != nil {
		return nil, err
	}
	var (
		it  model.CatalogItem
		typ string
	)
	if err := row.Scan(&typ, &it.ItemID, &it.Title, &it.Price, &it.Currency, &it.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		if isConnError(err) {
			return nil, transient(err)
		}
		return nil, domain.ErrReadDatabaseRow
	}
	it.ItemType = model.ItemType(typ)
	return &it, nil
}

// Save upserts a catalog row. Only the seed tool writes here.
func (r *catalogRepo) Save(ctx context.Context, tx repository.Tx, it *model.CatalogItem) error {
	const q = `
INSERT INTO catalog_items (item_type, item_id, title, price, currency, active, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())
ON CONFLICT (item_type, item_id) DO UPDATE SET
  title=$3, price=$4, currency=$5, active=$6, updated_at=NOW();`
	_, err := execSQL(ctx, r.pool, tx, q, string(it.ItemType), it.ItemID, it.Title, it.Price, it.Currency, it.Active)
	return mapExecErr(err)
}
