package repository

import (
	"context"

	"course-payments/internal/domain/model"
)

// CatalogRepository reads authoritative prices.
type CatalogRepository interface {
	FindItem(ctx context.Context, tx Tx, itemType model.ItemType, itemID string) (*model.CatalogItem, error)
	Save(ctx context.Context, tx Tx, item *model.CatalogItem) error
}
