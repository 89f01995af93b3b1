//go:build !integration

package postgres

import (
	"context"
	"time"

	"course-payments/internal/domain/model"
	"course-payments/internal/domain/ports/repository"
	red "course-payments/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerCatalogRepo mocks the database repository that the catalog decorator wraps.
type mockInnerCatalogRepo struct {
	FindItemFunc func(ctx context.Context, tx repository.Tx, itemType model.ItemType, itemID string) (*model.CatalogItem, error)
	SaveFunc     func(ctx context.Context, tx repository.Tx, it *model.CatalogItem) error
}

func (m *mockInnerCatalogRepo) FindItem(ctx context.Context, tx repository.Tx, itemType model.ItemType, itemID string) (*model.CatalogItem, error) {
	return m.FindItemFunc(ctx, tx, itemType, itemID)
}
func (m *mockInnerCatalogRepo) Save(ctx context.Context, tx repository.Tx, it *model.CatalogItem) error {
	return m.SaveFunc(ctx, tx, it)
}

// mockRedisClient is a func-field stand-in for the Redis wrapper.
type mockRedisClient struct {
	GetFunc func(ctx context.Context, key string) (string, error)
	SetFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc func(ctx context.Context, keys ...string) error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	return 0, nil
}
