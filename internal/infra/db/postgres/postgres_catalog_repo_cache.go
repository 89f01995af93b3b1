package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"course-payments/internal/domain/model"
	"course-payments/internal/domain/ports/repository"
	"course-payments/internal/infra/metrics"
	red "course-payments/internal/infra/redis"
)

var _ repository.CatalogRepository = (*catalogRepoCacheDecorator)(nil)

// defaultCatalogTTL bounds how long a price changed outside this service
// can still be quoted from cache.
const defaultCatalogTTL = time.Minute

// catalogRepoCacheDecorator caches catalog prices in Redis. Redis failures
// degrade to the database; they never fail a read.
type catalogRepoCacheDecorator struct {
	inner repository.CatalogRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewCatalogRepoCacheDecorator(inner repository.CatalogRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.CatalogRepository {
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &catalogRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   logger,
	}
}

func catalogKey(itemType model.ItemType, itemID string) string {
	return fmt.Sprintf("catalog:%s:%s", itemType, itemID)
}

func (d *catalogRepoCacheDecorator) FindItem(ctx context.Context, tx repository.Tx, itemType model.ItemType, itemID string) (*model.CatalogItem, error) {
	key := catalogKey(itemType, itemID)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var it model.CatalogItem
		if json.Unmarshal([]byte(val), &it) == nil {
			metrics.IncCatalogCache("hit")
			return &it, nil
		}
		metrics.IncCatalogCache("miss")
	} else if errors.Is(err, redis.Nil) {
		metrics.IncCatalogCache("miss")
	} else {
		metrics.IncCatalogCache("error")
		d.log.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	}

	it, err := d.inner.FindItem(ctx, tx, itemType, itemID)
	if err != nil {
		return nil, err
	}
	if it != nil {
		b, _ := json.Marshal(it)
		if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
			d.log.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
		}
	}
	return it, nil
}

// For write operations, we must invalidate the cache.
func (d *catalogRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, it *model.CatalogItem) error {
	if err := d.cache.Del(ctx, catalogKey(it.ItemType, it.ItemID)); err != nil {
		d.log.Warn().Err(err).Msg("catalog cache invalidation failed")
	}
	return d.inner.Save(ctx, tx, it)
}
