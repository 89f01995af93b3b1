package main

import (
	"context"
	"log"

	"github.com/jackc/pgx/v4/pgxpool"

	"course-payments/internal/config"
	"course-payments/internal/domain/model"
	"course-payments/internal/infra/db/postgres"
	"course-payments/internal/infra/redis"
)

// This script is for setting up a clean, predictable database state
// for manual end-to-end testing against the sandbox gateway.
func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	if !cfg.Runtime.Dev {
		log.Fatalf("e2e-setup wipes all data and only runs with -dev")
	}

	// --- Connect to Postgres ---
	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 5)
	if err != nil {
		log.Fatalf("postgres connection failed: %v", err)
	}
	defer pool.Close()

	log.Println("--- Starting E2E Environment Setup ---")

	// 1. Clean the Redis cache so stale catalog prices are not served.
	if cfg.Redis.URL != "" {
		log.Println("[1/3] Wiping Redis cache...")
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisClient.Close()
		if err := redisClient.FlushDB(ctx); err != nil {
			log.Fatalf("failed to flush redis: %v", err)
		}
	} else {
		log.Println("[1/3] Redis disabled, skipping")
	}

	// 2. Clean the database completely.
	log.Println("[2/3] Wiping all existing database data...")
	_, err = pool.Exec(ctx, `
		TRUNCATE
			webhook_events, entitlements, payment_orders, catalog_items
		RESTART IDENTITY CASCADE;
	`)
	if err != nil {
		log.Fatalf("failed to truncate tables: %v", err)
	}

	// 3. Seed a small catalog with one inactive item for negative paths.
	log.Println("[3/3] Seeding e2e catalog...")
	seedCatalog(ctx, pool, cfg.Gateway.Currency)

	log.Println("--- ✅ E2E Environment Setup Complete ---")
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool, currency string) {
	repo := postgres.NewPostgresCatalogRepo(pool)
	items := []*model.CatalogItem{
		{ItemType: model.ItemTypeCourse, ItemID: "e2e-course", Title: "E2E Course", Price: 100_00, Currency: currency, Active: true},
		{ItemType: model.ItemTypeService, ItemID: "e2e-service", Title: "E2E Service", Price: 50_00, Currency: currency, Active: true},
		{ItemType: model.ItemTypeCourse, ItemID: "e2e-retired", Title: "Retired", Price: 10_00, Currency: currency, Active: false},
	}
	for _, it := range items {
		if err := repo.Save(ctx, nil, it); err != nil {
			log.Printf("failed to save %s/%s: %v", it.ItemType, it.ItemID, err)
		}
	}
}
