package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"course-payments/internal/config"
	"course-payments/internal/domain/model"
	"course-payments/internal/infra/api"
	pg "course-payments/internal/infra/db/postgres"
)

func main() {
	// registered before LoadConfig parses the command line
	mintFor := flag.String("mint-user", "", "print a bearer token for this user id (dev only)")
	mintTTL := flag.Duration("mint-ttl", 24*time.Hour, "lifetime of minted tokens")

	// ---- Config ----
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Connect Postgres
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	catalog := pg.NewPostgresCatalogRepo(pool)
	cur := cfg.Gateway.Currency

	// Save is an upsert, so re-running refreshes prices
	seed := []model.CatalogItem{
		{ItemType: model.ItemTypeCourse, ItemID: "go-fundamentals", Title: "Go Fundamentals", Price: 499_00},
		{ItemType: model.ItemTypeCourse, ItemID: "distributed-systems", Title: "Distributed Systems in Go", Price: 1_499_00},
		{ItemType: model.ItemTypeService, ItemID: "code-review", Title: "Monthly Code Review", Price: 999_00},
		{ItemType: model.ItemTypeService, ItemID: "mentoring", Title: "1:1 Mentoring", Price: 2_499_00},
	}
	for i := range seed {
		it := &seed[i]
		it.Currency, it.Active = cur, true
		if err := catalog.Save(ctx, nil, it); err != nil {
			log.Fatalf("seed %s/%s: %v", it.ItemType, it.ItemID, err)
		}
		fmt.Printf("seeded: %s/%s %q price=%d %s\n", it.ItemType, it.ItemID, it.Title, it.Price, it.Currency)
	}

	if *mintFor != "" {
		if !cfg.Runtime.Dev {
			log.Fatalf("-mint-user requires -dev")
		}
		auth := api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AdminRole)
		for _, role := range []string{"user", cfg.Auth.AdminRole} {
			tok, err := auth.Mint(*mintFor, role, *mintTTL)
			if err != nil {
				log.Fatalf("mint %s token: %v", role, err)
			}
			fmt.Printf("%s token: %s\n", role, tok)
		}
	}

	fmt.Println("✅ Seeding complete.")
}
