package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/samirrijal/cityplanner/internal/adapters/postgres"
	"github.com/samirrijal/cityplanner/internal/core/domain"
	"github.com/samirrijal/cityplanner/internal/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|seed FILE>")
	}

	cfg, err := config.Load("cityplanner-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN(), 2)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	switch os.Args[1] {
	case "up":
		runMigrations(ctx, db)
	case "seed":
		path := "migrations/seed/paris_places.json"
		if len(os.Args) > 2 {
			path = os.Args[2]
		}
		seedPlaces(ctx, db, path)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func runMigrations(ctx context.Context, db *postgres.DB) {
	files := []string{
		"migrations/001_init_extensions.sql",
		"migrations/002_places.sql",
	}

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		_, err = db.Pool.Exec(ctx, string(data))
		if err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}

		fmt.Printf("OK  %s\n", f)
	}

	log.Println("all migrations applied")
}

func seedPlaces(ctx context.Context, db *postgres.DB, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}

	var places []domain.Place
	if err := json.Unmarshal(data, &places); err != nil {
		log.Fatalf("parse %s: %v", path, err)
	}
	for i, p := range places {
		if p.ID == "" || p.Name == "" || !p.Location.InRange() {
			log.Fatalf("%s: place %d is missing id, name or a valid location", path, i)
		}
	}

	repo := postgres.NewPlaceRepo(db)
	if err := repo.UpsertBatch(ctx, places); err != nil {
		log.Fatalf("seed: %v", err)
	}
	n, err := repo.Count(ctx)
	if err != nil {
		log.Fatalf("count: %v", err)
	}
	log.Printf("seeded %d places from %s (%d total)", len(places), path, n)
}
