package main

// One-shot job that brings the chat-analysis schema up to date:
//   go run ./cmd/migrate
// Runs the embedded goose migrations and exits, so it can be used as a
// deploy hook ahead of the api and worker processes.

import (
	"context"
	"log"
	"time"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/config"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/storage/db"
)

const migrateTimeout = 2 * time.Minute

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		log.Fatalf("run migrations: %v", err)
	}
	log.Printf("chat-analysis schema is up to date")
}
