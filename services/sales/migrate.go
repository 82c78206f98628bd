package main

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaSQL string

// runMigrations aplica o schema usando database/sql com o driver lib/pq
func runMigrations(ctx context.Context, cfg *Config) error {
	db, err := sql.Open("postgres", cfg.LibPQDSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Minute)

	if err := waitForDB(ctx, db.PingContext); err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	zap.S().Info("✅ Schema applied")
	return nil
}

// waitForDB tenta o ping até 30 vezes, uma por segundo
func waitForDB(ctx context.Context, ping func(ctx context.Context) error) error {
	for i := 0; i < 30; i++ {
		if err := ping(ctx); err == nil {
			return nil
		}
		zap.S().Infof("⏳ Waiting for database... (%d/30)", i+1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return fmt.Errorf("failed to connect to database after 30 attempts")
}
