// Package postgres persists job rows; page and bundle artifacts live on the
// snapshot store, so the database holds lifecycle state and summary metrics
// only.
package postgres

import (
	"context"
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"policonv/internal/config"
)

// connMaxLifetime bounds how long a pooled connection is reused. Mapping
// jobs can hold claims for minutes, so stale connections are recycled rather
// than kept for the process lifetime.
const connMaxLifetime = 30 * time.Minute

// NewDB opens the jobs database and verifies it is reachable before any
// worker starts claiming from it.
func NewDB(cfg *config.DBConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	log.Printf("postgres: connected to %s/%s (max_open=%d, max_idle=%d)",
		cfg.Host, cfg.Name, cfg.MaxOpen, cfg.MaxIdle)
	return db, nil
}
