// Package trackdb persists departure-date records in SQLite so the
// first-write-wins association survives a restart.
package trackdb

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // CGo-based SQLite driver

	"tracker.junat.live/internal/appconf"
	"tracker.junat.live/internal/logging"
)

//go:embed schema.sql
var ddl string

const memoryPath = ":memory:"

type Config struct {
	DBPath string
	Env    appconf.Environment
}

// Client owns the SQLite handle.
type Client struct {
	config Config
	DB     *sql.DB
}

func NewClient(ctx context.Context, config Config) (*Client, error) {
	db, err := createDB(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create DB: %w", err)
	}
	return &Client{config: config, DB: db}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) DBPath() string {
	return c.config.DBPath
}

func createDB(ctx context.Context, config Config) (*sql.DB, error) {
	if config.Env == appconf.Test && config.DBPath != memoryPath {
		return nil, fmt.Errorf("test database must use in-memory storage, got path: %s", config.DBPath)
	}

	db, err := sql.Open("sqlite3", config.DBPath)
	if err != nil {
		return nil, err
	}
	configureConnectionPool(db, config)

	if err := configureSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error configuring SQLite: %w", err)
	}
	if err := performDatabaseMigration(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error performing database migration: %w", err)
	}
	return db, nil
}

func performDatabaseMigration(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(ddl, "-- migrate") {
		trimmed := strings.TrimSpace(stmt)
		if trimmed == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, trimmed); err != nil {
			return fmt.Errorf("error executing DDL statement [%s]: %w", trimmed, err)
		}
	}
	return nil
}

func configureSQLite(ctx context.Context, db *sql.DB) error {
	pragmas := []struct {
		name        string
		description string
	}{
		{"PRAGMA journal_mode=WAL", "Enable write-ahead logging"},
		{"PRAGMA busy_timeout=5000", "Wait up to 5s on a locked database"},
		{"PRAGMA synchronous=NORMAL", "Relax fsync in WAL mode"},
	}

	logger := slog.Default().With(slog.String("component", "trackdb"))
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma.name); err != nil {
			logging.LogError(logger, fmt.Sprintf("Failed to %s", strings.ToLower(pragma.description)), err)
			return fmt.Errorf("failed to execute %s: %w", pragma.name, err)
		}
	}
	logging.LogOperation(logger, "sqlite_settings_applied", slog.Int("pragma_count", len(pragmas)))
	return nil
}

// configureConnectionPool limits :memory: databases to one connection, since
// every connection would open its own empty database.
func configureConnectionPool(db *sql.DB, config Config) {
	if config.DBPath == memoryPath {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		return
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
}
