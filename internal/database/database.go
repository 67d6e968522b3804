// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

// Package database is the DuckDB persistence layer: message intake and
// claims, event writes, the conflict and source registries, and the
// durable geocode cache.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"

	"github.com/arguswatch/argus/internal/config"
	"github.com/arguswatch/argus/internal/logging"
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  config.DatabaseConfig
	log  zerolog.Logger
}

// New opens the database and initializes the schema.
func New(cfg config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Create the data directory on first run.
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	connStr := cfg.Path
	if cfg.Path != ":memory:" {
		connStr = fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
			cfg.Path, numThreads, cfg.MaxMemory)
	}

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// DuckDB is an embedded engine; a small pool keeps writer contention
	// low while allowing concurrent reads.
	conn.SetMaxOpenConns(numThreads)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	db := &DB{
		conn: conn,
		cfg:  cfg,
		log:  logging.With().Str("component", "database").Logger(),
	}

	if err := db.initSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.log.Info().Str("path", cfg.Path).Msg("database ready")
	return db, nil
}

// Close releases the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// initSchema creates tables and sequences if they do not exist. Ordered
// so foreign references always point at already-created tables.
func (db *DB) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_source_id START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_message_id START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_conflict_id START 1`,

		`CREATE TABLE IF NOT EXISTS conflicts (
			id          BIGINT PRIMARY KEY DEFAULT nextval('seq_conflict_id'),
			name        VARCHAR NOT NULL,
			short_code  VARCHAR NOT NULL UNIQUE,
			region_bias VARCHAR NOT NULL DEFAULT '',
			keywords    VARCHAR NOT NULL DEFAULT '[]',
			is_active   BOOLEAN NOT NULL DEFAULT TRUE
		)`,

		`CREATE TABLE IF NOT EXISTS sources (
			id                  BIGINT PRIMARY KEY DEFAULT nextval('seq_source_id'),
			platform            VARCHAR NOT NULL,
			identifier          VARCHAR NOT NULL,
			reliability_tier    VARCHAR NOT NULL DEFAULT 'medium',
			default_conflict_id BIGINT NOT NULL,
			filter_rules        VARCHAR NOT NULL DEFAULT '{}',
			UNIQUE (platform, identifier)
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id          BIGINT PRIMARY KEY DEFAULT nextval('seq_message_id'),
			source_id   BIGINT NOT NULL,
			platform    VARCHAR NOT NULL,
			external_id VARCHAR NOT NULL,
			text        VARCHAR NOT NULL,
			raw_payload VARCHAR NOT NULL DEFAULT '{}',
			received_at TIMESTAMP NOT NULL,
			timestamp   TIMESTAMP NOT NULL,
			processed   BOOLEAN NOT NULL DEFAULT FALSE,
			claimed_at  TIMESTAMP,
			UNIQUE (platform, external_id)
		)`,

		`CREATE TABLE IF NOT EXISTS events (
			id             VARCHAR PRIMARY KEY,
			message_id     BIGINT NOT NULL,
			conflict_id    BIGINT NOT NULL,
			event_type     VARCHAR NOT NULL,
			latitude       DOUBLE,
			longitude      DOUBLE,
			location_name  VARCHAR NOT NULL DEFAULT '',
			geo_confidence DOUBLE NOT NULL DEFAULT 0,
			timestamp      TIMESTAMP NOT NULL,
			created_at     TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS geocode_cache (
			cache_key    VARCHAR PRIMARY KEY,
			place_name   VARCHAR NOT NULL,
			latitude     DOUBLE NOT NULL,
			longitude    DOUBLE NOT NULL,
			display_name VARCHAR NOT NULL DEFAULT '',
			confidence   DOUBLE NOT NULL DEFAULT 0,
			created_at   TIMESTAMP NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_unprocessed
			ON messages (processed, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_message
			ON events (message_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_conflict_time
			ON events (conflict_id, timestamp)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
