// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/arguswatch/argus/internal/metrics"
	"github.com/arguswatch/argus/internal/models"
)

// GetActiveConflicts returns active conflicts in id order, keywords
// decoded from their stored JSON form.
func (db *DB) GetActiveConflicts(ctx context.Context) ([]models.Conflict, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("select", "conflicts", start)

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, short_code, region_bias, keywords, is_active
		FROM conflicts WHERE is_active = TRUE
		ORDER BY id ASC`)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", "conflicts").Inc()
		return nil, fmt.Errorf("query active conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []models.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, rows.Err()
}

// GetConflict loads one conflict regardless of its active flag.
func (db *DB) GetConflict(ctx context.Context, id int64) (*models.Conflict, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("select", "conflicts", start)

	row := db.conn.QueryRowContext(ctx, `
		SELECT id, name, short_code, region_bias, keywords, is_active
		FROM conflicts WHERE id = ?`, id)

	c, err := scanConflict(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", "conflicts").Inc()
		return nil, fmt.Errorf("get conflict %d: %w", id, err)
	}
	return &c, nil
}

// UpsertConflict inserts or updates a conflict by short code. Used by
// seeding and administrative tooling.
func (db *DB) UpsertConflict(ctx context.Context, c *models.Conflict) error {
	start := time.Now()
	defer metrics.ObserveDBQuery("upsert", "conflicts", start)

	keywords, err := json.Marshal(c.Keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords for %s: %w", c.ShortCode, err)
	}

	err = db.conn.QueryRowContext(ctx, `
		INSERT INTO conflicts (name, short_code, region_bias, keywords, is_active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (short_code) DO UPDATE SET
			name = excluded.name,
			region_bias = excluded.region_bias,
			keywords = excluded.keywords,
			is_active = excluded.is_active
		RETURNING id`,
		c.Name, c.ShortCode, c.RegionBias, string(keywords), c.IsActive,
	).Scan(&c.ID)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("upsert", "conflicts").Inc()
		return fmt.Errorf("upsert conflict %s: %w", c.ShortCode, err)
	}
	return nil
}

// GetSource loads one source with its filter rules decoded.
func (db *DB) GetSource(ctx context.Context, id int64) (*models.Source, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("select", "sources", start)

	var (
		src   models.Source
		rules string
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, platform, identifier, reliability_tier, default_conflict_id, filter_rules
		FROM sources WHERE id = ?`, id,
	).Scan(&src.ID, &src.Platform, &src.Identifier, &src.ReliabilityTier,
		&src.DefaultConflictID, &rules)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", "sources").Inc()
		return nil, fmt.Errorf("get source %d: %w", id, err)
	}

	if rules != "" {
		if err := json.Unmarshal([]byte(rules), &src.FilterRules); err != nil {
			return nil, fmt.Errorf("parse filter rules for source %d: %w", id, err)
		}
	}
	return &src, nil
}

// FindSource resolves a source by its platform identity, used by live
// intake to attach messages to registered sources.
func (db *DB) FindSource(ctx context.Context, platform, identifier string) (*models.Source, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("select", "sources", start)

	var id int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM sources WHERE platform = ? AND identifier = ?`,
		platform, identifier,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", "sources").Inc()
		return nil, fmt.Errorf("find source %s/%s: %w", platform, identifier, err)
	}
	return db.GetSource(ctx, id)
}

// UpsertSource inserts or updates a source by (platform, identifier).
func (db *DB) UpsertSource(ctx context.Context, src *models.Source) error {
	start := time.Now()
	defer metrics.ObserveDBQuery("upsert", "sources", start)

	rules, err := json.Marshal(src.FilterRules)
	if err != nil {
		return fmt.Errorf("marshal filter rules for %s/%s: %w", src.Platform, src.Identifier, err)
	}

	err = db.conn.QueryRowContext(ctx, `
		INSERT INTO sources (platform, identifier, reliability_tier, default_conflict_id, filter_rules)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (platform, identifier) DO UPDATE SET
			reliability_tier = excluded.reliability_tier,
			default_conflict_id = excluded.default_conflict_id,
			filter_rules = excluded.filter_rules
		RETURNING id`,
		src.Platform, src.Identifier, src.ReliabilityTier,
		src.DefaultConflictID, string(rules),
	).Scan(&src.ID)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("upsert", "sources").Inc()
		return fmt.Errorf("upsert source %s/%s: %w", src.Platform, src.Identifier, err)
	}
	return nil
}

func scanConflict(row rowScanner) (models.Conflict, error) {
	var (
		c        models.Conflict
		keywords string
	)
	err := row.Scan(&c.ID, &c.Name, &c.ShortCode, &c.RegionBias, &keywords, &c.IsActive)
	if err != nil {
		return c, err
	}
	if keywords != "" {
		if err := json.Unmarshal([]byte(keywords), &c.Keywords); err != nil {
			return c, fmt.Errorf("parse keywords for conflict %d: %w", c.ID, err)
		}
	}
	return c, nil
}
