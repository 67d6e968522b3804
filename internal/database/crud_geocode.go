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

	"github.com/arguswatch/argus/internal/metrics"
	"github.com/arguswatch/argus/internal/models"
)

// GetGeocodeCache returns the cached resolution for key, or (nil, nil)
// on a miss. Only positive results are ever stored, so a miss always
// means "not looked up yet", never "known absent".
func (db *DB) GetGeocodeCache(ctx context.Context, key string) (*models.GeocodeCacheEntry, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("select", "geocode_cache", start)

	var entry models.GeocodeCacheEntry
	err := db.conn.QueryRowContext(ctx, `
		SELECT cache_key, place_name, latitude, longitude, display_name, confidence, created_at
		FROM geocode_cache WHERE cache_key = ?`, key,
	).Scan(&entry.CacheKey, &entry.PlaceName, &entry.Latitude, &entry.Longitude,
		&entry.DisplayName, &entry.Confidence, &entry.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", "geocode_cache").Inc()
		return nil, fmt.Errorf("get geocode cache %q: %w", key, err)
	}
	return &entry, nil
}

// PutGeocodeCache stores a positive resolution. Concurrent writers may
// race on the same place; first write wins and the duplicate is
// silently dropped, which is fine because both carry the same answer.
func (db *DB) PutGeocodeCache(ctx context.Context, entry models.GeocodeCacheEntry) error {
	start := time.Now()
	defer metrics.ObserveDBQuery("insert", "geocode_cache", start)

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO geocode_cache (cache_key, place_name, latitude, longitude, display_name, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (cache_key) DO NOTHING`,
		entry.CacheKey, entry.PlaceName, entry.Latitude, entry.Longitude,
		entry.DisplayName, entry.Confidence, entry.CreatedAt,
	)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("insert", "geocode_cache").Inc()
		return fmt.Errorf("put geocode cache %q: %w", entry.CacheKey, err)
	}
	return nil
}
