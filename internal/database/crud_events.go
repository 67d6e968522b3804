// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/arguswatch/argus/internal/metrics"
	"github.com/arguswatch/argus/internal/models"
)

// InsertEventsMarkProcessed writes a message's events and flips its
// processed flag in one transaction. Either everything commits or the
// message stays claimable; a crash mid-write never leaves half an event
// set behind a processed message.
//
// events may be empty: an irrelevant message is marked processed
// without producing anything.
func (db *DB) InsertEventsMarkProcessed(ctx context.Context, messageID int64, events []models.Event) error {
	start := time.Now()
	defer metrics.ObserveDBQuery("insert", "events", start)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, ev := range events {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO events (id, message_id, conflict_id, event_type,
				latitude, longitude, location_name, geo_confidence, timestamp, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, ev.MessageID, ev.ConflictID, ev.EventType,
			ev.Latitude, ev.Longitude, ev.LocationName, ev.GeoConfidence,
			ev.Timestamp, ev.CreatedAt,
		)
		if err != nil {
			metrics.DBQueryErrors.WithLabelValues("insert", "events").Inc()
			return fmt.Errorf("insert event for message %d: %w", messageID, err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE messages SET processed = TRUE, claimed_at = NULL WHERE id = ?`, messageID)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("update", "messages").Inc()
		return fmt.Errorf("mark message %d processed: %w", messageID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark message %d rows affected: %w", messageID, err)
	}
	if affected != 1 {
		return fmt.Errorf("mark message %d processed: message not found", messageID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit events for message %d: %w", messageID, err)
	}
	return nil
}

// GetEventsByMessage returns the events written for one message, in
// insertion order.
func (db *DB) GetEventsByMessage(ctx context.Context, messageID int64) ([]models.Event, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("select", "events", start)

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, message_id, conflict_id, event_type, latitude, longitude,
		       location_name, geo_confidence, timestamp, created_at
		FROM events WHERE message_id = ?
		ORDER BY created_at ASC, id ASC`, messageID)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", "events").Inc()
		return nil, fmt.Errorf("query events for message %d: %w", messageID, err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		err := rows.Scan(&ev.ID, &ev.MessageID, &ev.ConflictID, &ev.EventType,
			&ev.Latitude, &ev.Longitude, &ev.LocationName, &ev.GeoConfidence,
			&ev.Timestamp, &ev.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
