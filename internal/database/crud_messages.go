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

// IngestMessage stores an incoming message, deduplicating on
// (platform, external_id). Returns the message id and whether the row
// was newly inserted; a duplicate returns the existing row's id.
func (db *DB) IngestMessage(ctx context.Context, msg *models.Message) (int64, bool, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("insert", "messages", start)

	raw := string(msg.RawPayload)
	if raw == "" {
		raw = "{}"
	}

	var id int64
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO messages (source_id, platform, external_id, text, raw_payload, received_at, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (platform, external_id) DO NOTHING
		RETURNING id`,
		msg.SourceID, msg.Platform, msg.ExternalID, msg.Text, raw,
		msg.ReceivedAt, msg.Timestamp,
	).Scan(&id)

	if err == sql.ErrNoRows {
		// Duplicate delivery: the row already exists.
		err = db.conn.QueryRowContext(ctx,
			`SELECT id FROM messages WHERE platform = ? AND external_id = ?`,
			msg.Platform, msg.ExternalID,
		).Scan(&id)
		if err != nil {
			metrics.DBQueryErrors.WithLabelValues("insert", "messages").Inc()
			return 0, false, fmt.Errorf("lookup duplicate message: %w", err)
		}
		return id, false, nil
	}
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("insert", "messages").Inc()
		return 0, false, fmt.Errorf("insert message: %w", err)
	}
	return id, true, nil
}

// GetMessage loads one message with its source attached.
func (db *DB) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("select", "messages", start)

	row := db.conn.QueryRowContext(ctx, messageSelect+` WHERE m.id = ?`, id)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", "messages").Inc()
		return nil, fmt.Errorf("get message %d: %w", id, err)
	}
	return msg, nil
}

// GetUnprocessedMessages returns up to limit unprocessed, unclaimed
// messages in chronological order. Claims older than staleAfter are
// treated as dead and the messages reappear here.
func (db *DB) GetUnprocessedMessages(ctx context.Context, limit int, staleAfter time.Duration) ([]*models.Message, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("select", "messages", start)

	staleBefore := time.Now().UTC().Add(-staleAfter)
	rows, err := db.conn.QueryContext(ctx, messageSelect+`
		WHERE m.processed = FALSE
		  AND (m.claimed_at IS NULL OR m.claimed_at < ?)
		ORDER BY m.timestamp ASC
		LIMIT ?`,
		staleBefore, limit,
	)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", "messages").Inc()
		return nil, fmt.Errorf("query unprocessed messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unprocessed message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ClaimMessage marks a message as in-flight for this instance. Returns
// false when the message is already processed or freshly claimed
// elsewhere; the conditional UPDATE makes the claim race-free across
// instances sharing the database.
func (db *DB) ClaimMessage(ctx context.Context, id int64, staleAfter time.Duration) (bool, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("update", "messages", start)

	now := time.Now().UTC()
	res, err := db.conn.ExecContext(ctx, `
		UPDATE messages SET claimed_at = ?
		WHERE id = ? AND processed = FALSE
		  AND (claimed_at IS NULL OR claimed_at < ?)`,
		now, id, now.Add(-staleAfter),
	)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("update", "messages").Inc()
		return false, fmt.Errorf("claim message %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim message %d rows affected: %w", id, err)
	}
	return affected == 1, nil
}

// ReleaseMessage clears a claim after a processing failure so the
// message becomes eligible for the next sweep. Processed messages are
// left alone.
func (db *DB) ReleaseMessage(ctx context.Context, id int64) error {
	start := time.Now()
	defer metrics.ObserveDBQuery("update", "messages", start)

	_, err := db.conn.ExecContext(ctx,
		`UPDATE messages SET claimed_at = NULL WHERE id = ? AND processed = FALSE`, id)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("update", "messages").Inc()
		return fmt.Errorf("release message %d: %w", id, err)
	}
	return nil
}

// CountUnprocessed returns the backlog depth for metrics.
func (db *DB) CountUnprocessed(ctx context.Context) (int64, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("select", "messages", start)

	var count int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE processed = FALSE`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unprocessed: %w", err)
	}
	return count, nil
}

const messageSelect = `
	SELECT m.id, m.source_id, m.platform, m.external_id, m.text, m.raw_payload,
	       m.received_at, m.timestamp, m.processed,
	       s.id, s.platform, s.identifier, s.reliability_tier,
	       s.default_conflict_id, s.filter_rules
	FROM messages m
	JOIN sources s ON s.id = m.source_id`

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var (
		msg   models.Message
		src   models.Source
		raw   string
		rules string
	)
	err := row.Scan(
		&msg.ID, &msg.SourceID, &msg.Platform, &msg.ExternalID, &msg.Text, &raw,
		&msg.ReceivedAt, &msg.Timestamp, &msg.Processed,
		&src.ID, &src.Platform, &src.Identifier, &src.ReliabilityTier,
		&src.DefaultConflictID, &rules,
	)
	if err != nil {
		return nil, err
	}

	msg.RawPayload = json.RawMessage(raw)
	if rules != "" {
		if err := json.Unmarshal([]byte(rules), &src.FilterRules); err != nil {
			return nil, fmt.Errorf("parse filter rules for source %d: %w", src.ID, err)
		}
	}
	msg.Source = &src
	return &msg, nil
}
