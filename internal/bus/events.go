// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

package bus

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// SchemaVersion is the current wire schema version. Increment on
// breaking envelope changes.
const SchemaVersion = 1

// PublishTextLimit is the default rune cap for message text carried in
// event notices. Full text stays in the database; the notice only needs
// enough for display.
const PublishTextLimit = 500

// ValidationError reports a missing or malformed envelope field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// IntakeMessage is the wire form of a raw message from a collector.
type IntakeMessage struct {
	SchemaVersion int `json:"schema_version,omitempty"`

	// MessageID is the collector-assigned UUID, used as the JetStream
	// message id for broker-side deduplication.
	MessageID string `json:"message_id"`

	Platform         string          `json:"platform"`
	SourceIdentifier string          `json:"source_identifier"`
	ExternalID       string          `json:"external_id"`
	Text             string          `json:"text"`
	RawPayload       json.RawMessage `json:"raw_payload,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
}

// NewIntakeMessage creates an envelope with a fresh id and version.
func NewIntakeMessage(platform, sourceIdentifier string) *IntakeMessage {
	return &IntakeMessage{
		SchemaVersion:    SchemaVersion,
		MessageID:        uuid.New().String(),
		Platform:         platform,
		SourceIdentifier: sourceIdentifier,
		Timestamp:        time.Now().UTC(),
	}
}

// Validate checks required fields.
func (m *IntakeMessage) Validate() error {
	if m.MessageID == "" {
		return &ValidationError{Field: "message_id", Message: "required"}
	}
	if m.Platform == "" {
		return &ValidationError{Field: "platform", Message: "required"}
	}
	if m.SourceIdentifier == "" {
		return &ValidationError{Field: "source_identifier", Message: "required"}
	}
	if m.ExternalID == "" {
		return &ValidationError{Field: "external_id", Message: "required"}
	}
	return nil
}

// EventNotice is the wire form of a written event, published after the
// database commit.
type EventNotice struct {
	SchemaVersion int `json:"schema_version,omitempty"`

	EventID           string `json:"event_id"`
	MessageID         int64  `json:"message_id"`
	ConflictID        int64  `json:"conflict_id"`
	ConflictShortCode string `json:"conflict_short_code"`
	EventType         string `json:"event_type"`

	// Coordinates are absent when the location did not resolve.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	LocationName  string  `json:"location_name,omitempty"`
	GeoConfidence float64 `json:"geo_confidence"`

	// Text is the source message text, truncated for display.
	Text string `json:"text"`

	Timestamp time.Time `json:"timestamp"`
}

// Topic returns the per-conflict publish subject, e.g.
// "events.israel-iran".
func (e *EventNotice) Topic() string {
	return EventTopicPrefix + e.ConflictShortCode
}

// Validate checks required fields.
func (e *EventNotice) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.ConflictShortCode == "" {
		return &ValidationError{Field: "conflict_short_code", Message: "required"}
	}
	if e.EventType == "" {
		return &ValidationError{Field: "event_type", Message: "required"}
	}
	return nil
}

// TruncateRunes caps s at limit runes. Limits by rune so multi-byte
// text never splits mid-character.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
