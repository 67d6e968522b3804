// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

package bus

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/arguswatch/argus/internal/models"
)

func validIntakeMessage() *IntakeMessage {
	m := NewIntakeMessage(models.PlatformTelegram, "warmonitor")
	m.ExternalID = "msg-10045"
	m.Text = "Explosion reported near Sidon"
	m.Timestamp = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return m
}

func TestNewIntakeMessage_AssignsID(t *testing.T) {
	m := validIntakeMessage()

	if m.MessageID == "" {
		t.Fatal("expected generated message ID")
	}
	if m.SchemaVersion != SchemaVersion {
		t.Errorf("schema version = %d, want %d", m.SchemaVersion, SchemaVersion)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("valid message failed validation: %v", err)
	}
}

func TestIntakeMessage_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*IntakeMessage)
		field  string
	}{
		{"missing message ID", func(m *IntakeMessage) { m.MessageID = "" }, "message_id"},
		{"missing platform", func(m *IntakeMessage) { m.Platform = "" }, "platform"},
		{"missing source", func(m *IntakeMessage) { m.SourceIdentifier = "" }, "source_identifier"},
		{"missing external ID", func(m *IntakeMessage) { m.ExternalID = "" }, "external_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validIntakeMessage()
			tt.mutate(m)

			err := m.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestEventNotice_Topic(t *testing.T) {
	n := &EventNotice{ConflictShortCode: "israel-lebanon"}
	if got := n.Topic(); got != "events.israel-lebanon" {
		t.Errorf("Topic() = %q, want %q", got, "events.israel-lebanon")
	}
}

func validEventNotice() *EventNotice {
	return &EventNotice{
		SchemaVersion:     SchemaVersion,
		EventID:           "0c67a4f2-5f3e-4d8a-9b1c-2e7f8a9d0b3c",
		MessageID:         42,
		ConflictID:        1,
		ConflictShortCode: "israel-lebanon",
		EventType:         "airstrike",
		Timestamp:         time.Now().UTC(),
	}
}

func TestEventNotice_Validate(t *testing.T) {
	if err := validEventNotice().Validate(); err != nil {
		t.Fatalf("valid notice failed validation: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*EventNotice)
	}{
		{"missing event ID", func(n *EventNotice) { n.EventID = "" }},
		{"missing short code", func(n *EventNotice) { n.ConflictShortCode = "" }},
		{"missing event type", func(n *EventNotice) { n.EventType = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := validEventNotice()
			tt.mutate(n)
			if err := n.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		limit int
		want  string
	}{
		{"under limit", "short text", 500, "short text"},
		{"exactly at limit", "abcde", 5, "abcde"},
		{"over limit", "abcdefgh", 5, "abcde"},
		{"multi-byte runes", strings.Repeat("шахед", 3), 7, "шахедша"},
		{"non-positive limit passes through", "anything", 0, "anything"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateRunes(tt.input, tt.limit); got != tt.want {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.input, tt.limit, got, tt.want)
			}
		})
	}
}

func TestTruncateRunes_LongText(t *testing.T) {
	long := strings.Repeat("a", PublishTextLimit+200)
	got := TruncateRunes(long, PublishTextLimit)
	if len([]rune(got)) != PublishTextLimit {
		t.Errorf("truncated length = %d runes, want %d", len([]rune(got)), PublishTextLimit)
	}
}
