// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Platform constants for monitored channel platforms.
const (
	// PlatformTelegram indicates a Telegram channel source.
	PlatformTelegram = "telegram"
	// PlatformX indicates an X (Twitter) account source.
	PlatformX = "x"
)

// ReliabilityTier classifies how much weight a source's reporting carries.
type ReliabilityTier string

const (
	// ReliabilityHigh marks vetted, consistently accurate sources.
	ReliabilityHigh ReliabilityTier = "high"
	// ReliabilityMedium marks sources with a mixed track record.
	ReliabilityMedium ReliabilityTier = "medium"
	// ReliabilityLow marks unvetted or frequently inaccurate sources.
	ReliabilityLow ReliabilityTier = "low"
)

// Valid reports whether the tier is one of the known values.
func (t ReliabilityTier) Valid() bool {
	switch t {
	case ReliabilityHigh, ReliabilityMedium, ReliabilityLow:
		return true
	}
	return false
}

// FilterRules is the per-source content-filter configuration stored in the
// source registry. It can scale category scores before thresholding and
// exempt the source from the relevance filter entirely.
type FilterRules struct {
	// Exempt bypasses the classification-confidence filter: messages from
	// this source always proceed with their best-effort classification.
	Exempt bool `json:"exempt,omitempty"`

	// GeoWeight scales the relevant-category score. Zero means 1.0.
	GeoWeight float64 `json:"geo_weight,omitempty"`

	// NoiseWeight scales the noise-category score. Zero means 1.0.
	NoiseWeight float64 `json:"noise_weight,omitempty"`
}

// Source identifies a monitored channel. Immutable during a processing
// run; mutated only by the external source registry.
type Source struct {
	ID                int64           `json:"id"`
	Platform          string          `json:"platform"`
	Identifier        string          `json:"identifier"`
	ReliabilityTier   ReliabilityTier `json:"reliability_tier"`
	DefaultConflictID int64           `json:"default_conflict_id"`
	FilterRules       FilterRules     `json:"filter_rules"`
}

// Message is a unit of pipeline work. (Platform, ExternalID) is unique per
// platform; the pipeline flips Processed exactly once per message.
type Message struct {
	ID         int64           `json:"id"`
	SourceID   int64           `json:"source_id"`
	Platform   string          `json:"platform"`
	ExternalID string          `json:"external_id"`
	Text       string          `json:"text"`
	RawPayload json.RawMessage `json:"raw_payload,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
	Timestamp  time.Time       `json:"timestamp"`
	Processed  bool            `json:"processed"`

	// Source denormalizes the owning source row for single-query intake.
	Source *Source `json:"source,omitempty"`
}

// Conflict is a named tracking bucket grouping sources and events by
// geopolitical situation. Read-only to the pipeline.
type Conflict struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	ShortCode  string   `json:"short_code"`
	RegionBias string   `json:"region_bias,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	IsActive   bool     `json:"is_active"`
}

// Event is the pipeline's output: one row per (message, conflict,
// location-or-none) combination that survives classification and tagging.
// Created exactly once, never mutated, never deleted by the pipeline.
type Event struct {
	ID           string   `json:"id"`
	MessageID    int64    `json:"message_id"`
	ConflictID   int64    `json:"conflict_id"`
	EventType    string   `json:"event_type"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	LocationName string   `json:"location_name,omitempty"`

	// GeoConfidence is the geocoder's confidence in [0,1]; zero when the
	// event carries no coordinates.
	GeoConfidence float64 `json:"geo_confidence"`

	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}

// HasLocation reports whether the event carries resolved coordinates.
func (e *Event) HasLocation() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// GeocodeCacheEntry memoizes a positive place-name resolution. Entries are
// permanently valid: place names do not move, so there is no TTL.
type GeocodeCacheEntry struct {
	CacheKey    string    `json:"cache_key"`
	PlaceName   string    `json:"place_name"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	DisplayName string    `json:"display_name"`
	Confidence  float64   `json:"confidence"`
	CreatedAt   time.Time `json:"created_at"`
}
