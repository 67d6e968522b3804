// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

// Package config loads and validates processor configuration.
//
// Loading is layered with clear precedence: built-in defaults, then an
// optional YAML file, then environment variables. The struct is
// immutable after Load and safe for concurrent reads.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/arguswatch/argus/internal/classify"
)

// Config holds all processor configuration.
type Config struct {
	Database   DatabaseConfig   `koanf:"database"`
	NATS       NATSConfig       `koanf:"nats"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Classifier ClassifierConfig `koanf:"classifier"`
	Tagger     TaggerConfig     `koanf:"tagger"`
	Geocode    GeocodeConfig    `koanf:"geocode"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path to the database file. ":memory:" is accepted for tests.
	Path string `koanf:"path" validate:"required"`

	// MaxMemory caps DuckDB's memory use, e.g. "2GB".
	MaxMemory string `koanf:"max_memory"`

	// Threads for DuckDB workers. 0 means one per CPU.
	Threads int `koanf:"threads" validate:"gte=0"`
}

// NATSConfig holds messaging settings for live intake and event
// publishing over JetStream.
type NATSConfig struct {
	URL            string `koanf:"url" validate:"required"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`

	// StreamRetentionDays bounds how long unconsumed stream entries live.
	StreamRetentionDays int `koanf:"stream_retention_days" validate:"gte=1"`

	// DurableName identifies this processor's consumer so restarts resume
	// where the previous instance stopped.
	DurableName string `koanf:"durable_name" validate:"required"`

	// QueueGroup spreads intake across processor instances.
	QueueGroup string `koanf:"queue_group" validate:"required"`
}

// PipelineConfig tunes the intake router and processing workers.
type PipelineConfig struct {
	// BatchSize is the backlog sweep's fetch limit per pass.
	BatchSize int `koanf:"batch_size" validate:"gte=1"`

	// SweepInterval is the idle delay between backlog sweeps.
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"gt=0"`

	// Workers is the number of concurrent message processors.
	Workers int `koanf:"workers" validate:"gte=1"`

	// ConflictRefreshInterval is how often the conflict registry reloads.
	ConflictRefreshInterval time.Duration `koanf:"conflict_refresh_interval" validate:"gt=0"`

	// StaleClaimAfter is the age at which another instance's claim is
	// presumed dead and the message becomes claimable again.
	StaleClaimAfter time.Duration `koanf:"stale_claim_after" validate:"gt=0"`

	// SeedWaitTimeout is how long startup waits for an active conflict
	// before logging a warning. The wait itself continues until shutdown.
	SeedWaitTimeout time.Duration `koanf:"seed_wait_timeout" validate:"gt=0"`

	// PublishTextRunes truncates message text in published notifications.
	PublishTextRunes int `koanf:"publish_text_runes" validate:"gte=1"`
}

// ClassifierConfig holds the scoring tables. EventTypes appear in
// declared priority order.
type ClassifierConfig struct {
	EventTypes          []classify.EventTypeDef `koanf:"event_types" validate:"min=1"`
	NoiseTerms          []string                `koanf:"noise_terms"`
	NoiseVetoDensity    float64                 `koanf:"noise_veto_density" validate:"gte=0"`
	Normalizer          float64                 `koanf:"normalizer" validate:"gt=0"`
	Threshold           float64                 `koanf:"threshold" validate:"gte=0,lte=1"`
	HighSignalPlatforms []string                `koanf:"high_signal_platforms"`
	FallbackEventType   string                  `koanf:"fallback_event_type" validate:"required"`
}

// ToClassify converts to the classifier package's config type.
func (c ClassifierConfig) ToClassify() classify.Config {
	return classify.Config{
		EventTypes:          c.EventTypes,
		NoiseTerms:          c.NoiseTerms,
		NoiseVetoDensity:    c.NoiseVetoDensity,
		Normalizer:          c.Normalizer,
		Threshold:           c.Threshold,
		HighSignalPlatforms: c.HighSignalPlatforms,
		FallbackEventType:   c.FallbackEventType,
	}
}

// TaggerConfig tunes conflict tagging.
type TaggerConfig struct {
	// MinMatches is the minimum keyword hits for a secondary conflict tag.
	MinMatches int `koanf:"min_matches" validate:"gte=1"`
}

// GeocodeConfig holds resolver settings.
type GeocodeConfig struct {
	NominatimURL string `koanf:"nominatim_url"`

	// UserAgent identifies this deployment to the geocoding service,
	// required by the Nominatim usage policy.
	UserAgent string `koanf:"user_agent" validate:"required"`

	RequestsPerSecond  float64       `koanf:"requests_per_second" validate:"gt=0"`
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures" validate:"gte=1"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// ServerConfig holds the ops HTTP surface settings.
type ServerConfig struct {
	Host    string        `koanf:"host" validate:"required"`
	Port    int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks structural constraints and the classifier tables.
// Malformed configuration is a startup error; main treats it as fatal.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	// The classifier constructor performs the deep table checks
	// (duplicate types, empty terms, non-positive weights).
	if _, err := classify.New(c.Classifier.ToClassify()); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	return nil
}
