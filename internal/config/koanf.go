// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/arguswatch/argus/internal/classify"
	"github.com/arguswatch/argus/internal/models"
)

// DefaultConfigPaths lists where config files are searched, first found
// wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/argus/config.yaml",
	"/etc/argus/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults, applied before the file
// and environment layers.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:      "/data/argus.duckdb",
			MaxMemory: "2GB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		NATS: NATSConfig{
			URL:                 "nats://127.0.0.1:4222",
			EmbeddedServer:      true,
			StoreDir:            "/data/nats/jetstream",
			MaxMemory:           1 << 30,  // 1GB
			MaxStore:            10 << 30, // 10GB
			StreamRetentionDays: 7,
			DurableName:         "argus-processor",
			QueueGroup:          "processors",
		},
		Pipeline: PipelineConfig{
			BatchSize:               50,
			SweepInterval:           30 * time.Second,
			Workers:                 4,
			ConflictRefreshInterval: 5 * time.Minute,
			StaleClaimAfter:         10 * time.Minute,
			SeedWaitTimeout:         2 * time.Minute,
			PublishTextRunes:        500,
		},
		Classifier: defaultClassifierConfig(),
		Tagger: TaggerConfig{
			MinMatches: 1,
		},
		Geocode: GeocodeConfig{
			NominatimURL:       "", // empty = public instance
			UserAgent:          "argus-processor/1.0 (https://github.com/arguswatch/argus)",
			RequestsPerSecond:  1,
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8710,
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// defaultClassifierConfig is the shipped scoring table. Deployments
// override it wholesale through the config file; the defaults cover the
// common conflict-reporting vocabulary.
func defaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		EventTypes: []classify.EventTypeDef{
			{Type: "airstrike", Terms: []classify.TermEntry{
				{Text: "airstrike", Weight: 3},
				{Text: "air strike", Weight: 4},
				{Text: "drone strike", Weight: 4},
				{Text: "air raid", Weight: 3},
				{Text: "bombing", Weight: 3},
				{Text: "bombardment", Weight: 3},
			}},
			{Type: "missile_strike", Terms: []classify.TermEntry{
				{Text: "missile strike", Weight: 4},
				{Text: "missile attack", Weight: 4},
				{Text: "ballistic missile", Weight: 4},
				{Text: "cruise missile", Weight: 4},
				{Text: "rocket attack", Weight: 4},
			}},
			{Type: "shelling", Terms: []classify.TermEntry{
				{Text: "shelling", Weight: 3},
				{Text: "artillery", Weight: 2},
				{Text: "mortar", Weight: 2},
				{Text: "artillery fire", Weight: 3},
			}},
			{Type: "clash", Terms: []classify.TermEntry{
				{Text: "clashes", Weight: 3},
				{Text: "firefight", Weight: 3},
				{Text: "gun battle", Weight: 3},
				{Text: "ambush", Weight: 3},
				{Text: "skirmish", Weight: 2},
			}},
			{Type: "movement", Terms: []classify.TermEntry{
				{Text: "convoy", Weight: 2},
				{Text: "deployment", Weight: 2},
				{Text: "mobilization", Weight: 2},
				{Text: "troops", Weight: 1},
				{Text: "reinforcements", Weight: 2},
			}},
		},
		NoiseTerms:          []string{"lmao", "lol", "ratio", "shitpost", "satire", "parody", "/s"},
		NoiseVetoDensity:    0.05,
		Normalizer:          8.0,
		Threshold:           0.8,
		HighSignalPlatforms: []string{models.PlatformTelegram},
		FallbackEventType:   classify.DefaultFallbackEventType,
	}
}

// Load reads configuration with layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// ARGUS_NATS_URL -> nats.url, ARGUS_LOG_LEVEL -> logging.level
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists paths parsed as comma-separated slices when
// they arrive from the environment as plain strings.
var sliceConfigPaths = []string{
	"classifier.noise_terms",
	"classifier.high_signal_platforms",
}

// processSliceFields splits comma-separated env values for known slice
// fields; YAML-sourced slices pass through untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables are skipped so unrelated environment noise never
// reaches the config.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Database
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// NATS
		"nats_url":            "nats.url",
		"nats_embedded":       "nats.embedded_server",
		"nats_store_dir":      "nats.store_dir",
		"nats_max_memory":     "nats.max_memory",
		"nats_max_store":      "nats.max_store",
		"nats_retention_days": "nats.stream_retention_days",
		"nats_durable_name":   "nats.durable_name",
		"nats_queue_group":    "nats.queue_group",

		// Pipeline
		"pipeline_batch_size":       "pipeline.batch_size",
		"pipeline_sweep_interval":   "pipeline.sweep_interval",
		"pipeline_workers":          "pipeline.workers",
		"conflict_refresh_interval": "pipeline.conflict_refresh_interval",
		"stale_claim_after":         "pipeline.stale_claim_after",
		"seed_wait_timeout":         "pipeline.seed_wait_timeout",
		"publish_text_runes":        "pipeline.publish_text_runes",

		// Classifier
		"classifier_threshold":          "classifier.threshold",
		"classifier_normalizer":         "classifier.normalizer",
		"classifier_noise_veto_density": "classifier.noise_veto_density",
		"classifier_noise_terms":        "classifier.noise_terms",
		"high_signal_platforms":         "classifier.high_signal_platforms",

		// Tagger
		"tagger_min_matches": "tagger.min_matches",

		// Geocode
		"geocode_nominatim_url":        "geocode.nominatim_url",
		"geocode_user_agent":           "geocode.user_agent",
		"geocode_requests_per_second":  "geocode.requests_per_second",
		"geocode_breaker_max_failures": "geocode.breaker_max_failures",
		"geocode_breaker_timeout":      "geocode.breaker_timeout",

		// Server
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
