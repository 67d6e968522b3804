// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the processor:
// - Pipeline throughput and per-message latency
// - Classifier decisions
// - Geocode tier efficiency and external service health
// - Database write outcomes
// - Publish outcomes

var (
	// Pipeline Metrics
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_messages_processed_total",
			Help: "Total messages run through the pipeline, by outcome",
		},
		[]string{"outcome"}, // "events_written", "irrelevant", "error", "skipped_claimed"
	)

	MessageProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_message_processing_seconds",
			Help:    "Wall time to fully process one message",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	BacklogDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_backlog_depth",
			Help: "Unprocessed messages seen by the most recent backlog sweep",
		},
	)

	InFlightMessages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_in_flight_messages",
			Help: "Messages currently claimed by this instance",
		},
	)

	// Classifier Metrics
	ClassifierDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifier_decisions_total",
			Help: "Classifier outcomes by event type and relevance",
		},
		[]string{"event_type", "relevant"},
	)

	// Geocode Metrics
	GeocodeLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocode_lookups_total",
			Help: "Geocode resolutions by serving tier",
		},
		[]string{"tier"}, // "local", "durable", "external", "not_found", "error"
	)

	GeocodeExternalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geocode_external_duration_seconds",
			Help:    "External geocoding request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	EventsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_written_total",
			Help: "Events committed to storage, by conflict short code",
		},
		[]string{"conflict"},
	)

	// Publish Metrics
	EventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Event notifications delivered to the bus",
		},
	)

	PublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_publish_failures_total",
			Help: "Event notifications dropped after a publish failure",
		},
	)

	// Conflict Registry Metrics
	ActiveConflicts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "conflicts_active",
			Help: "Active conflicts loaded in the tagger registry",
		},
	)

	ConflictRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conflict_refreshes_total",
			Help: "Conflict registry refresh attempts by result",
		},
		[]string{"result"}, // "ok", "error"
	)
)

// ObserveDBQuery records one query's duration under its operation and
// table labels.
func ObserveDBQuery(operation, table string, start time.Time) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}

// RecordClassification tracks one classifier decision.
func RecordClassification(eventType string, relevant bool) {
	label := "false"
	if relevant {
		label = "true"
	}
	if eventType == "" {
		eventType = "none"
	}
	ClassifierDecisions.WithLabelValues(eventType, label).Inc()
}
