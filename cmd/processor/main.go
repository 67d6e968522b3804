// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

// Command processor runs the message processing pipeline: live intake
// from the bus, backlog sweeping, classification, conflict tagging,
// geocoding, and event persistence, with an ops HTTP surface for
// health and metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/arguswatch/argus/internal/bus"
	"github.com/arguswatch/argus/internal/cache"
	"github.com/arguswatch/argus/internal/classify"
	"github.com/arguswatch/argus/internal/config"
	"github.com/arguswatch/argus/internal/database"
	"github.com/arguswatch/argus/internal/geocode"
	"github.com/arguswatch/argus/internal/logging"
	"github.com/arguswatch/argus/internal/ops"
	"github.com/arguswatch/argus/internal/pipeline"
	"github.com/arguswatch/argus/internal/supervisor"
	"github.com/arguswatch/argus/internal/tagger"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Processor exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("version", version).Msg("Argus processor starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	natsURL := cfg.NATS.URL
	if cfg.NATS.EmbeddedServer {
		srvCfg := bus.DefaultServerConfig()
		if cfg.NATS.StoreDir != "" {
			srvCfg.StoreDir = cfg.NATS.StoreDir
		}
		if cfg.NATS.MaxMemory > 0 {
			srvCfg.JetStreamMaxMem = cfg.NATS.MaxMemory
		}
		if cfg.NATS.MaxStore > 0 {
			srvCfg.JetStreamMaxStore = cfg.NATS.MaxStore
		}

		embedded, err := bus.NewEmbeddedServer(srvCfg)
		if err != nil {
			return fmt.Errorf("start embedded NATS: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = embedded.Shutdown(shutdownCtx)
		}()
		natsURL = embedded.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server ready")
	}

	nc, err := natsgo.Connect(natsURL,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
	)
	if err != nil {
		return fmt.Errorf("connect NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}

	intakeStream, err := bus.NewStreamInitializer(js,
		bus.DefaultIntakeStreamConfig(cfg.NATS.StreamRetentionDays))
	if err != nil {
		return fmt.Errorf("intake stream initializer: %w", err)
	}
	if _, err := intakeStream.EnsureStream(ctx); err != nil {
		return fmt.Errorf("ensure intake stream: %w", err)
	}

	eventStream, err := bus.NewStreamInitializer(js,
		bus.DefaultEventStreamConfig(cfg.NATS.StreamRetentionDays))
	if err != nil {
		return fmt.Errorf("event stream initializer: %w", err)
	}
	if _, err := eventStream.EnsureStream(ctx); err != nil {
		return fmt.Errorf("ensure event stream: %w", err)
	}

	wmLogger := bus.NewLoggerAdapter()

	publisher, err := bus.NewPublisher(bus.DefaultPublisherConfig(natsURL), wmLogger)
	if err != nil {
		return fmt.Errorf("create publisher: %w", err)
	}
	defer func() { _ = publisher.Close() }()
	publisher.SetCircuitBreaker(gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:    "event-publish",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}))

	subCfg := bus.DefaultSubscriberConfig(natsURL)
	subCfg.DurableName = cfg.NATS.DurableName
	subCfg.QueueGroup = cfg.NATS.QueueGroup
	subCfg.SubscribersCount = cfg.Pipeline.Workers
	subscriber, err := bus.NewSubscriber(subCfg, wmLogger)
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}
	defer func() { _ = subscriber.Close() }()

	classifier, err := classify.New(cfg.Classifier.ToClassify())
	if err != nil {
		return fmt.Errorf("build classifier: %w", err)
	}
	tags := tagger.New(nil, cfg.Tagger.MinMatches)

	geoCfg := geocode.DefaultConfig()
	geoCfg.RequestsPerSecond = cfg.Geocode.RequestsPerSecond
	geoCfg.BreakerMaxFailures = cfg.Geocode.BreakerMaxFailures
	geoCfg.BreakerTimeout = cfg.Geocode.BreakerTimeout
	resolver := geocode.New(geoCfg, cache.New(0), db,
		geocode.NewNominatimClient(cfg.Geocode.NominatimURL, cfg.Geocode.UserAgent))

	arena := pipeline.NewArena()
	processor := pipeline.NewProcessor(db, classifier, tags, resolver, publisher, arena, cfg.Pipeline)
	intake := pipeline.NewIntake(db, processor)
	sweeper := pipeline.NewSweeper(db, processor, cfg.Pipeline)
	refresher := pipeline.NewRefresher(db, tags, cfg.Pipeline)

	// The pipeline is useless without a conflict to file events under.
	if err := refresher.SeedWait(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("conflict registry seed: %w", err)
	}

	opsServer := ops.NewServer(cfg.Server)
	opsServer.AddCheck("database", db.Ping)
	opsServer.AddCheck("intake_stream", func(ctx context.Context) error {
		if !intakeStream.IsHealthy(ctx) {
			return fmt.Errorf("stream %s unreachable", bus.IntakeStreamName)
		}
		return nil
	})
	opsServer.AddCheck("event_stream", func(ctx context.Context) error {
		if !eventStream.IsHealthy(ctx) {
			return fmt.Errorf("stream %s unreachable", bus.EventStreamName)
		}
		return nil
	})

	slogger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	tree, err := supervisor.NewTree(slogger, supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("build supervisor tree: %w", err)
	}
	tree.AddPipelineService(supervisor.NewIntakeService(subscriber, intake))
	tree.AddPipelineService(supervisor.NewRunnerService("sweeper", sweeper))
	tree.AddPipelineService(supervisor.NewRunnerService("refresher", refresher))
	tree.AddOpsService(supervisor.NewRunnerService("ops", opsServer))

	logging.Info().
		Str("nats_url", natsURL).
		Str("database", cfg.Database.Path).
		Int("workers", cfg.Pipeline.Workers).
		Msg("Argus processor running")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}

	logging.Info().Msg("Argus processor stopped")
	return nil
}
