// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

// Package pipeline runs messages from intake to committed events. Two
// producers feed it, live bus delivery and the periodic backlog sweep,
// and the claim protocol guarantees each message is processed by
// exactly one worker at a time. Processing itself is deterministic, so
// a crashed-and-reclaimed message yields the same event set on retry.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arguswatch/argus/internal/bus"
	"github.com/arguswatch/argus/internal/classify"
	"github.com/arguswatch/argus/internal/config"
	"github.com/arguswatch/argus/internal/extract"
	"github.com/arguswatch/argus/internal/geocode"
	"github.com/arguswatch/argus/internal/logging"
	"github.com/arguswatch/argus/internal/metrics"
	"github.com/arguswatch/argus/internal/models"
	"github.com/arguswatch/argus/internal/tagger"
)

// Store is the persistence surface the pipeline depends on.
type Store interface {
	IngestMessage(ctx context.Context, msg *models.Message) (int64, bool, error)
	GetUnprocessedMessages(ctx context.Context, limit int, staleAfter time.Duration) ([]*models.Message, error)
	ClaimMessage(ctx context.Context, id int64, staleAfter time.Duration) (bool, error)
	ReleaseMessage(ctx context.Context, id int64) error
	InsertEventsMarkProcessed(ctx context.Context, messageID int64, events []models.Event) error
	CountUnprocessed(ctx context.Context) (int64, error)
	GetActiveConflicts(ctx context.Context) ([]models.Conflict, error)
	FindSource(ctx context.Context, platform, identifier string) (*models.Source, error)
}

// NoticePublisher delivers event notices after the database commit.
type NoticePublisher interface {
	PublishNotice(ctx context.Context, notice *bus.EventNotice) error
}

// Locator resolves a place name to coordinates. A nil result with a nil
// error means the place is unknown.
type Locator interface {
	Resolve(ctx context.Context, place, bias string) (*geocode.Coordinates, error)
}

// Processor turns one claimed message into zero or more events.
type Processor struct {
	store      Store
	classifier *classify.Classifier
	tags       *tagger.Tagger
	locator    Locator
	publisher  NoticePublisher
	arena      *Arena
	cfg        config.PipelineConfig
	log        zerolog.Logger
}

// NewProcessor wires a processor. publisher may be nil, which disables
// event notices without affecting persistence.
func NewProcessor(
	store Store,
	classifier *classify.Classifier,
	tags *tagger.Tagger,
	locator Locator,
	publisher NoticePublisher,
	arena *Arena,
	cfg config.PipelineConfig,
) *Processor {
	return &Processor{
		store:      store,
		classifier: classifier,
		tags:       tags,
		locator:    locator,
		publisher:  publisher,
		arena:      arena,
		cfg:        cfg,
		log:        logging.With().Str("component", "pipeline").Logger(),
	}
}

// Handle claims a message, processes it, and releases the database
// claim on failure so another worker can retry after the stale window.
// A message another worker holds is skipped silently.
func (p *Processor) Handle(ctx context.Context, msg *models.Message) error {
	if !p.arena.TryAcquire(msg.ID) {
		metrics.MessagesProcessed.WithLabelValues("skipped_claimed").Inc()
		return nil
	}
	defer p.arena.Release(msg.ID)

	claimed, err := p.store.ClaimMessage(ctx, msg.ID, p.cfg.StaleClaimAfter)
	if err != nil {
		metrics.MessagesProcessed.WithLabelValues("error").Inc()
		return fmt.Errorf("claim message %d: %w", msg.ID, err)
	}
	if !claimed {
		metrics.MessagesProcessed.WithLabelValues("skipped_claimed").Inc()
		return nil
	}

	start := time.Now()
	err = p.process(ctx, msg)
	metrics.MessageProcessingDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.MessagesProcessed.WithLabelValues("error").Inc()
		if rerr := p.store.ReleaseMessage(ctx, msg.ID); rerr != nil {
			p.log.Error().Err(rerr).Int64("message_id", msg.ID).
				Msg("release after failure did not go through, claim will expire")
		}
		return err
	}
	return nil
}

func (p *Processor) process(ctx context.Context, msg *models.Message) error {
	res := p.classifier.Classify(msg.Text, msg.Source)
	metrics.RecordClassification(res.EventType, res.Relevant)

	if !res.Relevant {
		// Irrelevant messages are terminal: processed, no events, never
		// revisited.
		if err := p.store.InsertEventsMarkProcessed(ctx, msg.ID, nil); err != nil {
			return fmt.Errorf("mark irrelevant message %d: %w", msg.ID, err)
		}
		metrics.MessagesProcessed.WithLabelValues("irrelevant").Inc()
		return nil
	}

	var defaultConflictID int64
	if msg.Source != nil {
		defaultConflictID = msg.Source.DefaultConflictID
	}
	tags, err := p.tags.Tag(msg.Text, defaultConflictID)
	if err != nil {
		return fmt.Errorf("tag message %d: %w", msg.ID, err)
	}

	locs := p.locate(ctx, msg, tags[0].Conflict.RegionBias)

	// One event per (conflict, location) pair; a message with no
	// resolvable place still gets one null-location event per conflict.
	now := time.Now().UTC()
	events := make([]models.Event, 0, len(tags)*max(1, len(locs)))
	codes := make([]string, 0, cap(events))
	for _, tag := range tags {
		base := models.Event{
			MessageID:  msg.ID,
			ConflictID: tag.Conflict.ID,
			EventType:  res.EventType,
			Timestamp:  msg.Timestamp,
			CreatedAt:  now,
		}
		if len(locs) == 0 {
			ev := base
			ev.ID = uuid.NewString()
			events = append(events, ev)
			codes = append(codes, tag.Conflict.ShortCode)
			continue
		}
		for _, loc := range locs {
			ev := base
			ev.ID = uuid.NewString()
			lat, lon := loc.coords.Latitude, loc.coords.Longitude
			ev.Latitude, ev.Longitude = &lat, &lon
			ev.LocationName = loc.place
			ev.GeoConfidence = loc.coords.Confidence
			events = append(events, ev)
			codes = append(codes, tag.Conflict.ShortCode)
		}
	}

	if err := p.store.InsertEventsMarkProcessed(ctx, msg.ID, events); err != nil {
		return fmt.Errorf("write events for message %d: %w", msg.ID, err)
	}
	for _, code := range codes {
		metrics.EventsWritten.WithLabelValues(code).Inc()
	}
	metrics.MessagesProcessed.WithLabelValues("events_written").Inc()

	p.publish(ctx, msg, codes, events)
	return nil
}

// location pairs the span that resolved with its coordinates.
type location struct {
	place  string
	coords geocode.Coordinates
}

// locate drains the place-name scanner and resolves every candidate.
// Each distinct place contributes at most one location; candidates that
// error or fail to resolve are skipped rather than failing the message,
// since events are allowed to carry no location.
func (p *Processor) locate(ctx context.Context, msg *models.Message, bias string) []location {
	var locs []location
	seen := make(map[string]bool)

	sc := extract.Scan(msg.Text)
	for {
		cand, ok := sc.Next()
		if !ok {
			return locs
		}
		key := strings.ToLower(cand.Text)
		if seen[key] {
			continue
		}
		seen[key] = true

		coords, err := p.locator.Resolve(ctx, cand.Text, bias)
		if err != nil {
			p.log.Warn().Err(err).Str("place", cand.Text).Int64("message_id", msg.ID).
				Msg("geocode lookup failed, trying next candidate")
			continue
		}
		if coords != nil {
			locs = append(locs, location{place: cand.Text, coords: *coords})
		}
	}
}

// publish sends one notice per committed event. codes carries the
// conflict short code for each event, index-aligned. The database is
// the source of truth: a failed publish is counted and dropped, never
// retried against the already-processed message.
func (p *Processor) publish(ctx context.Context, msg *models.Message, codes []string, events []models.Event) {
	if p.publisher == nil {
		return
	}

	text := bus.TruncateRunes(msg.Text, p.cfg.PublishTextRunes)
	for i, ev := range events {
		notice := &bus.EventNotice{
			SchemaVersion:     bus.SchemaVersion,
			EventID:           ev.ID,
			MessageID:         ev.MessageID,
			ConflictID:        ev.ConflictID,
			ConflictShortCode: codes[i],
			EventType:         ev.EventType,
			Latitude:          ev.Latitude,
			Longitude:         ev.Longitude,
			LocationName:      ev.LocationName,
			GeoConfidence:     ev.GeoConfidence,
			Text:              text,
			Timestamp:         ev.Timestamp,
		}
		if err := p.publisher.PublishNotice(ctx, notice); err != nil {
			metrics.PublishFailures.Inc()
			p.log.Warn().Err(err).Str("event_id", ev.ID).Str("topic", notice.Topic()).
				Msg("event notice publish failed")
		}
	}
}
