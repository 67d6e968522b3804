// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/arguswatch/argus/internal/bus"
	"github.com/arguswatch/argus/internal/logging"
	"github.com/arguswatch/argus/internal/models"
)

// Intake turns live bus envelopes into stored messages and processes
// them inline. Persist-then-process: the message row exists before any
// classification runs, so a crash mid-processing leaves it for the
// backlog sweep instead of losing it.
type Intake struct {
	store Store
	proc  *Processor
	log   zerolog.Logger
}

// NewIntake wires the live intake path.
func NewIntake(store Store, proc *Processor) *Intake {
	return &Intake{
		store: store,
		proc:  proc,
		log:   logging.With().Str("component", "intake").Logger(),
	}
}

// HandleEnvelope ingests one live envelope. Returning an error nacks
// the bus delivery for retry; dropping (unregistered source, duplicate
// already processed) acks it.
func (in *Intake) HandleEnvelope(ctx context.Context, env *bus.IntakeMessage) error {
	src, err := in.store.FindSource(ctx, env.Platform, env.SourceIdentifier)
	if err != nil {
		return fmt.Errorf("find source %s/%s: %w", env.Platform, env.SourceIdentifier, err)
	}
	if src == nil {
		// Redelivery cannot make a registry row appear, so drop rather
		// than retry.
		in.log.Warn().Str("platform", env.Platform).Str("source", env.SourceIdentifier).
			Str("external_id", env.ExternalID).
			Msg("dropping message from unregistered source")
		return nil
	}

	msg := &models.Message{
		SourceID:   src.ID,
		Platform:   env.Platform,
		ExternalID: env.ExternalID,
		Text:       env.Text,
		RawPayload: env.RawPayload,
		ReceivedAt: time.Now().UTC(),
		Timestamp:  env.Timestamp,
		Source:     src,
	}

	id, created, err := in.store.IngestMessage(ctx, msg)
	if err != nil {
		return fmt.Errorf("ingest message %s/%s: %w", env.Platform, env.ExternalID, err)
	}
	msg.ID = id
	if !created {
		in.log.Debug().Int64("message_id", id).Str("external_id", env.ExternalID).
			Msg("duplicate delivery, claim protocol decides remaining work")
	}

	return in.proc.Handle(ctx, msg)
}
