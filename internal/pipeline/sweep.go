// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arguswatch/argus/internal/config"
	"github.com/arguswatch/argus/internal/logging"
	"github.com/arguswatch/argus/internal/metrics"
	"github.com/arguswatch/argus/internal/models"
)

// Sweeper periodically drains unprocessed messages that live intake
// missed: backlog from before startup, messages whose processing
// crashed, and stale claims left by dead instances.
type Sweeper struct {
	store Store
	proc  *Processor
	cfg   config.PipelineConfig
	log   zerolog.Logger
}

// NewSweeper wires the backlog sweep.
func NewSweeper(store Store, proc *Processor, cfg config.PipelineConfig) *Sweeper {
	return &Sweeper{
		store: store,
		proc:  proc,
		cfg:   cfg,
		log:   logging.With().Str("component", "sweeper").Logger(),
	}
}

// Run sweeps until the context is cancelled. The first pass runs
// immediately so a restart drains promptly.
func (s *Sweeper) Run(ctx context.Context) error {
	if err := s.sweep(ctx); err != nil {
		s.log.Error().Err(err).Msg("backlog sweep failed")
	}

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				s.log.Error().Err(err).Msg("backlog sweep failed")
			}
		}
	}
}

// sweep runs one pass: gauge the backlog, fetch a batch, fan it out to
// workers. Per-message failures are logged and left claimed-released
// for the next pass; only fetch failures abort the pass.
func (s *Sweeper) sweep(ctx context.Context) error {
	count, err := s.store.CountUnprocessed(ctx)
	if err != nil {
		return fmt.Errorf("count backlog: %w", err)
	}
	metrics.BacklogDepth.Set(float64(count))
	if count == 0 {
		return nil
	}

	msgs, err := s.store.GetUnprocessedMessages(ctx, s.cfg.BatchSize, s.cfg.StaleClaimAfter)
	if err != nil {
		return fmt.Errorf("fetch backlog batch: %w", err)
	}
	if len(msgs) == 0 {
		return nil
	}
	s.log.Debug().Int("batch", len(msgs)).Int64("backlog", count).Msg("sweeping backlog")

	workers := s.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for _, msg := range msgs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(m *models.Message) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := s.proc.Handle(ctx, m); err != nil {
				s.log.Error().Err(err).Int64("message_id", m.ID).Msg("backlog message failed")
			}
		}(msg)
	}
	wg.Wait()
	return ctx.Err()
}
