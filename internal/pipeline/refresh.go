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

	"github.com/arguswatch/argus/internal/config"
	"github.com/arguswatch/argus/internal/logging"
	"github.com/arguswatch/argus/internal/metrics"
	"github.com/arguswatch/argus/internal/tagger"
)

// seedPollInterval is how often startup re-checks for active conflicts.
const seedPollInterval = 2 * time.Second

// Refresher keeps the tagger's conflict registry in sync with the
// database so new conflicts take effect without a restart.
type Refresher struct {
	store Store
	tags  *tagger.Tagger
	cfg   config.PipelineConfig
	log   zerolog.Logger
}

// NewRefresher wires the registry refresh loop.
func NewRefresher(store Store, tags *tagger.Tagger, cfg config.PipelineConfig) *Refresher {
	return &Refresher{
		store: store,
		tags:  tags,
		cfg:   cfg,
		log:   logging.With().Str("component", "refresher").Logger(),
	}
}

// SeedWait blocks until at least one active conflict exists. A
// processor with an empty registry can only misfile messages, but the
// condition is recoverable, so this keeps retrying until shutdown and
// escalates to a warning once the configured wait has elapsed.
func (r *Refresher) SeedWait(ctx context.Context) error {
	start := time.Now()
	warned := false
	for {
		if err := r.refresh(ctx); err != nil {
			r.log.Warn().Err(err).Msg("conflict registry not readable yet")
		} else if r.tags.Len() > 0 {
			r.log.Info().Int("conflicts", r.tags.Len()).Msg("conflict registry seeded")
			return nil
		}

		if !warned && time.Since(start) >= r.cfg.SeedWaitTimeout {
			warned = true
			r.log.Warn().Dur("waited", time.Since(start)).
				Msg("still no active conflicts, continuing to wait")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(seedPollInterval):
		}
	}
}

// Run reloads the registry on the configured interval until the context
// is cancelled. A failed reload keeps the previous conflict set.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.ConflictRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.refresh(ctx); err != nil {
				r.log.Error().Err(err).Msg("conflict registry refresh failed")
			}
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) error {
	conflicts, err := r.store.GetActiveConflicts(ctx)
	if err != nil {
		metrics.ConflictRefreshes.WithLabelValues("error").Inc()
		return fmt.Errorf("load active conflicts: %w", err)
	}

	r.tags.Reload(conflicts)
	metrics.ActiveConflicts.Set(float64(r.tags.Len()))
	metrics.ConflictRefreshes.WithLabelValues("ok").Inc()
	return nil
}
