// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

// Service wrappers adapting the pipeline loops and ops server to the
// Suture interface. Each Serve call builds fresh per-run state, so a
// restart after a crash starts clean.
package supervisor

import (
	"context"
	"errors"

	"github.com/arguswatch/argus/internal/bus"
	"github.com/arguswatch/argus/internal/logging"
	"github.com/arguswatch/argus/internal/pipeline"
)

// Runner is a long-running loop that stops when its context is
// cancelled. The sweeper, refresher, and ops server all satisfy it.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerService adapts a Runner to suture.Service.
type RunnerService struct {
	name   string
	runner Runner
}

// NewRunnerService wraps a runner under a service name used in logs.
func NewRunnerService(name string, r Runner) *RunnerService {
	return &RunnerService{name: name, runner: r}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	logging.Info().Str("service", s.name).Msg("Service starting")

	err := s.runner.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Str("service", s.name).Msg("Service stopped with error")
		return err
	}

	logging.Info().Str("service", s.name).Msg("Service stopped")
	return err
}

// String implements fmt.Stringer so suture logs a readable name.
func (s *RunnerService) String() string {
	return s.name
}

// IntakeService consumes live intake messages from the bus. The
// handler chain is rebuilt on every Serve so a restart re-subscribes
// with the durable consumer.
type IntakeService struct {
	subscriber *bus.Subscriber
	intake     *pipeline.Intake
}

// NewIntakeService wraps the live intake path as a Suture service.
func NewIntakeService(subscriber *bus.Subscriber, intake *pipeline.Intake) *IntakeService {
	return &IntakeService{subscriber: subscriber, intake: intake}
}

// Serve implements suture.Service.
func (s *IntakeService) Serve(ctx context.Context) error {
	logging.Info().Str("service", "intake").Str("topic", bus.IntakeTopic).
		Msg("Live intake starting")

	err := s.subscriber.NewIntakeHandler().
		Handle(s.intake.HandleEnvelope).
		Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Str("service", "intake").Msg("Live intake stopped with error")
		return err
	}

	logging.Info().Str("service", "intake").Msg("Live intake stopped")
	return err
}

// String implements fmt.Stringer.
func (s *IntakeService) String() string {
	return "intake"
}
