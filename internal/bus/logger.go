// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

package bus

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/arguswatch/argus/internal/logging"
)

// zerologAdapter bridges Watermill's logging into the global zerolog
// output so bus internals log in the same format as everything else.
type zerologAdapter struct {
	log zerolog.Logger
}

// NewLoggerAdapter returns a watermill.LoggerAdapter backed by the
// process logger.
func NewLoggerAdapter() watermill.LoggerAdapter {
	return &zerologAdapter{
		log: logging.With().Str("component", "bus").Logger(),
	}
}

func (a *zerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.event(a.log.Error().Err(err), fields).Msg(msg)
}

func (a *zerologAdapter) Info(msg string, fields watermill.LogFields) {
	a.event(a.log.Info(), fields).Msg(msg)
}

func (a *zerologAdapter) Debug(msg string, fields watermill.LogFields) {
	a.event(a.log.Debug(), fields).Msg(msg)
}

func (a *zerologAdapter) Trace(msg string, fields watermill.LogFields) {
	a.event(a.log.Trace(), fields).Msg(msg)
}

func (a *zerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	child := a.log
	for k, v := range fields {
		child = child.With().Interface(k, v).Logger()
	}
	return &zerologAdapter{log: child}
}

func (a *zerologAdapter) event(ev *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	return ev
}
