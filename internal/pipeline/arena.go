// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

package pipeline

import (
	"sync"

	"github.com/arguswatch/argus/internal/metrics"
)

// Arena tracks messages this instance is processing right now. Live
// intake and the backlog sweep run concurrently and can both see the
// same unprocessed message; the arena makes sure only one of them
// carries it into the database claim.
type Arena struct {
	mu       sync.Mutex
	inFlight map[int64]struct{}
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{inFlight: make(map[int64]struct{})}
}

// TryAcquire marks a message in flight. Returns false when another
// local worker already holds it.
func (a *Arena) TryAcquire(id int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, held := a.inFlight[id]; held {
		return false
	}
	a.inFlight[id] = struct{}{}
	metrics.InFlightMessages.Set(float64(len(a.inFlight)))
	return true
}

// Release drops a message from the in-flight set. Releasing an
// unheld id is a no-op.
func (a *Arena) Release(id int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.inFlight, id)
	metrics.InFlightMessages.Set(float64(len(a.inFlight)))
}

// Len returns the number of messages currently in flight.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inFlight)
}
