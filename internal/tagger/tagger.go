// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

// Package tagger assigns messages to conflict tracking buckets. The
// source's default conflict is always the primary tag; further conflicts
// attach when the text matches their keyword lists.
package tagger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/arguswatch/argus/internal/match"
	"github.com/arguswatch/argus/internal/models"
)

// DefaultMinMatches is the minimum keyword hit count for a secondary
// conflict tag. A single hit suffices: this is a presence test, not a
// confidence score.
const DefaultMinMatches = 1

// Tag is one conflict assignment. The primary tag is always first in a
// Tagger.Tag result.
type Tag struct {
	Conflict   models.Conflict
	IsPrimary  bool
	MatchCount int
}

// Tagger matches message text against per-conflict keyword lists. The
// conflict set is reloadable at runtime (Reload) so new conflicts need no
// restart; Tag and Reload are safe to call concurrently.
type Tagger struct {
	mu         sync.RWMutex
	byID       map[int64]models.Conflict
	matchers   map[int64]*match.AhoCorasick
	order      []int64 // active conflict ids in registry order, for determinism
	minMatches int
}

// New creates a tagger over the given active conflicts. minMatches <= 0
// falls back to DefaultMinMatches.
func New(conflicts []models.Conflict, minMatches int) *Tagger {
	if minMatches <= 0 {
		minMatches = DefaultMinMatches
	}
	t := &Tagger{minMatches: minMatches}
	t.Reload(conflicts)
	return t
}

// Reload replaces the conflict set. Inactive conflicts are dropped;
// keyword automatons are rebuilt.
func (t *Tagger) Reload(conflicts []models.Conflict) {
	byID := make(map[int64]models.Conflict, len(conflicts))
	matchers := make(map[int64]*match.AhoCorasick, len(conflicts))
	order := make([]int64, 0, len(conflicts))

	for _, c := range conflicts {
		if !c.IsActive {
			continue
		}
		byID[c.ID] = c
		order = append(order, c.ID)
		if len(c.Keywords) > 0 {
			m := match.New()
			m.AddAll(c.Keywords, 1, c.ShortCode)
			m.Build()
			matchers[c.ID] = m
		}
	}

	t.mu.Lock()
	t.byID = byID
	t.matchers = matchers
	t.order = order
	t.mu.Unlock()
}

// Len returns the number of active conflicts currently loaded.
func (t *Tagger) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

// Conflict looks up an active conflict by id.
func (t *Tagger) Conflict(id int64) (models.Conflict, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.byID[id]
	return c, ok
}

// RegionBias returns the region-bias hint for a conflict, used to
// disambiguate place names during geocoding. Empty when unknown.
func (t *Tagger) RegionBias(id int64) string {
	c, ok := t.Conflict(id)
	if !ok {
		return ""
	}
	return c.RegionBias
}

// Tag returns the ordered conflict assignments for a message: the
// source's default conflict first (always primary), then secondaries
// whose keyword lists matched at least minMatches times, strongest first.
// A message with no secondary matches is not an error - it simply yields
// one event set instead of several.
func (t *Tagger) Tag(text string, defaultConflictID int64) ([]Tag, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	primary, ok := t.byID[defaultConflictID]
	if !ok {
		return nil, fmt.Errorf("tag: default conflict %d not in active registry", defaultConflictID)
	}

	primaryCount := 0
	if m := t.matchers[defaultConflictID]; m != nil {
		primaryCount = m.MatchCount(text)
	}
	tags := []Tag{{Conflict: primary, IsPrimary: true, MatchCount: primaryCount}}

	var secondaries []Tag
	for _, id := range t.order {
		if id == defaultConflictID {
			continue
		}
		m := t.matchers[id]
		if m == nil {
			continue
		}
		if count := m.MatchCount(text); count >= t.minMatches {
			secondaries = append(secondaries, Tag{Conflict: t.byID[id], MatchCount: count})
		}
	}

	// Strongest secondary first; conflict id breaks ties deterministically.
	sort.SliceStable(secondaries, func(i, j int) bool {
		if secondaries[i].MatchCount != secondaries[j].MatchCount {
			return secondaries[i].MatchCount > secondaries[j].MatchCount
		}
		return secondaries[i].Conflict.ID < secondaries[j].Conflict.ID
	})

	return append(tags, secondaries...), nil
}
