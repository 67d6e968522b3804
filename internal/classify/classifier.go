// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

// Package classify scores message text against per-event-type keyword
// tables and derives an event type with a normalized confidence value.
//
// The keyword tables are data, not code: new event types are added by
// configuration alone. Classification is deterministic - identical input
// always yields an identical result - which makes reprocessing after a
// crash idempotent.
package classify

import (
	"fmt"
	"strings"

	"github.com/arguswatch/argus/internal/match"
	"github.com/arguswatch/argus/internal/models"
)

// TermEntry is one weighted keyword or phrase in an event-type table.
type TermEntry struct {
	Text   string  `json:"text" koanf:"text"`
	Weight float64 `json:"weight" koanf:"weight"`
}

// EventTypeDef declares an event type and its term table. Declaration
// order is the fixed tie-break priority: earlier types win exact ties.
type EventTypeDef struct {
	Type  string      `json:"type" koanf:"type"`
	Terms []TermEntry `json:"terms" koanf:"terms"`
}

// Config holds the classifier's term tables and scoring parameters.
type Config struct {
	// EventTypes in priority order.
	EventTypes []EventTypeDef

	// NoiseTerms veto weak classifications when their match density is
	// high (shitposts, satire, engagement bait).
	NoiseTerms []string

	// NoiseVetoDensity is the noise-matches-per-word ratio above which a
	// below-threshold classification is suppressed entirely.
	NoiseVetoDensity float64

	// Normalizer divides the cumulative match weight to produce a
	// confidence in [0,1]. Lower values make the classifier more eager.
	Normalizer float64

	// Threshold is the minimum confidence for a message to be considered
	// relevant. The boundary is inclusive: a score exactly at the
	// threshold passes.
	Threshold float64

	// HighSignalPlatforms lists platforms whose sources are treated as
	// exempt from the relevance filter by default.
	HighSignalPlatforms []string

	// FallbackEventType is assigned when an exempt source matches no
	// term at all. It must be a generic label, never a specific one from
	// the tables: a quiet message carries no evidence of any incident.
	FallbackEventType string
}

// DefaultFallbackEventType labels exempt no-match messages.
const DefaultFallbackEventType = "geopolitical"

// Result is the classifier's output for one message.
type Result struct {
	// EventType is the winning type, or empty when nothing matched.
	EventType string

	// Confidence is the normalized score in [0,1].
	Confidence float64

	// Relevant is false when the message scored below the threshold and
	// no exemption applies. Irrelevant messages produce no events but are
	// still marked processed.
	Relevant bool

	// MatchedTerms lists the terms that contributed to the winning score,
	// in text order.
	MatchedTerms []string
}

// Classifier scores message text against the configured term tables.
// Safe for concurrent use.
type Classifier struct {
	cfg      Config
	matcher  *match.AhoCorasick
	noise    *match.AhoCorasick
	priority map[string]int
	// specificity per term text: phrase word count, so multi-word phrases
	// dominate tie-breaks between equal cumulative weights.
	specificity map[string]float64
	highSignal  map[string]bool
}

// New builds a classifier from cfg. Malformed tables (no event types,
// empty type names, non-positive weights, duplicate types) are startup
// errors: the caller is expected to treat them as fatal.
func New(cfg Config) (*Classifier, error) {
	if len(cfg.EventTypes) == 0 {
		return nil, fmt.Errorf("classifier config: no event types declared")
	}
	if cfg.Normalizer <= 0 {
		cfg.Normalizer = 8.0
	}
	if cfg.NoiseVetoDensity <= 0 {
		cfg.NoiseVetoDensity = 0.05
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("classifier config: threshold %v outside [0,1]", cfg.Threshold)
	}
	if cfg.FallbackEventType == "" {
		cfg.FallbackEventType = DefaultFallbackEventType
	}

	matcher := match.New()
	priority := make(map[string]int, len(cfg.EventTypes))
	specificity := make(map[string]float64)

	for i, et := range cfg.EventTypes {
		if et.Type == "" {
			return nil, fmt.Errorf("classifier config: event type %d has empty name", i)
		}
		if _, dup := priority[et.Type]; dup {
			return nil, fmt.Errorf("classifier config: duplicate event type %q", et.Type)
		}
		if len(et.Terms) == 0 {
			return nil, fmt.Errorf("classifier config: event type %q has no terms", et.Type)
		}
		priority[et.Type] = i

		for _, term := range et.Terms {
			if term.Text == "" || term.Weight <= 0 {
				return nil, fmt.Errorf("classifier config: event type %q has malformed term %+v", et.Type, term)
			}
			matcher.Add(match.Term{Text: term.Text, Weight: term.Weight, Label: et.Type})
			specificity[strings.ToLower(term.Text)] = float64(len(strings.Fields(term.Text)))
		}
	}
	matcher.Build()

	var noise *match.AhoCorasick
	if len(cfg.NoiseTerms) > 0 {
		noise = match.New()
		noise.AddAll(cfg.NoiseTerms, 1, "noise")
		noise.Build()
	}

	highSignal := make(map[string]bool, len(cfg.HighSignalPlatforms))
	for _, p := range cfg.HighSignalPlatforms {
		highSignal[strings.ToLower(p)] = true
	}

	return &Classifier{
		cfg:         cfg,
		matcher:     matcher,
		noise:       noise,
		priority:    priority,
		specificity: specificity,
		highSignal:  highSignal,
	}, nil
}

// Threshold returns the configured relevance threshold.
func (c *Classifier) Threshold() float64 {
	return c.cfg.Threshold
}

// typeScore accumulates match evidence for one event type.
type typeScore struct {
	weight     float64
	specWeight float64
	matched    []string
}

// Classify scores text for the given source. The source's filter rules
// may scale the score or exempt the source from the relevance filter;
// high-signal platforms are exempt by default.
func (c *Classifier) Classify(text string, src *models.Source) Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{}
	}

	wordCount := len(strings.Fields(trimmed))
	if wordCount == 0 {
		wordCount = 1
	}

	geoWeight := 1.0
	noiseWeight := 1.0
	exempt := false
	if src != nil {
		if src.FilterRules.GeoWeight > 0 {
			geoWeight = src.FilterRules.GeoWeight
		}
		if src.FilterRules.NoiseWeight > 0 {
			noiseWeight = src.FilterRules.NoiseWeight
		}
		exempt = src.FilterRules.Exempt || c.highSignal[strings.ToLower(src.Platform)]
	}

	scores := make(map[string]*typeScore)
	for _, m := range c.matcher.Search(trimmed) {
		ts := scores[m.Label]
		if ts == nil {
			ts = &typeScore{}
			scores[m.Label] = ts
		}
		ts.weight += m.Weight
		ts.specWeight += m.Weight * c.specificity[strings.ToLower(m.Term)]
		ts.matched = append(ts.matched, m.Term)
	}

	winner, winScore := c.pickWinner(scores)
	if winner == "" {
		// Nothing matched. Exempt sources still proceed, typed with the
		// generic fallback at zero confidence.
		if exempt {
			return Result{
				EventType: c.cfg.FallbackEventType,
				Relevant:  true,
			}
		}
		return Result{}
	}

	confidence := winScore.weight * geoWeight / c.cfg.Normalizer
	if confidence > 1 {
		confidence = 1
	}

	relevant := confidence >= c.cfg.Threshold
	if relevant && c.noise != nil {
		density := float64(c.noise.MatchCount(trimmed)) * noiseWeight / float64(wordCount)
		if density > c.cfg.NoiseVetoDensity && confidence < 2*c.cfg.Threshold {
			relevant = false
		}
	}
	if exempt {
		relevant = true
	}

	return Result{
		EventType:    winner,
		Confidence:   confidence,
		Relevant:     relevant,
		MatchedTerms: winScore.matched,
	}
}

// pickWinner selects the event type with the highest cumulative weight.
// Ties fall to the higher specificity-weighted score, then to the earlier
// declared type - stable and deterministic for reproducible reprocessing.
func (c *Classifier) pickWinner(scores map[string]*typeScore) (string, *typeScore) {
	var winner string
	var win *typeScore

	for eventType, ts := range scores {
		if win == nil {
			winner, win = eventType, ts
			continue
		}
		switch {
		case ts.weight > win.weight:
			winner, win = eventType, ts
		case ts.weight == win.weight && ts.specWeight > win.specWeight:
			winner, win = eventType, ts
		case ts.weight == win.weight && ts.specWeight == win.specWeight &&
			c.priority[eventType] < c.priority[winner]:
			winner, win = eventType, ts
		}
	}

	return winner, win
}
