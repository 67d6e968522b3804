// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

// Package extract identifies candidate place-name spans in message text.
//
// It produces spans only - no coordinates. Candidates carry a coarse
// entity-type hint (place or facility) used to filter obviously
// non-geographic matches; organization- and person-shaped spans are
// dropped before they are emitted. Resolution to coordinates is the
// geocode package's job.
package extract

import (
	"strings"
	"unicode"
)

// Kind is the coarse entity-type hint for a candidate span.
type Kind string

const (
	// KindPlace is a settlement, region, or other named location.
	KindPlace Kind = "place"
	// KindFacility is named infrastructure (airports, bases, ports).
	KindFacility Kind = "facility"
)

// Candidate is one place-name span found in message text.
type Candidate struct {
	Text string
	Kind Kind
}

// cueWords introduce a location in conflict reporting ("strike near X",
// "advance toward Y"). A capitalized run following one is a candidate
// even mid-sentence.
var cueWords = map[string]bool{
	"in": true, "near": true, "at": true, "from": true, "over": true,
	"outside": true, "around": true, "toward": true, "towards": true,
	"into": true, "across": true, "between": true, "north": true,
	"south": true, "east": true, "west": true, "of": true,
}

// facilityWords mark a span as infrastructure rather than a settlement.
var facilityWords = map[string]bool{
	"airport": true, "airbase": true, "airfield": true, "base": true,
	"port": true, "bridge": true, "plant": true, "refinery": true,
	"depot": true, "crossing": true, "dam": true, "terminal": true,
}

// orgWords inside a span mean it names an organization, not a location.
var orgWords = map[string]bool{
	"ministry": true, "brigade": true, "battalion": true, "corps": true,
	"forces": true, "army": true, "group": true, "agency": true,
	"council": true, "committee": true, "party": true, "command": true,
}

// personTitles preceding a span mean it names a person.
var personTitles = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "president": true,
	"minister": true, "general": true, "gen": true, "colonel": true,
	"col": true, "admiral": true, "commander": true, "chancellor": true,
}

// connectorWords may appear inside a multi-token place name
// ("Deir ez-Zor", "Bab el-Mandeb") without breaking the span.
var connectorWords = map[string]bool{
	"ez": true, "el": true, "al": true, "es": true, "de": true,
}

// token is one whitespace-delimited word with its punctuation context.
type token struct {
	raw      string // original text, punctuation stripped
	lower    string
	capital  bool // starts with an uppercase letter
	allCaps  bool
	sentence bool // starts a sentence (preceded by ./!/? or text start)
}

// Scanner lazily yields candidate spans for one message. It is finite and
// not restartable: once Next returns false it stays exhausted. Not safe
// for concurrent use - each message gets its own scanner.
type Scanner struct {
	tokens []token
	pos    int
	seen   map[string]bool
	done   bool
}

// Scan tokenizes text and returns a consume-once scanner over its
// candidate spans.
func Scan(text string) *Scanner {
	return &Scanner{
		tokens: tokenize(text),
		seen:   make(map[string]bool),
	}
}

// Next returns the next candidate span. The second return is false when
// the scanner is exhausted.
func (s *Scanner) Next() (Candidate, bool) {
	if s.done {
		return Candidate{}, false
	}

	for s.pos < len(s.tokens) {
		start := s.pos
		s.pos++

		tok := s.tokens[start]
		if !tok.capital {
			continue
		}

		// Extend to the maximal capitalized run, allowing connector
		// words inside ("Deir ez-Zor").
		end := start
		for end+1 < len(s.tokens) {
			next := s.tokens[end+1]
			if next.sentence {
				break
			}
			if next.capital || connectorWords[next.lower] && end+2 < len(s.tokens) && s.tokens[end+2].capital {
				end++
				continue
			}
			break
		}
		// Trim a trailing connector that didn't lead anywhere.
		for end > start && connectorWords[s.tokens[end].lower] {
			end--
		}
		s.pos = end + 1

		if cand, ok := s.candidate(start, end); ok {
			return cand, true
		}
	}

	s.done = true
	return Candidate{}, false
}

// Collect drains the scanner into a slice. Mostly a test convenience;
// production code consumes candidates one at a time.
func (s *Scanner) Collect() []Candidate {
	var out []Candidate
	for {
		c, ok := s.Next()
		if !ok {
			return out
		}
		out = append(out, c)
	}
}

// candidate validates the token run [start, end] and classifies it.
func (s *Scanner) candidate(start, end int) (Candidate, bool) {
	// Sentence-initial runs with no locative cue are usually subjects
	// ("Drone strike reported..."), not locations.
	cued := start > 0 && cueWords[s.tokens[start-1].lower]
	if s.tokens[start].sentence && !cued {
		return Candidate{}, false
	}

	// A title before or at the head of the run means a person's name
	// ("met President Aoun", "Gen Brown arrived").
	if start > 0 && personTitles[s.tokens[start-1].lower] {
		return Candidate{}, false
	}
	if personTitles[s.tokens[start].lower] {
		return Candidate{}, false
	}

	// A bare capitalized cue word ("North", "In") is not a place.
	if start == end && cueWords[s.tokens[start].lower] {
		return Candidate{}, false
	}

	kind := KindPlace
	words := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		tok := s.tokens[i]
		if orgWords[tok.lower] {
			return Candidate{}, false
		}
		if facilityWords[tok.lower] {
			kind = KindFacility
		}
		words = append(words, tok.raw)
	}

	// Short all-caps single tokens are acronyms (IDF, IRGC, NATO).
	if start == end && s.tokens[start].allCaps && len(s.tokens[start].raw) <= 5 {
		return Candidate{}, false
	}

	text := strings.Join(words, " ")
	key := strings.ToLower(text)
	if s.seen[key] {
		return Candidate{}, false
	}
	s.seen[key] = true

	return Candidate{Text: text, Kind: kind}, true
}

// tokenize splits text into tokens, recording capitalization and
// sentence boundaries.
func tokenize(text string) []token {
	fields := strings.Fields(text)
	tokens := make([]token, 0, len(fields))
	sentence := true

	for _, f := range fields {
		trailing := strings.TrimRightFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		stripped := strings.TrimLeftFunc(trailing, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if stripped == "" {
			sentence = sentence || endsSentence(f)
			continue
		}

		runes := []rune(stripped)
		tokens = append(tokens, token{
			raw:      stripped,
			lower:    strings.ToLower(stripped),
			capital:  unicode.IsUpper(runes[0]) || connectorHyphen(stripped),
			allCaps:  isAllCaps(stripped),
			sentence: sentence,
		})
		sentence = endsSentence(f)
	}

	return tokens
}

// endsSentence reports whether the raw field closes a sentence.
func endsSentence(field string) bool {
	switch {
	case strings.HasSuffix(field, "."), strings.HasSuffix(field, "!"),
		strings.HasSuffix(field, "?"), strings.HasSuffix(field, ";"),
		strings.HasSuffix(field, ":"):
		return true
	}
	return false
}

// connectorHyphen recognizes hyphenated connector tokens inside place
// names ("ez-Zor" in "Deir ez-Zor", "al-Arab" in "Shatt al-Arab") so
// they extend a capitalized run despite their lowercase first rune.
func connectorHyphen(s string) bool {
	prefix, rest, ok := strings.Cut(s, "-")
	if !ok || rest == "" {
		return false
	}
	if !connectorWords[strings.ToLower(prefix)] {
		return false
	}
	return unicode.IsUpper([]rune(rest)[0])
}

func isAllCaps(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}
