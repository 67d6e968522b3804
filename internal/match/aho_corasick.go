// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

// Package match provides multi-pattern keyword matching for the classifier
// and the conflict tagger.
package match

import (
	"strings"
	"sync"
	"unicode"
)

// AhoCorasick implements the Aho-Corasick string matching algorithm.
// It finds all occurrences of multiple terms in a text in O(n + m + z)
// time, where n is the text length, m the total term length, and z the
// number of matches - much faster than scanning each term individually.
//
// Matching is case-insensitive and word-boundary aware: a term only
// matches when it is not embedded inside a longer alphanumeric run, so
// "KIA" does not match inside "Kiangsu".
type AhoCorasick struct {
	mu    sync.RWMutex
	root  *acNode
	terms []Term
	built bool
}

// acNode is a node in the Aho-Corasick automaton.
type acNode struct {
	children map[rune]*acNode
	failure  *acNode
	output   []int // indices of terms ending at this node
}

// Term is a search term with a weight and an optional label carried
// through to matches. Multi-word phrases typically carry higher weights
// than single generic words.
type Term struct {
	Text   string
	Weight float64
	Label  string
}

// Match is a term occurrence in the scanned text.
type Match struct {
	Term     string
	Weight   float64
	Label    string
	Position int // rune offset of the match start
}

// New creates an empty automaton.
func New() *AhoCorasick {
	return &AhoCorasick{root: newACNode()}
}

// NewFromTerms creates and builds an automaton from the given terms.
func NewFromTerms(terms []Term) *AhoCorasick {
	ac := New()
	for _, t := range terms {
		ac.Add(t)
	}
	ac.Build()
	return ac
}

func newACNode() *acNode {
	return &acNode{children: make(map[rune]*acNode)}
}

// Add registers a term. Must be followed by Build before searching.
func (ac *AhoCorasick) Add(term Term) {
	if term.Text == "" {
		return
	}

	ac.mu.Lock()
	defer ac.mu.Unlock()

	ac.built = false
	ac.terms = append(ac.terms, term)
}

// AddAll registers multiple term texts under one weight and label.
func (ac *AhoCorasick) AddAll(texts []string, weight float64, label string) {
	for _, t := range texts {
		ac.Add(Term{Text: t, Weight: weight, Label: label})
	}
}

// Build constructs the automaton. Idempotent; must be called after the
// last Add and before the first Search.
func (ac *AhoCorasick) Build() {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if ac.built {
		return
	}

	ac.root = newACNode()
	for i, t := range ac.terms {
		ac.insert(i, t.Text)
	}
	ac.buildFailureLinks()
	ac.built = true
}

func (ac *AhoCorasick) insert(index int, text string) {
	node := ac.root
	for _, ch := range strings.ToLower(text) {
		if node.children[ch] == nil {
			node.children[ch] = newACNode()
		}
		node = node.children[ch]
	}
	node.output = append(node.output, index)
}

// buildFailureLinks builds failure links with a BFS over the trie.
func (ac *AhoCorasick) buildFailureLinks() {
	queue := make([]*acNode, 0, len(ac.root.children))
	for _, child := range ac.root.children {
		child.failure = ac.root
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for ch, child := range current.children {
			queue = append(queue, child)

			fail := current.failure
			for fail != nil && fail.children[ch] == nil {
				fail = fail.failure
			}
			if fail == nil {
				child.failure = ac.root
			} else {
				child.failure = fail.children[ch]
				child.output = append(child.output, child.failure.output...)
			}
		}
	}
}

// Search finds all word-boundary-respecting term matches in text.
func (ac *AhoCorasick) Search(text string) []Match {
	ac.mu.RLock()
	defer ac.mu.RUnlock()

	if !ac.built || len(ac.terms) == 0 {
		return nil
	}

	runes := []rune(strings.ToLower(text))
	var matches []Match
	node := ac.root

	for i, ch := range runes {
		for node != nil && node.children[ch] == nil {
			node = node.failure
		}
		if node == nil {
			node = ac.root
			continue
		}
		node = node.children[ch]

		for _, idx := range node.output {
			term := ac.terms[idx]
			start := i - len([]rune(term.Text)) + 1
			if !boundedAt(runes, start, i) {
				continue
			}
			matches = append(matches, Match{
				Term:     term.Text,
				Weight:   term.Weight,
				Label:    term.Label,
				Position: start,
			})
		}
	}

	return matches
}

// MatchCount returns the number of matches in text.
func (ac *AhoCorasick) MatchCount(text string) int {
	return len(ac.Search(text))
}

// Contains reports whether any term matches in text.
func (ac *AhoCorasick) Contains(text string) bool {
	return len(ac.Search(text)) > 0
}

// TermCount returns the number of registered terms.
func (ac *AhoCorasick) TermCount() int {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return len(ac.terms)
}

// boundedAt reports whether the span [start, end] sits on word boundaries:
// the runes adjacent to the span must not be letters or digits.
func boundedAt(runes []rune, start, end int) bool {
	if start > 0 && isWordRune(runes[start-1]) {
		return false
	}
	if end+1 < len(runes) && isWordRune(runes[end+1]) {
		return false
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
