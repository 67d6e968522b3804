// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/arguswatch/argus/internal/cache"
	"github.com/arguswatch/argus/internal/models"
)

// fakeLookup counts external calls and serves a fixed table.
type fakeLookup struct {
	mu     sync.Mutex
	calls  int
	places map[string]*Coordinates
	err    error
}

func (f *fakeLookup) Geocode(_ context.Context, place, _ string) (*Coordinates, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.places[place], nil
}

func (f *fakeLookup) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeStore is an in-memory durable tier.
type fakeStore struct {
	mu      sync.Mutex
	entries map[string]models.GeocodeCacheEntry
	getErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]models.GeocodeCacheEntry)}
}

func (f *fakeStore) GetGeocodeCache(_ context.Context, key string) (*models.GeocodeCacheEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	entry, ok := f.entries[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (f *fakeStore) PutGeocodeCache(_ context.Context, entry models.GeocodeCacheEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[entry.CacheKey] = entry
	return nil
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.RequestsPerSecond = 1000
	return cfg
}

func TestResolve_ExternalThenCached(t *testing.T) {
	lookup := &fakeLookup{places: map[string]*Coordinates{
		"Sidon": {Latitude: 33.56, Longitude: 35.37, DisplayName: "Sidon, Lebanon", Confidence: 0.7},
	}}
	store := newFakeStore()
	local := cache.New(0)
	defer local.Close()
	r := New(fastConfig(), local, store, lookup)

	coords, err := r.Resolve(context.Background(), "Sidon", "Middle East")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if coords == nil || coords.Latitude != 33.56 {
		t.Fatalf("unexpected coordinates: %+v", coords)
	}
	if lookup.callCount() != 1 {
		t.Fatalf("expected 1 external call, got %d", lookup.callCount())
	}

	// Cache correctness: the repeat resolves without an external request.
	coords, err = r.Resolve(context.Background(), "Sidon", "Middle East")
	if err != nil {
		t.Fatalf("repeat Resolve: %v", err)
	}
	if coords == nil || coords.Latitude != 33.56 {
		t.Fatalf("unexpected cached coordinates: %+v", coords)
	}
	if lookup.callCount() != 1 {
		t.Errorf("repeat lookup must be served from cache, got %d external calls", lookup.callCount())
	}
}

func TestResolve_CaseInsensitiveKey(t *testing.T) {
	lookup := &fakeLookup{places: map[string]*Coordinates{
		"Sidon": {Latitude: 33.56, Longitude: 35.37},
	}}
	local := cache.New(0)
	defer local.Close()
	r := New(fastConfig(), local, newFakeStore(), lookup)

	if _, err := r.Resolve(context.Background(), "Sidon", "Middle East"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	coords, err := r.Resolve(context.Background(), "SIDON", "Middle East")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if coords == nil {
		t.Fatal("case-folded key must hit the cache")
	}
	if lookup.callCount() != 1 {
		t.Errorf("expected 1 external call, got %d", lookup.callCount())
	}
}

func TestResolve_DurableTierSurvivesLocalLoss(t *testing.T) {
	lookup := &fakeLookup{places: map[string]*Coordinates{
		"Tyre": {Latitude: 33.27, Longitude: 35.2},
	}}
	store := newFakeStore()

	first := New(fastConfig(), cache.New(0), store, lookup)
	if _, err := first.Resolve(context.Background(), "Tyre", "Middle East"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// A fresh resolver simulates a restart: local cache empty, durable
	// cache intact.
	second := New(fastConfig(), cache.New(0), store, lookup)
	coords, err := second.Resolve(context.Background(), "Tyre", "Middle East")
	if err != nil {
		t.Fatalf("Resolve after restart: %v", err)
	}
	if coords == nil || coords.Latitude != 33.27 {
		t.Fatalf("unexpected coordinates from durable tier: %+v", coords)
	}
	if lookup.callCount() != 1 {
		t.Errorf("durable tier must answer without an external call, got %d", lookup.callCount())
	}
}

func TestResolve_NotFoundNeverCached(t *testing.T) {
	lookup := &fakeLookup{places: map[string]*Coordinates{}}
	store := newFakeStore()
	local := cache.New(0)
	defer local.Close()
	r := New(fastConfig(), local, store, lookup)

	for i := 0; i < 2; i++ {
		coords, err := r.Resolve(context.Background(), "Nowhereville", "")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if coords != nil {
			t.Fatalf("expected nil coordinates for unknown place, got %+v", coords)
		}
	}

	// No negative caching: both attempts reach the external service.
	if lookup.callCount() != 2 {
		t.Errorf("not_found must not be cached, expected 2 external calls, got %d", lookup.callCount())
	}
	if len(store.entries) != 0 {
		t.Errorf("durable cache must stay empty for not_found, got %d entries", len(store.entries))
	}
}

func TestResolve_EmptyPlace(t *testing.T) {
	lookup := &fakeLookup{}
	r := New(fastConfig(), nil, nil, lookup)

	coords, err := r.Resolve(context.Background(), "   ", "bias")
	if err != nil || coords != nil {
		t.Errorf("empty place must resolve to (nil, nil), got %+v, %v", coords, err)
	}
	if lookup.callCount() != 0 {
		t.Error("empty place must not reach the external tier")
	}
}

func TestResolve_ExternalError(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("upstream down")}
	r := New(fastConfig(), nil, newFakeStore(), lookup)

	if _, err := r.Resolve(context.Background(), "Sidon", ""); err == nil {
		t.Error("external failure must surface as an error")
	}
}

func TestResolve_StoreErrorSurfaced(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("database closed")
	r := New(fastConfig(), nil, store, &fakeLookup{})

	if _, err := r.Resolve(context.Background(), "Sidon", ""); err == nil {
		t.Error("durable cache read failure must surface as an error")
	}
}

func TestResolve_RateLimiterHonorsContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestsPerSecond = 0.001 // effectively never
	r := New(cfg, nil, nil, &fakeLookup{})

	// Burn the single burst token.
	if _, err := r.Resolve(context.Background(), "First", ""); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := r.Resolve(ctx, "Second", ""); err == nil {
		t.Error("expected context deadline while waiting on the rate limiter")
	}
}

func TestCacheKey(t *testing.T) {
	tests := []struct {
		place, bias, want string
	}{
		{"Sidon", "Middle East", "sidon|Middle East"},
		{"  Sidon  ", "Middle East", "sidon|Middle East"},
		{"SIDON", "Middle East", "sidon|Middle East"},
		{"Sidon", "", "sidon|"},
	}
	for _, tt := range tests {
		if got := CacheKey(tt.place, tt.bias); got != tt.want {
			t.Errorf("CacheKey(%q, %q) = %q, want %q", tt.place, tt.bias, got, tt.want)
		}
	}
}

func TestNominatimClient_Geocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "argus-test" {
			t.Errorf("expected User-Agent argus-test, got %q", ua)
		}
		if q := r.URL.Query().Get("q"); q != "Sidon, Middle East" {
			t.Errorf("expected biased query, got %q", q)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"lat":"33.5606","lon":"35.3758","display_name":"Sidon, Lebanon","importance":0.68}]`))
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.URL, "argus-test")
	coords, err := c.Geocode(context.Background(), "Sidon", "Middle East")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if coords.Latitude != 33.5606 || coords.Longitude != 35.3758 {
		t.Errorf("unexpected coordinates: %+v", coords)
	}
	if coords.DisplayName != "Sidon, Lebanon" || coords.Confidence != 0.68 {
		t.Errorf("unexpected metadata: %+v", coords)
	}
}

func TestNominatimClient_ConfidenceBounds(t *testing.T) {
	tests := []struct {
		name string
		body string
		want float64
	}{
		{
			name: "importance above 1 clamps",
			body: `[{"lat":"48.8566","lon":"2.3522","display_name":"Paris","importance":3.2}]`,
			want: 1,
		},
		{
			name: "missing importance defaults",
			body: `[{"lat":"33.5606","lon":"35.3758","display_name":"Sidon"}]`,
			want: 0.5,
		},
		{
			name: "negative importance clamps to zero",
			body: `[{"lat":"33.5606","lon":"35.3758","display_name":"Sidon","importance":-0.1}]`,
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewNominatimClient(srv.URL, "argus-test")
			coords, err := c.Geocode(context.Background(), "place", "")
			if err != nil {
				t.Fatalf("Geocode: %v", err)
			}
			if coords.Confidence != tt.want {
				t.Errorf("confidence = %v, want %v", coords.Confidence, tt.want)
			}
		})
	}
}

func TestNominatimClient_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.URL, "argus-test")
	coords, err := c.Geocode(context.Background(), "Nowhereville", "")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if coords != nil {
		t.Errorf("expected nil for empty result set, got %+v", coords)
	}
}

func TestNominatimClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.URL, "argus-test")
	if _, err := c.Geocode(context.Background(), "Sidon", ""); err == nil {
		t.Error("expected error for non-200 response")
	}
}
