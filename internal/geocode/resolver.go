// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

// Package geocode resolves place names to coordinates through three
// tiers: an in-process cache, the durable geocode cache table, and the
// rate-limited external geocoding service.
//
// Only positive results are cached. A place the external service cannot
// resolve yields (nil, nil) and will be looked up again next time it
// appears; coverage improves as the service's data does.
package geocode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/arguswatch/argus/internal/cache"
	"github.com/arguswatch/argus/internal/logging"
	"github.com/arguswatch/argus/internal/models"
)

// Coordinates is a resolved location.
type Coordinates struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
	Confidence  float64
}

// Lookup is the external geocoding tier. A nil result with a nil error
// means the service answered but found nothing.
type Lookup interface {
	Geocode(ctx context.Context, place, bias string) (*Coordinates, error)
}

// Store is the durable cache tier. Get returns (nil, nil) on a miss.
type Store interface {
	GetGeocodeCache(ctx context.Context, key string) (*models.GeocodeCacheEntry, error)
	PutGeocodeCache(ctx context.Context, entry models.GeocodeCacheEntry) error
}

// Config holds resolver tuning.
type Config struct {
	// RequestsPerSecond caps calls to the external service. Nominatim's
	// usage policy allows at most one request per second.
	RequestsPerSecond float64

	// BreakerName labels the circuit breaker in logs.
	BreakerName string

	// BreakerMaxFailures consecutive external failures open the breaker.
	BreakerMaxFailures uint32

	// BreakerTimeout is how long the breaker stays open before probing.
	BreakerTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond:  1,
		BreakerName:        "geocode",
		BreakerMaxFailures: 5,
		BreakerTimeout:     30 * time.Second,
	}
}

// Resolver serves place-name lookups from the cheapest tier able to
// answer. Safe for concurrent use; the rate limiter serializes external
// calls across all callers.
type Resolver struct {
	local   *cache.Cache
	store   Store
	lookup  Lookup
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*Coordinates]
	log     zerolog.Logger
}

// New creates a resolver over the given tiers. local may be nil, in
// which case every hit costs a store read.
func New(cfg Config, local *cache.Cache, store Store, lookup Lookup) *Resolver {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultConfig().RequestsPerSecond
	}
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = DefaultConfig().BreakerMaxFailures
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = DefaultConfig().BreakerTimeout
	}
	if cfg.BreakerName == "" {
		cfg.BreakerName = DefaultConfig().BreakerName
	}

	log := logging.With().Str("component", "geocode").Logger()

	breaker := gobreaker.NewCircuitBreaker[*Coordinates](gobreaker.Settings{
		Name:    cfg.BreakerName,
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return &Resolver{
		local:   local,
		store:   store,
		lookup:  lookup,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		breaker: breaker,
		log:     log,
	}
}

// CacheKey derives the durable cache key for a place and region bias.
// The place is case-folded so "Sidon" and "sidon" share an entry; the
// bias participates because the same name resolves differently per
// region.
func CacheKey(place, bias string) string {
	return strings.ToLower(strings.TrimSpace(place)) + "|" + bias
}

// Resolve returns coordinates for place, consulting the local cache,
// then the durable cache, then the external service. A (nil, nil)
// return means the place is genuinely unresolvable right now; it is
// never cached, so later messages retry it.
func (r *Resolver) Resolve(ctx context.Context, place, bias string) (*Coordinates, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return nil, nil
	}
	key := CacheKey(place, bias)

	if r.local != nil {
		if v, ok := r.local.Get(key); ok {
			coords := v.(Coordinates)
			return &coords, nil
		}
	}

	if r.store != nil {
		entry, err := r.store.GetGeocodeCache(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("geocode: durable cache read for %q: %w", place, err)
		}
		if entry != nil {
			coords := Coordinates{
				Latitude:    entry.Latitude,
				Longitude:   entry.Longitude,
				DisplayName: entry.DisplayName,
				Confidence:  entry.Confidence,
			}
			if r.local != nil {
				r.local.Set(key, coords)
			}
			return &coords, nil
		}
	}

	// External tier. The limiter blocks rather than rejects so a burst of
	// uncached places slows the pipeline instead of losing lookups.
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("geocode: rate limiter wait: %w", err)
	}

	coords, err := r.breaker.Execute(func() (*Coordinates, error) {
		return r.lookup.Geocode(ctx, place, bias)
	})
	if err != nil {
		return nil, fmt.Errorf("geocode: external lookup for %q: %w", place, err)
	}
	if coords == nil {
		r.log.Debug().Str("place", place).Str("bias", bias).Msg("place not found")
		return nil, nil
	}

	r.fill(ctx, key, place, *coords)
	return coords, nil
}

// fill writes a positive result back to both cache tiers. Durable write
// failures are logged and swallowed: the result is still good, it just
// will not survive a restart.
func (r *Resolver) fill(ctx context.Context, key, place string, coords Coordinates) {
	if r.local != nil {
		r.local.Set(key, coords)
	}
	if r.store == nil {
		return
	}

	err := r.store.PutGeocodeCache(ctx, models.GeocodeCacheEntry{
		CacheKey:    key,
		PlaceName:   place,
		Latitude:    coords.Latitude,
		Longitude:   coords.Longitude,
		DisplayName: coords.DisplayName,
		Confidence:  coords.Confidence,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		r.log.Warn().Err(err).Str("place", place).Msg("durable cache write failed")
	}
}
