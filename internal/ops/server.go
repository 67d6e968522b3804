// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

// Package ops serves the operational HTTP surface: liveness, readiness
// with per-dependency detail, and Prometheus metrics. It carries no
// data-plane endpoints.
package ops

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/arguswatch/argus/internal/config"
	"github.com/arguswatch/argus/internal/logging"
)

// Check probes one dependency. A nil error means ready.
type Check func(ctx context.Context) error

type namedCheck struct {
	name  string
	check Check
}

// Server is the ops HTTP server.
type Server struct {
	cfg    config.ServerConfig
	checks []namedCheck
	log    zerolog.Logger
}

// NewServer creates an ops server with no readiness checks registered.
func NewServer(cfg config.ServerConfig) *Server {
	return &Server{
		cfg: cfg,
		log: logging.With().Str("component", "ops").Logger(),
	}
}

// AddCheck registers a readiness check under a dependency name. Checks
// run in registration order on every /readyz request.
func (s *Server) AddCheck(name string, check Check) {
	s.checks = append(s.checks, namedCheck{name: name, check: check})
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Run serves until the context is cancelled, then shuts down
// gracefully. Implements the supervisor's Runner contract.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.Timeout,
		WriteTimeout:      s.cfg.Timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("Ops server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("ops server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ops server shutdown: %w", err)
	}
	return ctx.Err()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz runs every registered check and reports per-dependency
// detail. Any failure turns the whole response 503 so load balancers
// stop routing, but the body still names the broken dependency.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	detail := make(map[string]string, len(s.checks))
	for _, c := range s.checks {
		if err := c.check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			detail[c.name] = err.Error()
			continue
		}
		detail[c.name] = "ok"
	}

	body := map[string]interface{}{
		"status": "ready",
		"checks": detail,
	}
	if status != http.StatusOK {
		body["status"] = "not ready"
	}
	s.writeJSON(w, status, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("write response failed")
	}
}
