// Siteplan - Installation Site-Plan Annotation for Field Technicians
// Copyright 2026 M. Kroh (mkroh)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mkroh/siteplan

// Package main is the entry point for the Siteplan server.
//
// Siteplan serves a single-purpose annotation page to field technicians:
// they open a signed link, mark the indoor unit, the outdoor unit, and
// the connecting line route on the installation site plan, and upload
// the flattened result back into the CRM record.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, config.yaml, environment (Koanf v2)
//  2. Logging: zerolog, JSON or console format
//  3. CRM gateway: HTTP client wrapped in a circuit breaker
//  4. Geocoder: Google Geocoding proxy with a local rate limit
//  5. HTTP server: Chi router under a suture supervision tree
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (SERVER_PORT, SECURITY_SIGNING_SECRET, ...)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// A signing secret is required in production; without one every signed
// link check is skipped, which is only acceptable for local development.
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: it stops
// accepting connections and waits up to 10 seconds for in-flight
// uploads to finish.
//
// # Example Usage
//
// Local development without link signing:
//
//	export CRM_URL=http://localhost:9000/api
//	export CRM_API_KEY=dev-key
//	./siteplan
//
// Production:
//
//	export SERVER_ENVIRONMENT=production
//	export SERVER_PUBLIC_URL=https://plan.example.com
//	export SECURITY_SIGNING_SECRET=$(openssl rand -base64 32)
//	export CRM_URL=https://crm.example.com/api
//	export CRM_API_KEY=...
//	export MAPS_API_KEY=...
//	./siteplan
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkroh/siteplan/internal/api"
	"github.com/mkroh/siteplan/internal/config"
	"github.com/mkroh/siteplan/internal/crm"
	"github.com/mkroh/siteplan/internal/geocode"
	"github.com/mkroh/siteplan/internal/logging"
	"github.com/mkroh/siteplan/internal/supervisor"
	"github.com/mkroh/siteplan/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("addr", cfg.Server.Addr()).
		Bool("auth_disabled", cfg.AuthDisabled()).
		Msg("Starting Siteplan")

	if cfg.AuthDisabled() {
		logging.Warn().Msg("No signing secret configured, signed-link checks are disabled")
	}

	gateway := crm.NewBreakerGateway(crm.NewClient(&cfg.CRM))
	geocoder := geocode.NewClient(&cfg.Maps)

	handlers := api.NewHandlers(cfg, gateway, geocoder)
	router := api.NewRouter(cfg, handlers)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.Add(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Siteplan stopped gracefully")
}
