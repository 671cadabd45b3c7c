// Siteplan - Installation Site-Plan Annotation for Field Technicians
// Copyright 2026 M. Kroh (mkroh)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mkroh/siteplan

package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mkroh/siteplan/internal/config"
	"github.com/mkroh/siteplan/internal/middleware"
)

// NewRouter builds the full route table.
//
// Route groups:
//
//	/api/health/*                 liveness and readiness, unmetered
//	/api/config                   public page bootstrap
//	/api/generate-url/{id}        unguarded administrative link minting
//	/api/installation/{id}/*      token-gated record access and upload
//	/api/geocode                  token-gated address resolution
//	/metrics                      Prometheus scrape endpoint
//	/                             the static annotation page
func NewRouter(cfg *config.Config, handlers *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(cfg.Security.CORSOrigins))
	r.Use(chimiddleware.Compress(5))

	rateLimit := RateLimit(&cfg.Security)
	gate := AccessGate(cfg.Security.SigningSecret)

	r.Route("/api/health", func(r chi.Router) {
		r.Get("/live", handlers.HandleLiveness)
		r.Get("/ready", handlers.HandleReadiness)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit)
		r.Use(SecurityHeaders)
		r.Use(middleware.PrometheusMetrics)

		r.Get("/config", handlers.HandleConfig)
		r.Get("/generate-url/{id}", handlers.HandleGenerateURL)

		r.Route("/installation/{id}", func(r chi.Router) {
			r.Use(gate)
			r.Get("/", handlers.HandleInstallation)
			r.Post("/placement", handlers.HandlePlacement)
		})

		r.With(gate).Get("/geocode", handlers.HandleGeocode)
	})

	r.Handle("/metrics", promhttp.Handler())

	mountStatic(r, cfg.Server.StaticDir)

	return r
}

// mountStatic serves the annotation page. A missing directory is not
// fatal; API-only deployments front the page from elsewhere.
func mountStatic(r chi.Router, dir string) {
	if dir == "" {
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return
	}

	fs := http.FileServer(http.Dir(filepath.Clean(dir)))
	r.Handle("/*", fs)
}
