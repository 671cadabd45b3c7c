// Siteplan - Installation Site-Plan Annotation for Field Technicians
// Copyright 2026 M. Kroh (mkroh)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mkroh/siteplan

// Package config loads and validates the Siteplan server configuration.
//
// Configuration is layered via Koanf v2 (highest priority wins):
//  1. Built-in defaults
//  2. Optional YAML config file (config.yaml, /etc/siteplan/config.yaml,
//     or the path in CONFIG_PATH)
//  3. Environment variables (SERVER_PORT, SECURITY_SIGNING_SECRET, ...)
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration for the Siteplan server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	CRM      CRMConfig      `koanf:"crm"`
	Maps     MapsConfig     `koanf:"maps"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// PublicURL is the externally reachable base URL used when building
	// signed technician links (e.g. https://plan.example.com).
	PublicURL string `koanf:"public_url"`

	// StaticDir is the directory the annotation page is served from.
	StaticDir string `koanf:"static_dir"`

	// Environment is "development" or "production". Production tightens
	// validation (a signing secret becomes mandatory).
	Environment string `koanf:"environment"`
}

// SecurityConfig holds token and transport protection settings.
type SecurityConfig struct {
	// SigningSecret keys the HMAC over technician link tokens. Empty
	// disables authentication entirely; only acceptable in development.
	SigningSecret string `koanf:"signing_secret"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// CRMConfig holds the connection settings for the customer-record system
// that installations are fetched from and site plans uploaded to.
type CRMConfig struct {
	URL     string        `koanf:"url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

// MapsConfig holds geocoding/imagery provider settings.
type MapsConfig struct {
	// APIKey is handed to the browser for satellite imagery and used
	// server-side for the geocoding proxy. Empty is allowed; the page
	// then falls back to demo imagery.
	APIKey string `koanf:"api_key"`

	// GeocodeURL is the geocoding endpoint. Defaults to the Google
	// Geocoding API; override for testing or an alternative provider.
	GeocodeURL string `koanf:"geocode_url"`

	Timeout time.Duration `koanf:"timeout"`

	// RatePerSecond caps outbound geocoding calls to stay inside the
	// provider quota. Zero disables the limiter.
	RatePerSecond float64 `koanf:"rate_per_second"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Default returns a Config with all defaults applied.
// These are layered first, then overridden by file and env.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8745,
			Timeout:     30 * time.Second,
			PublicURL:   "",
			StaticDir:   "./web/static",
			Environment: "development",
		},
		Security: SecurityConfig{
			SigningSecret:     "",
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		CRM: CRMConfig{
			URL:     "",
			APIKey:  "",
			Timeout: 30 * time.Second,
		},
		Maps: MapsConfig{
			APIKey:        "",
			GeocodeURL:    "https://maps.googleapis.com/maps/api/geocode/json",
			Timeout:       10 * time.Second,
			RatePerSecond: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.Environment != "development" && c.Server.Environment != "production" {
		return fmt.Errorf("server.environment must be development or production, got %q", c.Server.Environment)
	}
	if c.Server.Environment == "production" && c.Security.SigningSecret == "" {
		return fmt.Errorf("security.signing_secret is required in production (auth-disabled mode is development only)")
	}
	if c.Security.SigningSecret != "" && len(c.Security.SigningSecret) < 16 {
		return fmt.Errorf("security.signing_secret must be at least 16 characters")
	}
	if c.CRM.URL != "" {
		if err := validateHTTPURL("crm.url", c.CRM.URL); err != nil {
			return err
		}
	}
	if err := validateHTTPURL("maps.geocode_url", c.Maps.GeocodeURL); err != nil {
		return err
	}
	if c.Server.PublicURL != "" {
		if err := validateHTTPURL("server.public_url", c.Server.PublicURL); err != nil {
			return err
		}
	}
	if c.Maps.RatePerSecond < 0 {
		return fmt.Errorf("maps.rate_per_second must not be negative")
	}
	return nil
}

// AuthDisabled reports whether the server runs without token verification.
func (c *Config) AuthDisabled() bool {
	return c.Security.SigningSecret == ""
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if !strings.HasPrefix(u.Scheme, "http") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", field, raw)
	}
	return nil
}
