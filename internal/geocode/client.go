// Siteplan - Installation Site-Plan Annotation for Field Technicians
// Copyright 2026 M. Kroh (mkroh)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mkroh/siteplan

// Package geocode resolves postal addresses to coordinates through the
// Google Geocoding API. The server proxies lookups so the Maps API key
// never reaches the browser in a form usable outside the embedded map.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/mkroh/siteplan/internal/config"
	"github.com/mkroh/siteplan/internal/logging"
	"github.com/mkroh/siteplan/internal/metrics"
)

// Sentinel errors surfaced to the API layer.
var (
	// ErrUnresolved indicates the upstream found no match for the address.
	ErrUnresolved = errors.New("address could not be resolved")

	// ErrThrottled indicates the local rate limit rejected the lookup
	// before it reached the upstream.
	ErrThrottled = errors.New("geocoding rate limit exceeded")
)

// Location is a resolved address.
type Location struct {
	Latitude         float64 `json:"lat"`
	Longitude        float64 `json:"lng"`
	FormattedAddress string  `json:"formattedAddress"`
}

// Geocoder resolves a free-form address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*Location, error)
}

// Client is the Google Geocoding API backed Geocoder. A token bucket
// limits the upstream rate; bursts up to twice the steady rate are
// allowed so a technician opening several jobs is not penalized. A nil
// limiter means rate limiting is disabled.
type Client struct {
	geocodeURL string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a geocoding client from configuration. A zero or
// negative RatePerSecond disables the local rate limit.
func NewClient(cfg *config.MapsConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var limiter *rate.Limiter
	if perSecond := cfg.RatePerSecond; perSecond > 0 {
		burst := int(perSecond * 2)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}

	return &Client{
		geocodeURL: cfg.GeocodeURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

// geocodeResponse mirrors the subset of the Google Geocoding API
// response this service reads.
type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves the address, returning ErrUnresolved when the
// upstream has no match and ErrThrottled when the local limit rejects
// the lookup.
func (c *Client) Geocode(ctx context.Context, address string) (*Location, error) {
	if c.limiter != nil && !c.limiter.Allow() {
		metrics.GeocodeLookups.WithLabelValues("throttled").Inc()
		return nil, ErrThrottled
	}

	start := time.Now()
	loc, err := c.geocode(ctx, address)
	metrics.RecordUpstream("geocoding", "geocode", time.Since(start), err)

	switch {
	case err == nil:
		metrics.GeocodeLookups.WithLabelValues("hit").Inc()
	case errors.Is(err, ErrUnresolved):
		metrics.GeocodeLookups.WithLabelValues("miss").Inc()
	default:
		metrics.GeocodeLookups.WithLabelValues("error").Inc()
	}
	return loc, err
}

func (c *Client) geocode(ctx context.Context, address string) (*Location, error) {
	params := url.Values{}
	params.Set("address", address)
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.geocodeURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("geocoding returned %d: %s", resp.StatusCode, body)
	}

	var payload geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode geocoding response: %w", err)
	}

	switch payload.Status {
	case "OK":
		// fall through to the result below
	case "ZERO_RESULTS":
		return nil, fmt.Errorf("%q: %w", address, ErrUnresolved)
	default:
		logger := logging.WithComponent("geocode")
		logger.Warn().
			Str("status", payload.Status).
			Str("error_message", payload.ErrorMessage).
			Msg("Geocoding upstream returned error status")
		return nil, fmt.Errorf("geocoding status %s: %s", payload.Status, payload.ErrorMessage)
	}

	if len(payload.Results) == 0 {
		return nil, fmt.Errorf("%q: %w", address, ErrUnresolved)
	}

	best := payload.Results[0]
	return &Location{
		Latitude:         best.Geometry.Location.Lat,
		Longitude:        best.Geometry.Location.Lng,
		FormattedAddress: best.FormattedAddress,
	}, nil
}
