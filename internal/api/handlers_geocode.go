// Siteplan - Installation Site-Plan Annotation for Field Technicians
// Copyright 2026 M. Kroh (mkroh)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mkroh/siteplan

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/mkroh/siteplan/internal/geocode"
	"github.com/mkroh/siteplan/internal/logging"
)

// geocodeLocation is the resolved coordinate payload for the page.
type geocodeLocation struct {
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	FormattedAddress string  `json:"formattedAddress"`
}

// HandleGeocode proxies an address lookup for the annotation page.
func (h *Handlers) HandleGeocode(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		rw.ValidationFailed("address query parameter is required")
		return
	}

	loc, err := h.geocoder.Geocode(r.Context(), address)
	if err != nil {
		switch {
		case errors.Is(err, geocode.ErrUnresolved):
			rw.NotFound("address could not be resolved")
		case errors.Is(err, geocode.ErrThrottled):
			rw.TooManyRequests("geocoding limit reached, retry later")
		default:
			logging.Ctx(r.Context()).Error().
				Err(err).
				Msg("Geocode lookup failed")
			rw.UpstreamFailed("geocoding service unavailable")
		}
		return
	}

	rw.Success(geocodeLocation{
		Lat:              loc.Latitude,
		Lng:              loc.Longitude,
		FormattedAddress: loc.FormattedAddress,
	})
}
