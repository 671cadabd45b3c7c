// Siteplan - Installation Site-Plan Annotation for Field Technicians
// Copyright 2026 M. Kroh (mkroh)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mkroh/siteplan

package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mkroh/siteplan/internal/config"
	"github.com/mkroh/siteplan/internal/crm"
	"github.com/mkroh/siteplan/internal/geocode"
	"github.com/mkroh/siteplan/internal/logging"
	"github.com/mkroh/siteplan/internal/token"
)

// Handlers bundles the HTTP handlers with their collaborators.
type Handlers struct {
	cfg      *config.Config
	gateway  crm.Gateway
	geocoder geocode.Geocoder
}

// NewHandlers creates the handler set.
func NewHandlers(cfg *config.Config, gateway crm.Gateway, geocoder geocode.Geocoder) *Handlers {
	return &Handlers{
		cfg:      cfg,
		gateway:  gateway,
		geocoder: geocoder,
	}
}

// configResponse is the page bootstrap payload.
type configResponse struct {
	MapsAPIKey *string `json:"mapsApiKey"`
}

// HandleConfig returns the public client configuration. The key is null
// when no Maps key is configured so the page can fall back to the plain
// canvas background.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var key *string
	if h.cfg.Maps.APIKey != "" {
		key = &h.cfg.Maps.APIKey
	}
	rw.Success(configResponse{MapsAPIKey: key})
}

// installationResponse is the gated record view handed to the page.
type installationResponse struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Address      string           `json:"address"`
	AddressParts crm.AddressParts `json:"addressParts"`
	Latitude     *float64         `json:"latitude,omitempty"`
	Longitude    *float64         `json:"longitude,omitempty"`
}

// HandleInstallation returns the installation record for the annotation
// page.
func (h *Handlers) HandleInstallation(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	inst, err := h.gateway.FetchInstallation(r.Context(), id)
	if err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			rw.NotFound("installation not found")
			return
		}
		logging.Ctx(r.Context()).Error().
			Err(err).
			Str("installation_id", id).
			Msg("Installation fetch failed")
		rw.UpstreamFailed("failed to load installation record")
		return
	}

	rw.Success(installationResponse{
		ID:           inst.ID,
		Name:         inst.Name,
		Address:      inst.AddressParts.Address(),
		AddressParts: inst.AddressParts,
		Latitude:     inst.Latitude,
		Longitude:    inst.Longitude,
	})
}

// generateURLResponse carries a freshly minted entry link.
type generateURLResponse struct {
	SignedURL string `json:"signedUrl"`
	ExpiresIn int64  `json:"expiresIn"`
}

// HandleGenerateURL mints a signed entry link for an installation. The
// route is an administrative convenience for back-office staff; it fails
// when the service runs without a signing secret because an unsigned
// link would be meaningless.
func (h *Handlers) HandleGenerateURL(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	secret := h.cfg.Security.SigningSecret
	if secret == "" {
		rw.InternalError("URL signing is not configured")
		return
	}

	tok := token.Mint(id, secret, time.Now())
	signed := fmt.Sprintf("%s/?id=%s&token=%s",
		h.cfg.Server.PublicURL,
		url.QueryEscape(id),
		url.QueryEscape(tok),
	)

	rw.Success(generateURLResponse{
		SignedURL: signed,
		ExpiresIn: int64(token.TTL.Seconds()),
	})
}
