// Siteplan - Installation Site-Plan Annotation for Field Technicians
// Copyright 2026 M. Kroh (mkroh)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mkroh/siteplan

package api

import "net/http"

type healthResponse struct {
	Status string `json:"status"`
}

// HandleLiveness reports process liveness.
func (h *Handlers) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(healthResponse{Status: "alive"})
}

// HandleReadiness reports readiness to serve. The service holds no
// local state, so readiness only means configuration was accepted and
// the router is up.
func (h *Handlers) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(healthResponse{Status: "ready"})
}
