// Siteplan - Installation Site-Plan Annotation for Field Technicians
// Copyright 2026 M. Kroh (mkroh)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mkroh/siteplan

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mkroh/siteplan/internal/logging"
	"github.com/mkroh/siteplan/internal/metrics"
	"github.com/mkroh/siteplan/internal/token"
)

// AccessGate guards installation-scoped routes. The token travels as a
// query parameter because technicians receive plain links; it is checked
// against the installation ID from the route so a token minted for one
// job cannot open another.
//
// With no signing secret configured the gate admits every request, which
// keeps local development friction-free. Production config validation
// refuses to start without a secret.
func AccessGate(signingSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Most routes carry the installation ID as a path segment;
			// the geocode proxy passes it as a query parameter.
			installationID := chi.URLParam(r, "id")
			if installationID == "" {
				installationID = r.URL.Query().Get("id")
			}
			tok := r.URL.Query().Get("token")

			if signingSecret == "" {
				metrics.GateDecisions.WithLabelValues("auth_disabled").Inc()
				next.ServeHTTP(w, r)
				return
			}

			result := token.Verify(installationID, tok, signingSecret, time.Now())
			if !result.Valid {
				metrics.GateDecisions.WithLabelValues("denied").Inc()
				logging.Ctx(r.Context()).Warn().
					Str("installation_id", installationID).
					Str("reason", result.Reason).
					Msg("Access denied")
				NewResponseWriter(w, r).Unauthorized(result.Reason)
				return
			}

			metrics.GateDecisions.WithLabelValues("allowed").Inc()
			next.ServeHTTP(w, r)
		})
	}
}
