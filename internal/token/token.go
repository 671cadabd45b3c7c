// Siteplan - Installation Site-Plan Annotation for Field Technicians
// Copyright 2026 M. Kroh (mkroh)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mkroh/siteplan

// Package token mints and verifies the signed access tokens that scope a
// technician's link to a single installation.
//
// Token format: base64url(expiry ":" hex(hmacSHA256(secret, installationID ":" expiry)))
//
// The installation ID is not embedded in the token; it is supplied as
// context at verification time. A token minted for installation A therefore
// never verifies against installation B, even within its validity window.
//
// Verification failures are reported as structured reasons, never as errors.
// With no signing secret configured, verification always succeeds; this is
// the documented auth-disabled mode for local development.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TTL is the validity window of a minted token.
const TTL = 7 * 24 * time.Hour

// Verification failure reasons, surfaced to the client via the access gate.
const (
	ReasonMissingToken     = "missing token"
	ReasonInvalidFormat    = "invalid format"
	ReasonExpired          = "expired"
	ReasonInvalidSignature = "invalid signature"
)

// Result is the outcome of a verification.
type Result struct {
	Valid  bool
	Reason string
}

// Mint creates a signed token for the given installation ID, valid for TTL
// from now. Deterministic for identical inputs and timestamps.
func Mint(installationID, secret string, now time.Time) string {
	expiry := now.Add(TTL).Unix()
	sig := sign(installationID, expiry, secret)
	payload := fmt.Sprintf("%d:%s", expiry, sig)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// Verify checks a token against the installation ID it was presented with.
//
// An empty secret disables authentication entirely: every token, including
// an empty one, verifies. The caller is expected to log loudly when running
// in that mode.
func Verify(installationID, tok, secret string, now time.Time) Result {
	if secret == "" {
		return Result{Valid: true}
	}
	if tok == "" {
		return Result{Valid: false, Reason: ReasonMissingToken}
	}

	expiry, sig, ok := decode(tok)
	if !ok {
		return Result{Valid: false, Reason: ReasonInvalidFormat}
	}
	if now.Unix() > expiry {
		return Result{Valid: false, Reason: ReasonExpired}
	}

	expected := sign(installationID, expiry, secret)
	// hmac.Equal is constant-time; never compare signatures with ==.
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return Result{Valid: false, Reason: ReasonInvalidSignature}
	}
	return Result{Valid: true}
}

// sign computes the hex HMAC-SHA256 signature over "installationID:expiry".
func sign(installationID string, expiry int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s:%d", installationID, expiry)
	return hex.EncodeToString(mac.Sum(nil))
}

// decode splits a token into its expiry and signature parts.
// Returns ok=false for anything that is not base64url("unix:hexsig").
func decode(tok string) (expiry int64, sig string, ok bool) {
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		// Tolerate padded tokens from older link generators.
		raw, err = base64.URLEncoding.DecodeString(tok)
		if err != nil {
			return 0, "", false
		}
	}

	expiryStr, sig, found := strings.Cut(string(raw), ":")
	if !found || sig == "" {
		return 0, "", false
	}
	expiry, err = strconv.ParseInt(expiryStr, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return expiry, sig, true
}
