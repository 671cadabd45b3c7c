// Siteplan - Installation Site-Plan Annotation for Field Technicians
// Copyright 2026 M. Kroh (mkroh)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mkroh/siteplan

package token

import (
	"encoding/base64"
	"strconv"
	"strings"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// ===================================================================================================
// Mint / Verify Round-Trip Tests
// ===================================================================================================

func TestMintVerifyRoundTrip(t *testing.T) {
	tests := []struct {
		name           string
		installationID string
		secret         string
	}{
		{"numeric id", "10421", "super-secret"},
		{"uuid-style id", "3f6c1a52-9d0e-4f0b-8f6a-1f2e3d4c5b6a", "another-secret"},
		{"id with separator char", "job:2026:0042", "s3cr3t"},
		{"unicode id", "anlage-münchen-7", "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := Mint(tt.installationID, tt.secret, t0)

			res := Verify(tt.installationID, tok, tt.secret, t0)
			if !res.Valid {
				t.Fatalf("fresh token rejected: reason=%q", res.Reason)
			}

			// Still valid one second before expiry.
			res = Verify(tt.installationID, tok, tt.secret, t0.Add(TTL-time.Second))
			if !res.Valid {
				t.Errorf("token rejected before expiry: reason=%q", res.Reason)
			}
		})
	}
}

func TestMintIsDeterministic(t *testing.T) {
	a := Mint("123", "secret", t0)
	b := Mint("123", "secret", t0)
	if a != b {
		t.Errorf("Mint not deterministic: %q != %q", a, b)
	}
}

// ===================================================================================================
// Expiry Tests
// ===================================================================================================

func TestVerifyExpiry(t *testing.T) {
	tok := Mint("77", "secret", t0)

	tests := []struct {
		name  string
		at    time.Time
		valid bool
	}{
		{"immediately", t0, true},
		{"6 days later", t0.Add(6 * 24 * time.Hour), true},
		{"at expiry boundary", t0.Add(TTL), true},
		{"one second past expiry", t0.Add(TTL + time.Second), false},
		{"a month later", t0.Add(30 * 24 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Verify("77", tok, "secret", tt.at)
			if res.Valid != tt.valid {
				t.Errorf("Verify at %v: valid=%v, want %v (reason=%q)", tt.at, res.Valid, tt.valid, res.Reason)
			}
			if !tt.valid && res.Reason != ReasonExpired {
				t.Errorf("reason = %q, want %q", res.Reason, ReasonExpired)
			}
		})
	}
}

// ===================================================================================================
// Binding and Tamper Tests
// ===================================================================================================

func TestTokenBoundToInstallation(t *testing.T) {
	tok := Mint("installation-a", "secret", t0)

	res := Verify("installation-b", tok, "secret", t0)
	if res.Valid {
		t.Fatal("token minted for A verified against B")
	}
	if res.Reason != ReasonInvalidSignature {
		t.Errorf("reason = %q, want %q", res.Reason, ReasonInvalidSignature)
	}
}

func TestTokenRejectedWithDifferentSecret(t *testing.T) {
	tok := Mint("55", "secret-one", t0)
	res := Verify("55", tok, "secret-two", t0)
	if res.Valid {
		t.Fatal("token verified with a different secret")
	}
	if res.Reason != ReasonInvalidSignature {
		t.Errorf("reason = %q, want %q", res.Reason, ReasonInvalidSignature)
	}
}

func TestTamperedExpiryRejected(t *testing.T) {
	tok := Mint("55", "secret", t0)
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Push the expiry a year into the future, keep the original signature.
	_, sig, _ := strings.Cut(string(raw), ":")
	forgedExpiry := strconv.FormatInt(t0.Add(365*24*time.Hour).Unix(), 10)
	forgedTok := base64.RawURLEncoding.EncodeToString([]byte(forgedExpiry + ":" + sig))

	res := Verify("55", forgedTok, "secret", t0)
	if res.Valid {
		t.Fatal("tampered expiry accepted")
	}
	if res.Reason != ReasonInvalidSignature {
		t.Errorf("reason = %q, want %q", res.Reason, ReasonInvalidSignature)
	}
}

// ===================================================================================================
// Failure Reason Tests
// ===================================================================================================

func TestVerifyFailureReasons(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		reason string
	}{
		{"missing token", "", ReasonMissingToken},
		{"not base64", "!!!not-base64!!!", ReasonInvalidFormat},
		{"base64 but no separator", base64.RawURLEncoding.EncodeToString([]byte("justonepart")), ReasonInvalidFormat},
		{"non-numeric expiry", base64.RawURLEncoding.EncodeToString([]byte("soon:abcdef")), ReasonInvalidFormat},
		{"empty signature", base64.RawURLEncoding.EncodeToString([]byte("1767000000:")), ReasonInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Verify("1", tt.token, "secret", t0)
			if res.Valid {
				t.Fatalf("invalid token %q accepted", tt.token)
			}
			if res.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", res.Reason, tt.reason)
			}
		})
	}
}

// ===================================================================================================
// Auth-Disabled Mode Tests
// ===================================================================================================

func TestVerifyWithoutSecretAlwaysValid(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"garbage token", "garbage"},
		{"expired token", Mint("1", "old-secret", t0.Add(-2*TTL))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Verify("1", tt.token, "", t0)
			if !res.Valid {
				t.Errorf("auth-disabled mode rejected token %q: reason=%q", tt.token, res.Reason)
			}
		})
	}
}
