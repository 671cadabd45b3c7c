// Siteplan - Installation Site-Plan Annotation for Field Technicians
// Copyright 2026 M. Kroh (mkroh)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mkroh/siteplan

// Package crm is the boundary to the customer-record system. It exposes
// the narrow capabilities the annotation flow needs (fetch an installation,
// upload an image, attach the upload to the record) behind an interface so
// the API layer is testable with fake collaborators.
package crm

import (
	"context"
	"errors"
	"strings"
)

// Sentinel errors surfaced across the gateway boundary.
var (
	// ErrNotFound indicates the installation does not exist in the CRM.
	ErrNotFound = errors.New("installation not found")

	// ErrUploadRejected indicates the CRM refused the uploaded image.
	ErrUploadRejected = errors.New("upload rejected")
)

// Installation is the read-only view of a customer installation record.
// This service never mutates it; the only write path is the attached
// site-plan upload.
type Installation struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	AddressParts AddressParts `json:"addressParts"`

	// Latitude/Longitude are pre-resolved coordinates from the CRM,
	// when present. The page geocodes the address otherwise.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// AddressParts are the postal address components as stored in the CRM.
type AddressParts struct {
	Street     string `json:"street"`
	PostalCode string `json:"postalCode"`
	City       string `json:"city"`
	Country    string `json:"country"`
}

// Address joins the parts into a single display/geocoding string,
// skipping empty components.
func (a AddressParts) Address() string {
	parts := make([]string, 0, 3)
	if a.Street != "" {
		parts = append(parts, a.Street)
	}
	if locality := strings.TrimSpace(a.PostalCode + " " + a.City); locality != "" {
		parts = append(parts, locality)
	}
	if a.Country != "" {
		parts = append(parts, a.Country)
	}
	return strings.Join(parts, ", ")
}

// UploadResult identifies a stored site-plan image in the CRM.
type UploadResult struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
}

// Gateway is the capability surface of the CRM used by the annotation
// flow. Production uses the HTTP client (wrapped in a circuit breaker);
// tests use fakes.
type Gateway interface {
	// FetchInstallation returns the installation record, or ErrNotFound.
	FetchInstallation(ctx context.Context, id string) (*Installation, error)

	// UploadImage stores the flattened site plan. May fail with
	// ErrUploadRejected or a transport error.
	UploadImage(ctx context.Context, id string, image []byte, filename string) (*UploadResult, error)

	// AttachPlan links an uploaded file to the installation record.
	// Callers treat a failure here as best-effort: the upload already
	// succeeded and is not lost, only the cross-link may be missing.
	AttachPlan(ctx context.Context, id, fileID string) error
}
