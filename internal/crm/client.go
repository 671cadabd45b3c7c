// Siteplan - Installation Site-Plan Annotation for Field Technicians
// Copyright 2026 M. Kroh (mkroh)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mkroh/siteplan

package crm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/mkroh/siteplan/internal/config"
	"github.com/mkroh/siteplan/internal/metrics"
)

// maxErrorBodySize caps how much of an upstream error response is read
// for diagnostics, preventing unbounded allocation on large bodies.
const maxErrorBodySize = 64 * 1024

// Client talks to the CRM's REST API. It implements Gateway.
//
// Endpoints:
//
//	GET  {base}/installations/{id}
//	POST {base}/installations/{id}/files      (multipart, field "file")
//	POST {base}/installations/{id}/notes      (JSON, links a file)
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a CRM client from configuration.
func NewClient(cfg *config.CRMConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// installationPayload is the CRM's wire shape for a record.
type installationPayload struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address struct {
		Street     string `json:"street"`
		PostalCode string `json:"postal_code"`
		City       string `json:"city"`
		Country    string `json:"country"`
	} `json:"address"`
	Coordinates *struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"coordinates"`
}

// FetchInstallation returns the installation record, or ErrNotFound.
func (c *Client) FetchInstallation(ctx context.Context, id string) (*Installation, error) {
	start := time.Now()
	inst, err := c.fetchInstallation(ctx, id)
	metrics.RecordUpstream("crm", "fetch_installation", time.Since(start), err)
	return inst, err
}

func (c *Client) fetchInstallation(ctx context.Context, id string) (*Installation, error) {
	endpoint := fmt.Sprintf("%s/installations/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crm request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("installation %s: %w", id, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("crm returned %d: %s", resp.StatusCode, readBodyForError(resp.Body))
	}

	var payload installationPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode installation: %w", err)
	}

	inst := &Installation{
		ID:   payload.ID,
		Name: payload.Name,
		AddressParts: AddressParts{
			Street:     payload.Address.Street,
			PostalCode: payload.Address.PostalCode,
			City:       payload.Address.City,
			Country:    payload.Address.Country,
		},
	}
	if payload.Coordinates != nil {
		lat, lng := payload.Coordinates.Lat, payload.Coordinates.Lng
		inst.Latitude, inst.Longitude = &lat, &lng
	}
	return inst, nil
}

// UploadImage stores the flattened site plan as a multipart upload.
func (c *Client) UploadImage(ctx context.Context, id string, image []byte, filename string) (*UploadResult, error) {
	start := time.Now()
	res, err := c.uploadImage(ctx, id, image, filename)
	metrics.RecordUpstream("crm", "upload_image", time.Since(start), err)
	return res, err
}

func (c *Client) uploadImage(ctx context.Context, id string, image []byte, filename string) (*UploadResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("write multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/installations/%s/files", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crm upload failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("installation %s: %w", id, ErrNotFound)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("%w: crm returned %d: %s", ErrUploadRejected, resp.StatusCode, readBodyForError(resp.Body))
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return nil, fmt.Errorf("crm returned %d: %s", resp.StatusCode, readBodyForError(resp.Body))
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode upload result: %w", err)
	}
	if result.FileName == "" {
		result.FileName = filename
	}
	return &result, nil
}

// AttachPlan creates the note that links the uploaded file to the record.
func (c *Client) AttachPlan(ctx context.Context, id, fileID string) error {
	start := time.Now()
	err := c.attachPlan(ctx, id, fileID)
	metrics.RecordUpstream("crm", "attach_plan", time.Since(start), err)
	return err
}

func (c *Client) attachPlan(ctx context.Context, id, fileID string) error {
	payload, err := json.Marshal(map[string]string{
		"subject": "Site plan placement",
		"file_id": fileID,
	})
	if err != nil {
		return fmt.Errorf("encode note: %w", err)
	}

	endpoint := fmt.Sprintf("%s/installations/%s/notes", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("crm note failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("crm returned %d: %s", resp.StatusCode, readBodyForError(resp.Body))
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// readBodyForError reads at most maxErrorBodySize of a response body for
// inclusion in error messages.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}
