// Siteplan - Installation Site-Plan Annotation for Field Technicians
// Copyright 2026 M. Kroh (mkroh)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mkroh/siteplan

package crm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mkroh/siteplan/internal/config"
)

// =============================================================================
// Test Helpers
// =============================================================================

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(&config.CRMConfig{
		URL:     srv.URL,
		APIKey:  "test-api-key",
		Timeout: 5 * time.Second,
	})
	return client, srv
}

// =============================================================================
// FetchInstallation Tests
// =============================================================================

func TestFetchInstallation(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/installations/job-42" {
			t.Errorf("Path = %s, want /installations/job-42", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-api-key" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "job-42",
			"name": "Mueller Residence",
			"address": {
				"street": "Hauptstrasse 12",
				"postal_code": "10115",
				"city": "Berlin",
				"country": "DE"
			},
			"coordinates": {"lat": 52.532, "lng": 13.384}
		}`)
	}))

	inst, err := client.FetchInstallation(context.Background(), "job-42")
	if err != nil {
		t.Fatalf("FetchInstallation() error = %v", err)
	}

	if inst.ID != "job-42" {
		t.Errorf("ID = %q, want %q", inst.ID, "job-42")
	}
	if inst.Name != "Mueller Residence" {
		t.Errorf("Name = %q, want %q", inst.Name, "Mueller Residence")
	}
	if inst.AddressParts.City != "Berlin" {
		t.Errorf("City = %q, want %q", inst.AddressParts.City, "Berlin")
	}
	if inst.Latitude == nil || *inst.Latitude != 52.532 {
		t.Errorf("Latitude = %v, want 52.532", inst.Latitude)
	}
	wantAddr := "Hauptstrasse 12, 10115 Berlin, DE"
	if got := inst.AddressParts.Address(); got != wantAddr {
		t.Errorf("Address() = %q, want %q", got, wantAddr)
	}
}

func TestFetchInstallationNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such record", http.StatusNotFound)
	}))

	_, err := client.FetchInstallation(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("FetchInstallation() error = %v, want ErrNotFound", err)
	}
}

func TestFetchInstallationWithoutCoordinates(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":"job-7","name":"Depot","address":{"city":"Hamburg"}}`)
	}))

	inst, err := client.FetchInstallation(context.Background(), "job-7")
	if err != nil {
		t.Fatalf("FetchInstallation() error = %v", err)
	}
	if inst.Latitude != nil || inst.Longitude != nil {
		t.Errorf("coordinates = (%v, %v), want nil", inst.Latitude, inst.Longitude)
	}
}

func TestFetchInstallationServerError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))

	_, err := client.FetchInstallation(context.Background(), "job-42")
	if err == nil {
		t.Fatal("FetchInstallation() error = nil, want error")
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("server error must not map to ErrNotFound: %v", err)
	}
}

func TestFetchInstallationEscapesID(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		io.WriteString(w, `{"id":"a/b","name":"x","address":{}}`)
	}))

	if _, err := client.FetchInstallation(context.Background(), "a/b"); err != nil {
		t.Fatalf("FetchInstallation() error = %v", err)
	}
	if !strings.Contains(gotPath, "a%2Fb") {
		t.Errorf("path = %q, want escaped id", gotPath)
	}
}

// =============================================================================
// UploadImage Tests
// =============================================================================

func TestUploadImage(t *testing.T) {
	payload := []byte("\x89PNG fake image bytes")

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/installations/job-42/files" {
			t.Errorf("Path = %s, want /installations/job-42/files", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm() error = %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile() error = %v", err)
		}
		defer file.Close()
		if header.Filename != "siteplan-abc.png" {
			t.Errorf("Filename = %q, want %q", header.Filename, "siteplan-abc.png")
		}
		data, _ := io.ReadAll(file)
		if string(data) != string(payload) {
			t.Errorf("uploaded %d bytes, want %d", len(data), len(payload))
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"fileId":"file-123","fileName":"siteplan-abc.png"}`)
	}))

	res, err := client.UploadImage(context.Background(), "job-42", payload, "siteplan-abc.png")
	if err != nil {
		t.Fatalf("UploadImage() error = %v", err)
	}
	if res.FileID != "file-123" {
		t.Errorf("FileID = %q, want %q", res.FileID, "file-123")
	}
	if res.FileName != "siteplan-abc.png" {
		t.Errorf("FileName = %q, want %q", res.FileName, "siteplan-abc.png")
	}
}

func TestUploadImageRejected(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
	}))

	_, err := client.UploadImage(context.Background(), "job-42", []byte("x"), "plan.png")
	if !errors.Is(err, ErrUploadRejected) {
		t.Fatalf("UploadImage() error = %v, want ErrUploadRejected", err)
	}
}

func TestUploadImageFillsMissingFileName(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"fileId":"file-9"}`)
	}))

	res, err := client.UploadImage(context.Background(), "job-42", []byte("x"), "plan.png")
	if err != nil {
		t.Fatalf("UploadImage() error = %v", err)
	}
	if res.FileName != "plan.png" {
		t.Errorf("FileName = %q, want fallback %q", res.FileName, "plan.png")
	}
}

// =============================================================================
// AttachPlan Tests
// =============================================================================

func TestAttachPlan(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/installations/job-42/notes" {
			t.Errorf("Path = %s, want /installations/job-42/notes", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"file_id":"file-123"`) {
			t.Errorf("body = %s, want file_id reference", body)
		}
		if !strings.Contains(string(body), "Site plan placement") {
			t.Errorf("body = %s, want note subject", body)
		}
		w.WriteHeader(http.StatusCreated)
	}))

	if err := client.AttachPlan(context.Background(), "job-42", "file-123"); err != nil {
		t.Fatalf("AttachPlan() error = %v", err)
	}
}

func TestAttachPlanUpstreamError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "notes disabled", http.StatusForbidden)
	}))

	err := client.AttachPlan(context.Background(), "job-42", "file-123")
	if err == nil {
		t.Fatal("AttachPlan() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error = %v, want status code in message", err)
	}
}

func TestClientContextCancellation(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.FetchInstallation(ctx, "job-42"); err == nil {
		t.Fatal("FetchInstallation() error = nil, want context error")
	}
}
