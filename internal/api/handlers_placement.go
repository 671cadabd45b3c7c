// Siteplan - Installation Site-Plan Annotation for Field Technicians
// Copyright 2026 M. Kroh (mkroh)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mkroh/siteplan

package api

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/mkroh/siteplan/internal/annotation"
	"github.com/mkroh/siteplan/internal/crm"
	"github.com/mkroh/siteplan/internal/logging"
	"github.com/mkroh/siteplan/internal/metrics"
)

// maxPlacementBody caps the multipart upload size. Flattened site plans
// are screen-sized PNGs; anything beyond this is not a legitimate export.
const maxPlacementBody = 20 << 20

// placementResponse reports a stored site plan.
type placementResponse struct {
	Success  bool   `json:"success"`
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
}

// HandlePlacement accepts the flattened site plan and stores it in the
// CRM. Two body forms are supported:
//
//   - an "image" part with the client-rendered PNG, the normal path
//   - a "document" part (annotation JSON) plus a "background" image
//     part, for pages whose canvas is tainted by cross-origin imagery
//     and cannot export pixels itself; the server replays the document
//     and renders the composite
//
// The attach step after a successful upload is best-effort: its failure
// is logged but the technician still gets a success, since the image
// itself is already stored.
func (h *Handlers) HandlePlacement(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, maxPlacementBody)
	if err := r.ParseMultipartForm(maxPlacementBody); err != nil {
		metrics.PlacementUploads.WithLabelValues("rejected").Inc()
		rw.ValidationFailed("request body must be multipart form data")
		return
	}

	imageBytes, err := h.placementImage(r)
	if err != nil {
		metrics.PlacementUploads.WithLabelValues("rejected").Inc()
		rw.ValidationFailed(err.Error())
		return
	}

	fileName := fmt.Sprintf("siteplan-%s-%s.png", id, uuid.NewString())

	result, err := h.gateway.UploadImage(r.Context(), id, imageBytes, fileName)
	if err != nil {
		switch {
		case errors.Is(err, crm.ErrNotFound):
			metrics.PlacementUploads.WithLabelValues("rejected").Inc()
			rw.NotFound("installation not found")
		case errors.Is(err, crm.ErrUploadRejected):
			metrics.PlacementUploads.WithLabelValues("rejected").Inc()
			rw.ValidationFailed("the CRM rejected the uploaded image")
		default:
			metrics.PlacementUploads.WithLabelValues("upstream_error").Inc()
			logging.Ctx(r.Context()).Error().
				Err(err).
				Str("installation_id", id).
				Msg("Placement upload failed")
			rw.UpstreamFailed("failed to store the site plan, retry is safe")
		}
		return
	}

	if err := h.gateway.AttachPlan(r.Context(), id, result.FileID); err != nil {
		// The image is stored; only the cross-link is missing.
		logging.Ctx(r.Context()).Warn().
			Err(err).
			Str("installation_id", id).
			Str("file_id", result.FileID).
			Msg("Site plan uploaded but attaching it to the record failed")
	}

	metrics.PlacementUploads.WithLabelValues("success").Inc()
	rw.Success(placementResponse{
		Success:  true,
		FileID:   result.FileID,
		FileName: result.FileName,
	})
}

// placementImage extracts the PNG to upload from the parsed multipart
// form, rendering server-side when the client sent a document instead
// of pixels.
func (h *Handlers) placementImage(r *http.Request) ([]byte, error) {
	if file, _, err := r.FormFile("image"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("read image upload: %w", err)
		}
		if len(data) == 0 {
			return nil, errors.New("uploaded image is empty")
		}
		return data, nil
	}

	docFile, _, docErr := r.FormFile("document")
	if docErr != nil {
		return nil, errors.New("an image file is required")
	}
	defer docFile.Close()

	var doc annotation.Document
	if err := json.NewDecoder(docFile).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode annotation document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid annotation document: %w", err)
	}

	background, err := h.placementBackground(r)
	if err != nil {
		return nil, err
	}

	session, err := doc.Replay()
	if err != nil {
		return nil, fmt.Errorf("replay annotation document: %w", err)
	}

	start := time.Now()
	rendered, err := annotation.NewRenderer().ExportPNG(session, background, doc.CanvasWidth, doc.CanvasHeight)
	metrics.PlacementRenderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("render site plan: %w", err)
	}
	return rendered, nil
}

// placementBackground decodes the optional background image part. A
// missing part yields a nil image and the renderer falls back to its
// neutral canvas.
func (h *Handlers) placementBackground(r *http.Request) (image.Image, error) {
	file, _, err := r.FormFile("background")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("read background upload: %w", err)
	}
	defer func(f multipart.File) { f.Close() }(file)

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode background image: %w", err)
	}
	return img, nil
}
