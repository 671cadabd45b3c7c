// Siteplan - Installation Site-Plan Annotation for Field Technicians
// Copyright 2026 M. Kroh (mkroh)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mkroh/siteplan

package annotation

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is shared; validator.Validate is safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Document is the wire form of an annotation session, posted by the page
// when the canvas cannot be rasterized client-side (cross-origin imagery
// taints the canvas). Coordinates are in canvas units; the renderer scales
// them to the background image.
type Document struct {
	CanvasWidth  float64 `json:"canvasWidth" validate:"required,gt=0,lte=16384"`
	CanvasHeight float64 `json:"canvasHeight" validate:"required,gt=0,lte=16384"`

	Indoor       *Point  `json:"indoor,omitempty"`
	Outdoor      *Point  `json:"outdoor,omitempty"`
	Path         []Point `json:"path" validate:"max=4096"`
	PathFinished bool    `json:"pathFinished"`
}

// Validate checks structural soundness of the document. Placement rules
// (at least one marker) are enforced by Replay, matching the page's
// save-eligibility rule.
func (d *Document) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("invalid annotation document: %w", err)
	}
	return nil
}

// Replay reconstructs a Session from the document. The document carries
// final placements, not the gesture history, so markers and path are
// applied directly; the placement invariants still hold because marker
// replacement and path-finish rules are idempotent over final state.
func (d *Document) Replay() (*Session, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d.Indoor == nil && d.Outdoor == nil {
		return nil, ErrNothingPlaced
	}

	s := NewSession()
	if d.Indoor != nil {
		s.indoor = &Point{X: d.Indoor.X, Y: d.Indoor.Y}
	}
	if d.Outdoor != nil {
		s.outdoor = &Point{X: d.Outdoor.X, Y: d.Outdoor.Y}
	}
	if len(d.Path) > 0 {
		s.path = make([]Point, len(d.Path))
		copy(s.path, d.Path)
		s.pathFinished = d.PathFinished
	}
	return s, nil
}

// DocumentFromSession snapshots a session into its wire form.
func DocumentFromSession(s *Session, canvasWidth, canvasHeight float64) *Document {
	return &Document{
		CanvasWidth:  canvasWidth,
		CanvasHeight: canvasHeight,
		Indoor:       s.Indoor(),
		Outdoor:      s.Outdoor(),
		Path:         s.Path(),
		PathFinished: s.PathFinished(),
	}
}
