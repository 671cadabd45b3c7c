// Siteplan - Installation Site-Plan Annotation for Field Technicians
// Copyright 2026 M. Kroh (mkroh)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mkroh/siteplan

// Package annotation implements the site-plan annotation session: the
// placement of indoor/outdoor unit markers and a connecting line path on
// top of the property image, and the rendering of a session into a
// flattened PNG.
//
// The session is an explicit state struct mutated through its methods, so
// the placement rules are testable without any rendering surface. The
// browser page drives the same rules; the server replays them when it
// renders a placement on the technician's behalf.
package annotation

import (
	"errors"
	"math"
)

// Tool identifies the active placement tool. Exactly one tool is active at
// a time; every tool is reachable from every other via explicit selection.
type Tool string

const (
	ToolIndoorUnit  Tool = "indoor"
	ToolOutdoorUnit Tool = "outdoor"
	ToolPath        Tool = "path"
)

// FinishRadius is the tap proximity (in canvas units) to the last path
// point that finishes the path instead of extending it. The comparison is
// strictly less-than, and only against the last point.
const FinishRadius = 30.0

// Point is a canvas coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Errors returned by session mutations with unmet preconditions.
var (
	ErrUnknownTool     = errors.New("unknown tool")
	ErrMarkerNotPlaced = errors.New("marker not placed")
	ErrNothingPlaced   = errors.New("no unit marker placed")
)

// Session holds the annotation state for one page load. Created empty,
// mutated only through taps and drags routed by the active tool, reset by
// Clear, and discarded after a successful export.
type Session struct {
	activeTool   Tool
	indoor       *Point
	outdoor      *Point
	path         []Point
	pathFinished bool
}

// NewSession returns an empty session with the indoor-unit tool active.
func NewSession() *Session {
	return &Session{activeTool: ToolIndoorUnit}
}

// ActiveTool returns the currently selected tool.
func (s *Session) ActiveTool() Tool {
	return s.activeTool
}

// SelectTool switches the active tool. Switching never alters placements.
func (s *Session) SelectTool(t Tool) error {
	switch t {
	case ToolIndoorUnit, ToolOutdoorUnit, ToolPath:
		s.activeTool = t
		return nil
	default:
		return ErrUnknownTool
	}
}

// Indoor returns the indoor unit marker, or nil when not placed.
func (s *Session) Indoor() *Point {
	return copyPoint(s.indoor)
}

// Outdoor returns the outdoor unit marker, or nil when not placed.
func (s *Session) Outdoor() *Point {
	return copyPoint(s.outdoor)
}

// Path returns a copy of the path points in placement order.
func (s *Session) Path() []Point {
	out := make([]Point, len(s.path))
	copy(out, s.path)
	return out
}

// PathFinished reports whether the path has been closed off by the
// proximity gesture (or replay). A finished path renders solid instead of
// dashed and no longer extends.
func (s *Session) PathFinished() bool {
	return s.pathFinished
}

// Tap routes a tap on empty canvas space through the active tool.
//
// Unit tools replace any previous marker of the same unit type with a new
// one at the tap position. The path tool appends the point, unless the tap
// lands strictly within FinishRadius of the last path point, which
// finishes the path and switches back to the indoor-unit tool.
//
// Taps that hit an existing marker are a drag concern and must be routed
// to DragMarker by the caller; Tap assumes empty canvas space.
func (s *Session) Tap(p Point) {
	switch s.activeTool {
	case ToolIndoorUnit:
		s.indoor = &Point{X: p.X, Y: p.Y}
	case ToolOutdoorUnit:
		s.outdoor = &Point{X: p.X, Y: p.Y}
	case ToolPath:
		s.tapPath(p)
	}
}

func (s *Session) tapPath(p Point) {
	if s.pathFinished {
		// A finished path is frozen; a new path tap starts over.
		s.path = []Point{p}
		s.pathFinished = false
		return
	}
	if n := len(s.path); n > 0 && p.distance(s.path[n-1]) < FinishRadius {
		s.pathFinished = true
		s.activeTool = ToolIndoorUnit
		return
	}
	s.path = append(s.path, p)
}

// DragMarker moves an already-placed marker to a new position. Unlike a
// tap, a drag requires the marker to exist; it updates coordinates in
// place rather than replacing the marker.
func (s *Session) DragMarker(unit Tool, p Point) error {
	var target *Point
	switch unit {
	case ToolIndoorUnit:
		target = s.indoor
	case ToolOutdoorUnit:
		target = s.outdoor
	default:
		return ErrUnknownTool
	}
	if target == nil {
		return ErrMarkerNotPlaced
	}
	target.X, target.Y = p.X, p.Y
	return nil
}

// Clear removes both markers and the entire path and resets the finished
// flag. The active tool is untouched.
func (s *Session) Clear() {
	s.indoor = nil
	s.outdoor = nil
	s.path = nil
	s.pathFinished = false
}

// CanSave reports export eligibility: at least one unit marker must be
// placed. A path alone is not exportable.
func (s *Session) CanSave() bool {
	return s.indoor != nil || s.outdoor != nil
}

func copyPoint(p *Point) *Point {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
