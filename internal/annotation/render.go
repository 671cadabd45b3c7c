// Siteplan - Installation Site-Plan Annotation for Field Technicians
// Copyright 2026 M. Kroh (mkroh)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mkroh/siteplan

package annotation

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
)

// Rendering style shared with the page: the exported raster must match
// what the technician sees on screen.
var (
	indoorColor  = color.NRGBA{R: 0x25, G: 0x63, B: 0xEB, A: 0xFF} // blue
	outdoorColor = color.NRGBA{R: 0x16, G: 0xA3, B: 0x4A, A: 0xFF} // green
	pathColor    = color.NRGBA{R: 0xDC, G: 0x26, B: 0x26, A: 0xFF} // red
	haloColor    = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
)

const (
	markerRadius = 11.0
	pathWidth    = 4.0
	dashOn       = 12.0
	dashOff      = 8.0
)

// Renderer flattens an annotation session over a background image into a
// single lossless raster. Canvas coordinates are scaled to the background
// dimensions, so the output is pixel-equivalent to the on-screen canvas
// regardless of the device's display size.
type Renderer struct{}

// NewRenderer returns a Renderer. It is stateless and safe for concurrent use.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// ExportPNG renders the session over the background and encodes the result
// as PNG. Export requires at least one placed unit marker, mirroring the
// page's save-eligibility rule.
func (r *Renderer) ExportPNG(s *Session, background image.Image, canvasWidth, canvasHeight float64) ([]byte, error) {
	if !s.CanSave() {
		return nil, ErrNothingPlaced
	}
	if canvasWidth <= 0 || canvasHeight <= 0 {
		return nil, fmt.Errorf("canvas size %gx%g not renderable", canvasWidth, canvasHeight)
	}

	flat := r.render(s, background, canvasWidth, canvasHeight)

	var buf bytes.Buffer
	if err := png.Encode(&buf, flat); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// render composites background, path and markers into a new RGBA image.
// A nil background yields a neutral canvas at the canvas dimensions.
func (r *Renderer) render(s *Session, background image.Image, canvasWidth, canvasHeight float64) *image.RGBA {
	if background == nil {
		neutral := image.NewRGBA(image.Rect(0, 0, int(math.Round(canvasWidth)), int(math.Round(canvasHeight))))
		draw.Draw(neutral, neutral.Bounds(), image.NewUniform(color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}), image.Point{}, draw.Src)
		background = neutral
	}
	bounds := background.Bounds()
	flat := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(flat, flat.Bounds(), background, bounds.Min, draw.Src)

	sx := float64(bounds.Dx()) / canvasWidth
	sy := float64(bounds.Dy()) / canvasHeight
	scale := func(p Point) Point {
		return Point{X: p.X * sx, Y: p.Y * sy}
	}
	// Stroke widths follow the horizontal scale so the drawing keeps its
	// on-screen proportions on larger imagery.
	lineScale := sx

	// Path first, markers on top, matching the page's stacking order.
	path := s.Path()
	for i := 1; i < len(path); i++ {
		a, b := scale(path[i-1]), scale(path[i])
		if s.PathFinished() {
			drawSegment(flat, a, b, pathWidth*lineScale, pathColor)
		} else {
			drawDashedSegment(flat, a, b, pathWidth*lineScale, pathColor)
		}
	}

	if p := s.Indoor(); p != nil {
		drawMarker(flat, scale(*p), markerRadius*lineScale, indoorColor)
	}
	if p := s.Outdoor(); p != nil {
		drawMarker(flat, scale(*p), markerRadius*lineScale, outdoorColor)
	}
	return flat
}

// drawMarker stamps a filled disc with a white halo ring for contrast
// against satellite imagery.
func drawMarker(img *image.RGBA, center Point, radius float64, col color.NRGBA) {
	drawDisc(img, center, radius+2, haloColor)
	drawDisc(img, center, radius, col)
}

func drawDisc(img *image.RGBA, center Point, radius float64, col color.NRGBA) {
	minX := int(math.Floor(center.X - radius))
	maxX := int(math.Ceil(center.X + radius))
	minY := int(math.Floor(center.Y - radius))
	maxY := int(math.Ceil(center.Y + radius))

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			dx := float64(x) - center.X
			dy := float64(y) - center.Y
			if dx*dx+dy*dy <= radius*radius {
				setClamped(img, x, y, col)
			}
		}
	}
}

// drawSegment strokes a solid line by stamping discs along its length.
func drawSegment(img *image.RGBA, a, b Point, width float64, col color.NRGBA) {
	strokeAlong(img, a, b, width, col, 0, 0)
}

// drawDashedSegment strokes a dashed line with the page's dash pattern.
func drawDashedSegment(img *image.RGBA, a, b Point, width float64, col color.NRGBA) {
	strokeAlong(img, a, b, width, col, dashOn, dashOff)
}

// strokeAlong walks from a to b stamping the brush. A zero on/off pattern
// yields a solid stroke.
func strokeAlong(img *image.RGBA, a, b Point, width float64, col color.NRGBA, on, off float64) {
	length := a.distance(b)
	if length == 0 {
		drawDisc(img, a, width/2, col)
		return
	}

	step := math.Max(width/4, 0.5)
	period := on + off
	for d := 0.0; d <= length; d += step {
		if period > 0 && math.Mod(d, period) >= on {
			continue
		}
		t := d / length
		p := Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
		drawDisc(img, p, width/2, col)
	}
}

func setClamped(img *image.RGBA, x, y int, col color.NRGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, color.RGBA{R: col.R, G: col.G, B: col.B, A: col.A})
	}
}
