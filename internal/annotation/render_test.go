// Siteplan - Installation Site-Plan Annotation for Field Technicians
// Copyright 2026 M. Kroh (mkroh)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mkroh/siteplan

package annotation

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func grayBackground(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF})
		}
	}
	return img
}

// ===================================================================================================
// ExportPNG Tests
// ===================================================================================================

func TestExportRequiresMarker(t *testing.T) {
	s := NewSession()
	if err := s.SelectTool(ToolPath); err != nil {
		t.Fatalf("SelectTool: %v", err)
	}
	s.Tap(Point{X: 0, Y: 0})
	s.Tap(Point{X: 100, Y: 100})

	_, err := NewRenderer().ExportPNG(s, grayBackground(200, 200), 200, 200)
	if !errors.Is(err, ErrNothingPlaced) {
		t.Errorf("ExportPNG without markers = %v, want ErrNothingPlaced", err)
	}
}

func TestExportWithoutBackgroundUsesNeutralCanvas(t *testing.T) {
	s := NewSession()
	s.Tap(Point{X: 50, Y: 50})

	data, err := NewRenderer().ExportPNG(s, nil, 200, 200)
	if err != nil {
		t.Fatalf("ExportPNG: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode exported png: %v", err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 200 {
		t.Errorf("bounds = %v, want 200x200", img.Bounds())
	}

	r, g, b, _ := img.At(195, 195).RGBA()
	if uint8(r>>8) != 0x80 || uint8(g>>8) != 0x80 || uint8(b>>8) != 0x80 {
		t.Errorf("neutral canvas pixel = (%d,%d,%d), want gray", r>>8, g>>8, b>>8)
	}
}

func TestExportProducesDecodablePNG(t *testing.T) {
	s := NewSession()
	s.Tap(Point{X: 50, Y: 50})
	if err := s.SelectTool(ToolOutdoorUnit); err != nil {
		t.Fatalf("SelectTool: %v", err)
	}
	s.Tap(Point{X: 150, Y: 150})
	if err := s.SelectTool(ToolPath); err != nil {
		t.Fatalf("SelectTool: %v", err)
	}
	s.Tap(Point{X: 50, Y: 50})
	s.Tap(Point{X: 150, Y: 150})

	data, err := NewRenderer().ExportPNG(s, grayBackground(200, 200), 200, 200)
	if err != nil {
		t.Fatalf("ExportPNG: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not valid PNG: %v", err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 200 {
		t.Errorf("output bounds = %v, want 200x200", img.Bounds())
	}
}

func TestExportDrawsMarkersAtScaledPositions(t *testing.T) {
	s := NewSession()
	s.Tap(Point{X: 25, Y: 25}) // canvas 100x100, image 400x400 -> pixel (100,100)

	data, err := NewRenderer().ExportPNG(s, grayBackground(400, 400), 100, 100)
	if err != nil {
		t.Fatalf("ExportPNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	r, g, b, _ := img.At(100, 100).RGBA()
	got := color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}
	if got != (color.NRGBA{R: indoorColor.R, G: indoorColor.G, B: indoorColor.B}) {
		t.Errorf("pixel at marker center = %+v, want indoor color %+v", got, indoorColor)
	}

	// A corner pixel stays background.
	r, g, b, _ = img.At(5, 5).RGBA()
	if uint8(r>>8) != 0x80 || uint8(g>>8) != 0x80 || uint8(b>>8) != 0x80 {
		t.Errorf("background pixel overwritten: (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestDashedVersusSolidPathCoverage(t *testing.T) {
	render := func(finished bool) *image.RGBA {
		s := NewSession()
		s.Tap(Point{X: 10, Y: 10})
		if err := s.SelectTool(ToolPath); err != nil {
			t.Fatalf("SelectTool: %v", err)
		}
		s.Tap(Point{X: 0, Y: 100})
		s.Tap(Point{X: 200, Y: 100})
		if finished {
			s.Tap(Point{X: 201, Y: 100}) // proximity finish
		}
		return NewRenderer().render(s, grayBackground(200, 200), 200, 200)
	}

	count := func(img *image.RGBA) int {
		n := 0
		for x := 0; x < 200; x++ {
			c := img.RGBAAt(x, 100)
			if c.R == pathColor.R && c.G == pathColor.G && c.B == pathColor.B {
				n++
			}
		}
		return n
	}

	solid := count(render(true))
	dashed := count(render(false))
	if solid == 0 || dashed == 0 {
		t.Fatalf("path not drawn: solid=%d dashed=%d", solid, dashed)
	}
	if dashed >= solid {
		t.Errorf("dashed stroke covers %d pixels, solid %d; dashes should leave gaps", dashed, solid)
	}
}
