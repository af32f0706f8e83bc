// Package testutil provides shared test helpers and synthetic frame fixtures.
package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Square is a bright axis-aligned square centred on (CX, CY). The covered
// pixels are [CX-Size/2, CX-Size/2+Size) on each axis, so a 10px square at
// 120 spans 115..124 and its pixel centroid rounds to 120.
type Square struct {
	CX, CY int
	Size   int
}

// Rect returns the pixel rectangle the square covers.
func (s Square) Rect() image.Rectangle {
	x0 := s.CX - s.Size/2
	y0 := s.CY - s.Size/2
	return image.Rect(x0, y0, x0+s.Size, y0+s.Size)
}

// BlackImage returns a w×h opaque black RGBA image.
func BlackImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	return img
}

// WhiteImage returns a fully saturated w×h image.
func WhiteImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

// SquaresImage returns a black w×h image with each square painted white.
func SquaresImage(w, h int, squares ...Square) *image.RGBA {
	img := BlackImage(w, h)
	for _, s := range squares {
		draw.Draw(img, s.Rect(), image.NewUniform(color.White), image.Point{}, draw.Src)
	}
	return img
}

// SquareFrames returns one 10px-square image per centre, all w×h.
func SquareFrames(w, h int, centres ...image.Point) []image.Image {
	out := make([]image.Image, 0, len(centres))
	for _, c := range centres {
		out = append(out, SquaresImage(w, h, Square{CX: c.X, CY: c.Y, Size: 10}))
	}
	return out
}
