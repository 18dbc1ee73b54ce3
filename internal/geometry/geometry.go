// Package geometry maps selection rectangles expressed in rendered
// (on-screen) coordinates onto the source image's natural pixel grid.
package geometry

import (
	"errors"
	"image"
	"math"
)

// ErrUnavailable is returned when the rendered size of the image is not
// known yet, i.e. the element has not been laid out. Callers should retry
// after layout instead of dividing by zero.
var ErrUnavailable = errors.New("rendered image size unavailable")

// Rect is a selection rectangle in rendered coordinates, relative to the
// rendered image element's top-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Size is the on-screen size of the rendered image element.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NaturalRect is a rectangle on the source image's natural pixel grid.
type NaturalRect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FromRectangle converts a stdlib rectangle to its wire form.
func FromRectangle(r image.Rectangle) NaturalRect {
	return NaturalRect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rectangle converts back to a stdlib rectangle.
func (r NaturalRect) Rectangle() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// CropRect converts a selection made against the rendered image into a crop
// rectangle on the natural pixel grid. The axes are scaled independently:
// the rendered aspect ratio need not match the natural one.
//
// The result is always contained in [0,natural.X]x[0,natural.Y] and is at
// least 1x1. Out-of-bounds selections are clamped by shrinking the width or
// height, never by shifting the rectangle or inverting it.
func CropRect(sel Rect, rendered Size, natural image.Point) (image.Rectangle, error) {
	if rendered.Width <= 0 || rendered.Height <= 0 {
		return image.Rectangle{}, ErrUnavailable
	}

	scaleX := float64(natural.X) / rendered.Width
	scaleY := float64(natural.Y) / rendered.Height

	x, w := clampAxis(sel.X*scaleX, sel.Width*scaleX, natural.X)
	y, h := clampAxis(sel.Y*scaleY, sel.Height*scaleY, natural.Y)

	return image.Rect(x, y, x+w, y+h), nil
}

// clampAxis rounds an origin and extent to the pixel grid and fits them
// into [0, limit], shrinking the extent down to a floor of one pixel.
func clampAxis(origin, extent float64, limit int) (pos, size int) {
	if limit < 1 {
		return 0, 1
	}
	pos = int(math.Round(origin))
	size = int(math.Round(extent))

	if pos < 0 {
		pos = 0
	}
	if pos > limit-1 {
		pos = limit - 1
	}
	if pos+size > limit {
		size = limit - pos
	}
	if size < 1 {
		size = 1
	}
	return pos, size
}
