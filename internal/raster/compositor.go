// Package raster renders a confirmed selection into the final output
// image: crop, flips and arbitrary-angle rotation, then encoding.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
)

// ErrRender marks failures to produce the output raster.
var ErrRender = errors.New("render failed")

// Composite crops rect out of src and bakes the transform into the result.
// The output is exactly rect.Dx() x rect.Dy() pixels.
//
// Flips are applied to the cropped content first, then the rotation; that
// matches composing rotation and flip matrices in a fixed order, so the
// result does not depend on the order the user toggled them in. Rotation
// goes through an enlarged intermediate surface (no corner clipping) and
// the centered rect-sized window is copied back out; window areas the
// rotated content does not reach stay transparent.
func Composite(src image.Image, rect image.Rectangle, t Transform) (*image.NRGBA, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source image", ErrRender)
	}
	if rect.Empty() {
		return nil, fmt.Errorf("%w: empty crop rectangle %v", ErrRender, rect)
	}

	// The geometry mapper guarantees containment; intersect anyway so a
	// stray rect cannot read outside the source.
	clipped := rect.Intersect(src.Bounds())
	if clipped.Empty() {
		return nil, fmt.Errorf("%w: crop rectangle %v outside image bounds %v", ErrRender, rect, src.Bounds())
	}

	out := imaging.Crop(src, clipped)
	if t.FlipH {
		out = imaging.FlipH(out)
	}
	if t.FlipV {
		out = imaging.FlipV(out)
	}

	angle := t.NormalizedRotation()
	if angle == 0 {
		return out, nil
	}

	w, h := clipped.Dx(), clipped.Dy()
	rotated := transform.Rotate(out, angle, &transform.RotationOptions{ResizeBounds: true})

	final := image.NewNRGBA(image.Rect(0, 0, w, h))
	rb := rotated.Bounds()
	origin := image.Pt(rb.Min.X+(rb.Dx()-w)/2, rb.Min.Y+(rb.Dy()-h)/2)
	draw.Draw(final, final.Bounds(), rotated, origin, draw.Src)
	return final, nil
}
