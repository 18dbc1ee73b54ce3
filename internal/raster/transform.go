package raster

import "math"

// Transform is a snapshot of the interaction engine's zoom, rotation and
// flip state at confirm time. It is captured once per confirm and never
// read back from the live engine.
type Transform struct {
	Zoom     float64 `json:"zoom"`
	Rotation float64 `json:"rotation"` // degrees, any value
	FlipH    bool    `json:"flipH"`
	FlipV    bool    `json:"flipV"`
}

// Identity returns the transform that leaves the crop untouched.
func Identity() Transform {
	return Transform{Zoom: 1}
}

// NormalizedRotation reduces the rotation into [0, 360).
func (t Transform) NormalizedRotation() float64 {
	r := math.Mod(t.Rotation, 360)
	if r < 0 {
		r += 360
	}
	return r
}

// IsIdentity reports whether compositing with this transform degenerates
// to a plain crop.
func (t Transform) IsIdentity() bool {
	return t.NormalizedRotation() == 0 && !t.FlipH && !t.FlipV
}
