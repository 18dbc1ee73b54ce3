package geometry

import (
	"errors"
	"image"
	"testing"
)

func TestCropRect_UniformScale(t *testing.T) {
	// Natural 1000x600 rendered at 500x300 is a 2x scale on both axes.
	sel := Rect{X: 100, Y: 50, Width: 100, Height: 60}
	got, err := CropRect(sel, Size{Width: 500, Height: 300}, image.Pt(1000, 600))
	if err != nil {
		t.Fatalf("CropRect failed: %v", err)
	}

	want := image.Rect(200, 100, 400, 220)
	if got != want {
		t.Errorf("crop rect: got %v, want %v", got, want)
	}
}

func TestCropRect_NonUniformScale(t *testing.T) {
	// 4x horizontal, 2x vertical; the axes must be scaled independently.
	sel := Rect{X: 10, Y: 10, Width: 50, Height: 50}
	got, err := CropRect(sel, Size{Width: 200, Height: 300}, image.Pt(800, 600))
	if err != nil {
		t.Fatalf("CropRect failed: %v", err)
	}

	want := image.Rect(40, 20, 240, 120)
	if got != want {
		t.Errorf("crop rect: got %v, want %v", got, want)
	}
}

func TestCropRect_ClampShrinksWidth(t *testing.T) {
	// A rounding edge case pushes the rect past the right edge: the width
	// must shrink, the origin must not shift.
	sel := Rect{X: 995, Y: 0, Width: 20, Height: 10}
	got, err := CropRect(sel, Size{Width: 1000, Height: 600}, image.Pt(1000, 600))
	if err != nil {
		t.Fatalf("CropRect failed: %v", err)
	}

	want := image.Rect(995, 0, 1000, 10)
	if got != want {
		t.Errorf("crop rect: got %v, want %v", got, want)
	}
}

func TestCropRect_NegativeOrigin(t *testing.T) {
	sel := Rect{X: -30, Y: -10, Width: 100, Height: 50}
	got, err := CropRect(sel, Size{Width: 500, Height: 300}, image.Pt(500, 300))
	if err != nil {
		t.Fatalf("CropRect failed: %v", err)
	}

	if got.Min.X != 0 || got.Min.Y != 0 {
		t.Errorf("origin not clamped to zero: %v", got)
	}
}

func TestCropRect_ZeroRenderedSize(t *testing.T) {
	tests := []struct {
		name     string
		rendered Size
	}{
		{"zero width", Size{Width: 0, Height: 300}},
		{"zero height", Size{Width: 500, Height: 0}},
		{"both zero", Size{}},
		{"negative", Size{Width: -1, Height: 300}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CropRect(Rect{Width: 10, Height: 10}, tt.rendered, image.Pt(100, 100))
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("got %v, want ErrUnavailable", err)
			}
		})
	}
}

func TestCropRect_AlwaysContained(t *testing.T) {
	natural := image.Pt(640, 480)
	rendered := Size{Width: 320, Height: 240}
	bounds := image.Rect(0, 0, natural.X, natural.Y)

	selections := []Rect{
		{X: 0, Y: 0, Width: 320, Height: 240},
		{X: -100, Y: -100, Width: 500, Height: 500},
		{X: 319, Y: 239, Width: 50, Height: 50},
		{X: 400, Y: 300, Width: 10, Height: 10}, // entirely outside
		{X: 0.4, Y: 0.4, Width: 0.1, Height: 0.1},
		{X: 159.5, Y: 119.5, Width: 0.5, Height: 0.5},
	}

	for _, sel := range selections {
		got, err := CropRect(sel, rendered, natural)
		if err != nil {
			t.Fatalf("CropRect(%+v) failed: %v", sel, err)
		}
		if !got.In(bounds) {
			t.Errorf("CropRect(%+v) = %v escapes %v", sel, got, bounds)
		}
		if got.Dx() < 1 || got.Dy() < 1 {
			t.Errorf("CropRect(%+v) = %v is smaller than 1x1", sel, got)
		}
	}
}

func TestNaturalRect_RoundTrip(t *testing.T) {
	r := image.Rect(10, 20, 110, 220)
	if got := FromRectangle(r).Rectangle(); got != r {
		t.Errorf("round trip: got %v, want %v", got, r)
	}
}
