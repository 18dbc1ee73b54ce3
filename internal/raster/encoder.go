package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"math"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// ErrEncode marks failures to serialize the output raster.
var ErrEncode = errors.New("image encode failed")

// DefaultQuality is the quality applied when the caller does not choose
// one. Only meaningful for lossy formats.
const DefaultQuality = 0.92

// Format is an output image encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

// ParseFormat resolves a user-supplied format name. "jpg" is accepted as
// an alias for "jpeg"; the empty string means the default (PNG).
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "webp":
		return FormatWebP, nil
	}
	return "", fmt.Errorf("unknown image format %q", s)
}

func (f Format) MIMEType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/png"
	}
}

// Ext returns the file extension without a dot.
func (f Format) Ext() string {
	if f == "" {
		return string(FormatPNG)
	}
	return string(f)
}

// Encode serializes img into w. quality is on a 0..1 scale, clamped; it is
// accepted but ignored for PNG.
func Encode(w io.Writer, img image.Image, f Format, quality float64) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrEncode)
	}

	q := qualityScale(quality)
	var err error
	switch f {
	case FormatPNG:
		err = imaging.Encode(w, img, imaging.PNG)
	case FormatJPEG:
		err = imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(q))
	case FormatWebP:
		err = webp.Encode(w, img, &webp.Options{Quality: float32(q)})
	default:
		return fmt.Errorf("%w: unknown format %q", ErrEncode, f)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ErrEncode, f, err)
	}
	return nil
}

// EncodeBytes encodes img into a fresh byte slice.
func EncodeBytes(img image.Image, f Format, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, f, quality); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("%w: encoder produced no data", ErrEncode)
	}
	return buf.Bytes(), nil
}

// qualityScale maps 0..1 onto the 1..100 scale the encoders use.
func qualityScale(quality float64) int {
	q := int(math.Round(quality * 100))
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}
	return q
}
