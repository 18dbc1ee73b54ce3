// Package config resolves per-session crop options from layered sources:
// built-in defaults, an optional recrop.yaml file, and caller overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"recrop/internal/raster"
)

// Options is the fully resolved configuration of one crop session. It is
// serialized to the dialog UI as part of the session snapshot.
type Options struct {
	Format  raster.Format `json:"format"`
	Quality float64       `json:"quality"`
	MinZoom float64       `json:"minZoom"`
	MaxZoom float64       `json:"maxZoom"`
	// AspectRatio constrains the selection (width/height); 0 means free.
	// Toggling it mid-session constrains future drags only, the current
	// selection is left as-is.
	AspectRatio float64 `json:"aspectRatio"`
	// Styles are CSS custom properties passed through to the dialog UI.
	Styles map[string]string `json:"styles,omitempty"`
	// Engine holds passthrough options for the cropper interaction engine,
	// forwarded verbatim.
	Engine map[string]any `json:"engine,omitempty"`
}

// Defaults returns the built-in option set.
func Defaults() Options {
	return Options{
		Format:  raster.FormatPNG,
		Quality: raster.DefaultQuality,
		MinZoom: 0.1,
		MaxZoom: 10,
	}
}

// Overrides carries optional per-request option changes. Nil fields leave
// the base value untouched.
type Overrides struct {
	Format      *string           `json:"format,omitempty"`
	Quality     *float64          `json:"quality,omitempty"`
	MinZoom     *float64          `json:"minZoom,omitempty"`
	MaxZoom     *float64          `json:"maxZoom,omitempty"`
	AspectRatio *float64          `json:"aspectRatio,omitempty"`
	Styles      map[string]string `json:"styles,omitempty"`
	Engine      map[string]any    `json:"engine,omitempty"`
}

// Resolve applies the overrides to base and validates the result.
func (o *Overrides) Resolve(base Options) (Options, error) {
	opts := base
	if o != nil {
		if o.Format != nil {
			f, err := raster.ParseFormat(*o.Format)
			if err != nil {
				return Options{}, err
			}
			opts.Format = f
		}
		if o.Quality != nil {
			opts.Quality = *o.Quality
		}
		if o.MinZoom != nil {
			opts.MinZoom = *o.MinZoom
		}
		if o.MaxZoom != nil {
			opts.MaxZoom = *o.MaxZoom
		}
		if o.AspectRatio != nil {
			opts.AspectRatio = *o.AspectRatio
		}
		if o.Styles != nil {
			opts.Styles = o.Styles
		}
		if o.Engine != nil {
			opts.Engine = o.Engine
		}
	}

	if opts.Quality < 0 || opts.Quality > 1 {
		return Options{}, fmt.Errorf("quality %v out of range [0,1]", opts.Quality)
	}
	if opts.MinZoom <= 0 || opts.MinZoom > opts.MaxZoom {
		return Options{}, fmt.Errorf("invalid zoom bounds [%v,%v]", opts.MinZoom, opts.MaxZoom)
	}
	if opts.AspectRatio < 0 {
		return Options{}, fmt.Errorf("aspect ratio %v must be >= 0", opts.AspectRatio)
	}
	return opts, nil
}

// File is the recrop.yaml configuration file. It contributes defaults for
// the CLI and an Overrides view for sessions.
type File struct {
	Listen      string            `yaml:"listen"`
	Output      string            `yaml:"output"`
	Format      *string           `yaml:"format"`
	Quality     *float64          `yaml:"quality"`
	MinZoom     *float64          `yaml:"min_zoom"`
	MaxZoom     *float64          `yaml:"max_zoom"`
	AspectRatio *float64          `yaml:"aspect_ratio"`
	Styles      map[string]string `yaml:"styles"`
}

// LoadFile reads a YAML config file.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return f, nil
}

// Overrides converts the file's option fields into an Overrides value.
func (f File) Overrides() Overrides {
	return Overrides{
		Format:      f.Format,
		Quality:     f.Quality,
		MinZoom:     f.MinZoom,
		MaxZoom:     f.MaxZoom,
		AspectRatio: f.AspectRatio,
		Styles:      f.Styles,
	}
}
