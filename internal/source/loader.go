// Package source acquires and decodes the image a crop session targets.
package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	// Sources may be WebP; imaging.Decode picks the decoder up through
	// the image package registry.
	_ "golang.org/x/image/webp"
)

// LoadError reports a failure to fetch or decode the source image,
// carrying the attempted URL.
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load image %s: %s", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Loader fetches source image bytes from http(s) URLs, file:// URLs or
// plain file paths. Relative paths resolve under Root when it is set.
type Loader struct {
	// Client is used for http(s) sources. It deliberately has no timeout:
	// a hung load blocks until the user cancels the session.
	Client *http.Client
	Root   string
}

// Fetch returns the raw bytes and a content type for rawURL.
func (l *Loader) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return l.fetchHTTP(ctx, rawURL)
	}

	path := rawURL
	if err == nil && u.Scheme == "file" {
		path = u.Path
	}
	return l.fetchFile(rawURL, path)
}

func (l *Loader) fetchHTTP(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", &LoadError{URL: rawURL, Err: err}
	}

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", &LoadError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &LoadError{URL: rawURL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &LoadError{URL: rawURL, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	log.Ctx(ctx).Debug().Str("url", rawURL).Int("bytes", len(data)).Msg("fetched source image")

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func (l *Loader) fetchFile(rawURL, path string) ([]byte, string, error) {
	if !filepath.IsAbs(path) && l.Root != "" {
		path = filepath.Join(l.Root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", &LoadError{URL: rawURL, Err: err}
	}
	return data, http.DetectContentType(data), nil
}

// Decode turns fetched bytes into an image on its natural pixel grid.
// EXIF orientation is applied so the grid matches what a browser renders.
func Decode(rawURL string, data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &LoadError{URL: rawURL, Err: fmt.Errorf("failed to decode image: %w", err)}
	}
	return img, nil
}
