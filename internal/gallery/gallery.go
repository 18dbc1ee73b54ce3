// Package gallery lists the images under a directory for browse mode.
package gallery

import (
	"context"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

type ImageInfo struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type FileInfo struct {
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
	URL        string    `json:"url"`
	Image      ImageInfo `json:"image"`
}

type Directory struct {
	Name  string     `json:"name"`
	Files []FileInfo `json:"files"`
}

var extensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Scan walks root for images and probes their pixel dimensions in
// parallel. A file whose dimensions cannot be read is still listed, with
// zero dimensions; only the walk itself can fail the scan.
func Scan(ctx context.Context, root string) (Directory, error) {
	var files []FileInfo

	if err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to get file info: %w", err)
		}
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}

		files = append(files, FileInfo{
			Name:       relPath,
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime(),
		})
		return nil
	}); err != nil {
		return Directory{}, fmt.Errorf("failed to walk dir: %w", err)
	}

	pooler := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(runtime.NumCPU())
	for i := range files {
		pooler.Go(func(ctx context.Context) error {
			w, h, err := readDimensions(filepath.Join(root, files[i].Name))
			if err != nil {
				log.Ctx(ctx).Error().Err(err).Str("filename", files[i].Name).Msg("cannot read image dimensions")
				return nil
			}
			files[i].Image = ImageInfo{Width: w, Height: h}
			return nil
		})
	}
	if err := pooler.Wait(); err != nil {
		return Directory{}, err
	}

	return Directory{
		Name:  filepath.Base(root),
		Files: files,
	}, nil
}

// readDimensions decodes only the image header.
func readDimensions(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
