package main

import (
	"crypto/md5"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"recrop/internal/blob"
)

// writeCrop writes a saved blob into dir, named after the source image
// plus a short content hash so repeated crops of the same image never
// collide.
func writeCrop(dir, imageURL string, entry blob.Entry) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	sum := md5.Sum(entry.Data)
	name := fmt.Sprintf("%s-%x.%s", sourceBase(imageURL), sum[:4], extFor(entry.ContentType))
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, entry.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to write crop to %s: %w", path, err)
	}
	return path, nil
}

// sourceBase derives a file name stem from a URL or path.
func sourceBase(imageURL string) string {
	name := imageURL
	if u, err := url.Parse(imageURL); err == nil && u.Path != "" {
		name = u.Path
	}
	name = filepath.Base(filepath.FromSlash(name))
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "crop"
	}
	return name
}

func extFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return "jpeg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}
