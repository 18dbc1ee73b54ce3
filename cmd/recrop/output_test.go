package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"recrop/internal/blob"
)

func TestSourceBase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"photos/cat.jpg", "cat"},
		{"https://example.com/a/b/dog.png?sig=x", "dog"},
		{"file:///tmp/bird.webp", "bird"},
		{"noext", "noext"},
		{"", "crop"},
	}

	for _, tt := range tests {
		if got := sourceBase(tt.in); got != tt.want {
			t.Errorf("sourceBase(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteCrop(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	entry := blob.Entry{Data: []byte("encoded pixels"), ContentType: "image/jpeg"}

	path, err := writeCrop(dir, "gallery/cat.png", entry)
	if err != nil {
		t.Fatalf("writeCrop failed: %v", err)
	}

	name := filepath.Base(path)
	if !strings.HasPrefix(name, "cat-") || !strings.HasSuffix(name, ".jpeg") {
		t.Errorf("unexpected output name %q", name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "encoded pixels" {
		t.Errorf("written bytes differ: %q", data)
	}

	// Same content hashes to the same name; different content must not
	// collide.
	other := blob.Entry{Data: []byte("different pixels"), ContentType: "image/jpeg"}
	path2, err := writeCrop(dir, "gallery/cat.png", other)
	if err != nil {
		t.Fatal(err)
	}
	if path2 == path {
		t.Error("distinct crops collided on the same output name")
	}
}
