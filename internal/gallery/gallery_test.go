package gallery

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{128, 128, 128, 255})
	if err := imaging.Save(img, path); err != nil {
		t.Fatal(err)
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "a.png"), 64, 32)
	writeImage(t, filepath.Join(dir, "b.jpg"), 20, 40)
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	writeImage(t, filepath.Join(dir, "sub", "c.png"), 8, 8)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if got.Name != filepath.Base(dir) {
		t.Errorf("directory name: got %s", got.Name)
	}
	if len(got.Files) != 3 {
		t.Fatalf("expected 3 images, got %d: %+v", len(got.Files), got.Files)
	}

	byName := map[string]FileInfo{}
	for _, f := range got.Files {
		byName[f.Name] = f
	}
	if f := byName["a.png"]; f.Image.Width != 64 || f.Image.Height != 32 {
		t.Errorf("a.png dimensions: %+v", f.Image)
	}
	if f := byName["b.jpg"]; f.Image.Width != 20 || f.Image.Height != 40 {
		t.Errorf("b.jpg dimensions: %+v", f.Image)
	}
	if _, ok := byName[filepath.Join("sub", "c.png")]; !ok {
		t.Error("nested image missing from scan")
	}
}

func TestScan_UnreadableDimensionsStillListed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(got.Files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(got.Files))
	}
	if got.Files[0].Image != (ImageInfo{}) {
		t.Errorf("broken image should have zero dimensions: %+v", got.Files[0].Image)
	}
}

func TestScan_MissingRoot(t *testing.T) {
	if _, err := Scan(context.Background(), filepath.Join(t.TempDir(), "gone")); err == nil {
		t.Error("expected error for missing root")
	}
}
