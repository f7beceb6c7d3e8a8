package download

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/scrapevault/scrapevault/internal/models"
)

func TestDeriveFilenamePrefersTitle(t *testing.T) {
	r := &models.Resource{URL: "http://x.test/a.jpg", Title: "My Photo", Type: models.ResourceImage}
	got := deriveFilename(r)
	if got != "My Photo.jpg" {
		t.Fatalf("got %q", got)
	}
}

func TestDeriveFilenameFallsBackToURLBase(t *testing.T) {
	r := &models.Resource{URL: "http://x.test/path/photo.png", Type: models.ResourceImage}
	got := deriveFilename(r)
	if got != "photo.png" {
		t.Fatalf("got %q", got)
	}
}

func TestDeriveFilenameSanitizesUnsafeChars(t *testing.T) {
	r := &models.Resource{URL: "http://x.test/a.jpg", Title: `bad:name/with*chars`, Type: models.ResourceImage}
	got := deriveFilename(r)
	if got != "bad_name_with_chars.jpg" {
		t.Fatalf("got %q", got)
	}
}

func TestDeriveFilenameHashesWhenNothingUsable(t *testing.T) {
	r := &models.Resource{Content: "inline text", Type: models.ResourceText}
	got := deriveFilename(r)
	if filepath.Ext(got) != ".txt" {
		t.Fatalf("expected .txt extension, got %q", got)
	}
}

func TestNextAvailableNameSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a_1.jpg"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	got := nextAvailableName(dir, "a.jpg")
	if got != "a_2.jpg" {
		t.Fatalf("got %q", got)
	}
}
