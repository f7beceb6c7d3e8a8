package download

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/scrapevault/scrapevault/internal/models"
)

// deriveFilename prefers a sanitized title under 100 chars, else the
// URL-decoded basename, else a md5-based fallback name. The extension
// is filled in from the resource type when absent.
func deriveFilename(r *models.Resource) string {
	return models.DeriveFilename(r)
}

// nextAvailableName appends _1, _2, ... before the extension until the
// candidate path does not already exist in dir. Callers only reach for
// this once a cache-skip check against the original name has already
// failed to match.
func nextAvailableName(dir, filename string) string {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)

	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if _, err := os.Stat(filepath.Join(dir, candidate)); err != nil {
			return candidate
		}
	}
}
