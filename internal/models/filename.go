package models

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeFilenameChars = regexp.MustCompile(`[/\\:*?"<>|\x00-\x1f]`)

// SanitizeFilename strips characters that are unsafe across common
// filesystems.
func SanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	return strings.TrimSpace(name)
}

// DeriveFilename prefers a sanitized title under 100 chars, else the
// URL-decoded basename, else a md5-based fallback name. The extension
// is filled in from the resource type when absent. Both the download
// pool (naming a file on disk) and the crawl pool (naming a Catalog
// resource row before any download has happened) need the same name
// for the same Resource, so the derivation lives here instead of being
// duplicated in each package.
func DeriveFilename(r *Resource) string {
	var base string

	if r.Title != "" && len(r.Title) < 100 {
		base = SanitizeFilename(r.Title)
	}

	if base == "" && r.URL != "" {
		if u, err := url.Parse(r.URL); err == nil {
			if decoded, err := url.PathUnescape(path.Base(u.Path)); err == nil {
				base = SanitizeFilename(decoded)
			}
		}
	}

	if base == "" || base == "." || base == "/" {
		sum := md5.Sum([]byte(r.URL + r.Content))
		base = "file_" + hex.EncodeToString(sum[:])[:10]
	}

	ext := filepath.Ext(base)
	if ext == "" {
		ext = ExtensionForType(r.Type)
		base += ext
	}

	return base
}
