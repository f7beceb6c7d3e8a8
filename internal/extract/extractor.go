// Package extract turns a fetched HTTP response into typed Resources
// and pagination links. It leans on goquery for DOM traversal instead
// of raw golang.org/x/net/html tree-walking, since the scoring and
// text-extraction rules below are naturally expressed as CSS-style
// selector queries.
package extract

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/scrapevault/scrapevault/internal/models"
)

// Result is the output of a single page extraction.
type Result struct {
	Resources []*models.Resource
	Links     []string
}

// Extractor is stateless; a single instance is shared across workers.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract dispatches on content type, resolving all discovered URLs
// against finalURL (the response's post-redirect URL).
func (e *Extractor) Extract(body []byte, contentType string, finalURL string, statusCode int) (*Result, error) {
	base, err := url.Parse(finalURL)
	if err != nil {
		return nil, models.NewError(models.KindParse, "extract.Extract", finalURL, err)
	}

	if isJSONContentType(contentType) {
		return e.extractJSON(body, finalURL, statusCode)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, models.NewError(models.KindParse, "extract.Extract", finalURL, err)
	}

	result := &Result{}

	mainBlock := selectMainContent(doc)

	result.Resources = append(result.Resources, extractMedia(mainBlock, base)...)
	result.Resources = append(result.Resources, extractAnchorResources(mainBlock, base)...)
	result.Resources = append(result.Resources, extractStructuredText(mainBlock, doc)...)
	result.Resources = append(result.Resources, sniffScripts(doc)...)

	result.Resources = dedupeByURL(result.Resources)
	result.Links = discoverPagination(doc, base)

	return result, nil
}

func isJSONContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "application/json") || strings.Contains(ct, "+json")
}

func (e *Extractor) extractJSON(body []byte, sourceURL string, statusCode int) (*Result, error) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		// Not valid JSON despite the content-type; fall back to the raw body
		// rather than dropping the resource entirely.
		pretty.Write(body)
	}

	res := &models.Resource{
		Type:    models.ResourceJSON,
		Content: pretty.String(),
		Metadata: map[string]any{
			"status_code": statusCode,
		},
	}
	return &Result{Resources: []*models.Resource{res}}, nil
}

// resolveURL resolves raw against base, rejecting data:, javascript:,
// mailto:, and fragment-only URIs.
func resolveURL(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return "", false
	}
	lower := strings.ToLower(raw)
	for _, scheme := range []string{"data:", "javascript:", "mailto:"} {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	return resolved.String(), true
}

func dedupeByURL(resources []*models.Resource) []*models.Resource {
	seen := make(map[string]bool, len(resources))
	out := make([]*models.Resource, 0, len(resources))
	for _, r := range resources {
		if r.URL == "" {
			out = append(out, r)
			continue
		}
		if seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		out = append(out, r)
	}
	return out
}

var knownExtensions = map[string]models.ResourceType{
	".jpg": models.ResourceImage, ".jpeg": models.ResourceImage, ".png": models.ResourceImage,
	".gif": models.ResourceImage, ".webp": models.ResourceImage, ".svg": models.ResourceImage,
	".mp4": models.ResourceVideo, ".webm": models.ResourceVideo, ".mov": models.ResourceVideo, ".mkv": models.ResourceVideo,
	".mp3": models.ResourceAudio, ".wav": models.ResourceAudio, ".ogg": models.ResourceAudio, ".flac": models.ResourceAudio,
	".m3u8": models.ResourceHLSPlaylist,
	".pdf":  models.ResourceDocument, ".doc": models.ResourceDocument, ".docx": models.ResourceDocument,
	".xls": models.ResourceDocument, ".xlsx": models.ResourceDocument, ".zip": models.ResourceDocument,
}

func classifyByExtension(resolved string) (models.ResourceType, bool) {
	u, err := url.Parse(resolved)
	if err != nil {
		return "", false
	}
	lower := strings.ToLower(u.Path)
	for ext, t := range knownExtensions {
		if strings.HasSuffix(lower, ext) {
			return t, true
		}
	}
	return "", false
}
