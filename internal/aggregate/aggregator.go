// Package aggregate owns the per-run ScrapedData: category-partitioned
// resource lists with intra-category URL deduplication, guarded by a
// single mutex the way a small set of concurrently-updated result maps
// would be, generalized from a two-category split into the
// five-category resource taxonomy this system classifies.
package aggregate

import (
	"sync"

	"github.com/scrapevault/scrapevault/internal/models"
)

// Aggregator is the mutex-guarded owner of one run's ScrapedData.
// CrawlPool workers call Add concurrently; the Controller reads a
// consistent Snapshot between task completions.
type Aggregator struct {
	mu   sync.Mutex
	data models.ScrapedData
	seen map[models.Category]map[string]bool
}

// New creates an empty Aggregator for the given source URL.
func New(sourceURL string) *Aggregator {
	seen := make(map[models.Category]map[string]bool, len(models.AllCategories))
	for _, c := range models.AllCategories {
		seen[c] = make(map[string]bool)
	}
	return &Aggregator{
		data: models.ScrapedData{SourceURL: sourceURL},
		seen: seen,
	}
}

// Add classifies a single resource into its category list: HLS
// playlists go to hls_playlists; text, json and rich_text go to
// documents; every other non-media type (document, unknown) also goes
// to documents, whatever its extension. URL-less inline resources are never
// deduplicated; URL-bearing resources are deduped within their
// category.
func (a *Aggregator) Add(r *models.Resource) {
	category := categoryFor(r)

	a.mu.Lock()
	defer a.mu.Unlock()

	if r.URL != "" {
		if a.seen[category][r.URL] {
			return
		}
		a.seen[category][r.URL] = true
	}

	switch category {
	case models.CategoryImages:
		a.data.Images = append(a.data.Images, r)
	case models.CategoryVideos:
		a.data.Videos = append(a.data.Videos, r)
	case models.CategoryAudios:
		a.data.Audios = append(a.data.Audios, r)
	case models.CategoryHLSPlaylists:
		a.data.HLSPlaylists = append(a.data.HLSPlaylists, r)
	case models.CategoryDocuments:
		a.data.Documents = append(a.data.Documents, r)
	}
}

// AddAll is a convenience wrapper around Add for a batch of resources,
// as produced by a single Extractor call.
func (a *Aggregator) AddAll(resources []*models.Resource) {
	for _, r := range resources {
		a.Add(r)
	}
}

func categoryFor(r *models.Resource) models.Category {
	switch r.Type {
	case models.ResourceImage:
		return models.CategoryImages
	case models.ResourceVideo:
		return models.CategoryVideos
	case models.ResourceAudio:
		return models.CategoryAudios
	case models.ResourceHLSPlaylist:
		return models.CategoryHLSPlaylists
	default:
		// text, json, rich_text, document, and unknown all land in
		// documents as the catch-all category.
		return models.CategoryDocuments
	}
}

// Snapshot returns a copy of the current ScrapedData, with fresh lists
// and a fresh copy of every Resource struct, so a subscriber observing
// a results-updated event never sees a torn read across concurrent Add
// calls. Map fields of a Resource (Headers, Metadata) are shared with
// the aggregator's copy.
func (a *Aggregator) Snapshot() models.ScrapedData {
	a.mu.Lock()
	defer a.mu.Unlock()

	return models.ScrapedData{
		SourceURL:    a.data.SourceURL,
		Images:       copyResources(a.data.Images),
		Videos:       copyResources(a.data.Videos),
		Audios:       copyResources(a.data.Audios),
		HLSPlaylists: copyResources(a.data.HLSPlaylists),
		Documents:    copyResources(a.data.Documents),
	}
}

func copyResources(in []*models.Resource) []*models.Resource {
	if in == nil {
		return nil
	}
	out := make([]*models.Resource, len(in))
	for i, r := range in {
		cp := *r
		out[i] = &cp
	}
	return out
}

// Counts summarizes category sizes under the lock, for progress events.
func (a *Aggregator) Counts() map[models.Category]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data.Counts()
}
