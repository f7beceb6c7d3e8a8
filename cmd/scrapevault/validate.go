package main

import (
	"fmt"
	"strings"

	"github.com/scrapevault/scrapevault/internal/models"
)

// validateCrawlFlags checks seed, depth and worker bounds before a
// crawl run is started.
func validateCrawlFlags(seed string, depth, workers int) error {
	if err := models.ValidateURL(seed); err != nil {
		return fmt.Errorf("invalid seed url %q: %w", seed, err)
	}
	if depth < 1 || depth > 10 {
		return fmt.Errorf("depth must be between 1 and 10, got %d", depth)
	}
	if workers != 0 && (workers < 1 || workers > 20) {
		return fmt.Errorf("workers must be between 1 and 20, got %d", workers)
	}
	return nil
}

// validateDownloadFlags checks worker bounds and that an output
// directory was given.
func validateDownloadFlags(outputDir string, workers int) error {
	if outputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	if workers != 0 && (workers < 1 || workers > 50) {
		return fmt.Errorf("workers must be between 1 and 50, got %d", workers)
	}
	return nil
}

// parseCategories maps --categories values to models.Category,
// defaulting to every category when names is empty.
func parseCategories(names []string) ([]models.Category, error) {
	if len(names) == 0 {
		return models.AllCategories, nil
	}
	byName := map[string]models.Category{
		"images":       models.CategoryImages,
		"videos":       models.CategoryVideos,
		"audios":       models.CategoryAudios,
		"hls_playlists": models.CategoryHLSPlaylists,
		"documents":    models.CategoryDocuments,
	}
	out := make([]models.Category, 0, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		c, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown category %q (valid: images, videos, audios, hls_playlists, documents)", name)
		}
		out = append(out, c)
	}
	return out, nil
}
