package main

import (
	"time"

	"github.com/scrapevault/scrapevault/internal/config"
	"github.com/scrapevault/scrapevault/internal/controller"
	"github.com/scrapevault/scrapevault/internal/fetch"
)

// crawlFetchOptions builds the fetch.Options a crawl worker's HTTP
// client is tuned with from the loaded FetchConfig.
func crawlFetchOptions(cfg config.FetchConfig) fetch.Options {
	return fetch.Options{
		RequestTimeout:  time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		HeadTimeout:     time.Duration(cfg.HeadTimeoutSeconds) * time.Second,
		MaxRetries:      cfg.MaxRetries,
		RetryBaseDelay:  time.Duration(cfg.RetryBaseSeconds * float64(time.Second)),
		RotateUserAgent: cfg.RotateUserAgent,
		ProxyURL:        cfg.ProxyURL,
	}
}

// downloadFetchOptions mirrors crawlFetchOptions but substitutes
// DownloadTimeoutSeconds for RequestTimeout, since a download's HTTP
// client is a separate instance from the crawl's and resources it
// fetches (video/HLS segments, large documents) warrant a different
// timeout than a crawled HTML page.
func downloadFetchOptions(cfg config.FetchConfig) fetch.Options {
	opts := crawlFetchOptions(cfg)
	opts.RequestTimeout = time.Duration(cfg.DownloadTimeoutSeconds) * time.Second
	return opts
}

// downloadTuning builds the retry/disk-space/chunking knobs
// DownloadPool is tuned with from the loaded DownloadConfig.
// MaxRetries counts retries after the first attempt, so it becomes
// MaxAttempts-1 for download.Pool's attempt-counted loop.
func downloadTuning(cfg config.DownloadConfig) controller.DownloadTuning {
	return controller.DownloadTuning{
		MaxAttempts:    cfg.MaxRetries + 1,
		RetryBaseDelay: time.Duration(cfg.RetryBaseSeconds * float64(time.Second)),
		MinFreeBytes:   cfg.MinFreeBytes,
		ReserveBytes:   cfg.ReserveBytes,
		ChunkBytes:     cfg.ChunkBytes,
		CacheSkewBytes: cfg.CacheSkewBytes,
	}
}
