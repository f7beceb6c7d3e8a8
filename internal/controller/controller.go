// Package controller implements Controller: the public façade over
// CrawlPool and DownloadPool that the CLI (or any other subscriber)
// drives, owning the run's Aggregator handle, active Catalog Task id,
// and a single typed event channel. Every state transition and
// progress tick is published on that channel rather than delivered
// through callbacks tied to a specific consumer.
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scrapevault/scrapevault/internal/aggregate"
	"github.com/scrapevault/scrapevault/internal/catalog"
	"github.com/scrapevault/scrapevault/internal/crawl"
	"github.com/scrapevault/scrapevault/internal/download"
	"github.com/scrapevault/scrapevault/internal/fetch"
	"github.com/scrapevault/scrapevault/internal/models"
)

// State is the Controller's run state machine:
//
//	Idle -> Crawling -> (Scanned | Cancelled | Failed) -> Idle
//	Idle -> Downloading -> (Completed | Cancelled | Failed) -> Idle
type State string

const (
	StateIdle        State = "idle"
	StateCrawling    State = "crawling"
	StateScanned     State = "scanned"
	StateDownloading State = "downloading"
	StateCompleted   State = "completed"
	StateCancelled   State = "cancelled"
	StateFailed      State = "failed"
)

const eventBuffer = 256

// Controller serializes all state transitions under one mutex; event
// handlers from CrawlPool/DownloadPool hooks arrive on arbitrary
// worker goroutines and are only ever used to push onto the event
// channel or mutate state while holding mu.
type Controller struct {
	mu     sync.Mutex
	state  State
	events chan Event

	catalog *catalog.Catalog

	crawlPool    *crawl.Pool
	downloadPool *download.Pool

	taskID     int64
	lastResult models.ScrapedData

	cancelOnce sync.Once

	crawlFetcherFactory  func() crawl.Fetcher
	downloadFetcher      download.Fetcher
	crawlFetchOptions    fetch.Options
	downloadFetchOptions fetch.Options
	downloadTuning       DownloadTuning
}

// DownloadTuning carries DownloadPool's deployment-tunable retry,
// disk-space and chunking knobs through the Controller so the CLI
// layer can source them from config without StartDownload itself
// growing one parameter per knob.
type DownloadTuning struct {
	MaxAttempts    int
	RetryBaseDelay time.Duration
	MinFreeBytes   int64
	ReserveBytes   int64
	ChunkBytes     int
	CacheSkewBytes int64
}

// New builds an idle Controller backed by cat, which may be nil to run
// without persistence (tests, dry runs).
func New(cat *catalog.Catalog) *Controller {
	return &Controller{
		state:   StateIdle,
		events:  make(chan Event, eventBuffer),
		catalog: cat,
	}
}

// SetCrawlFetcherFactory overrides how each crawl worker obtains its
// Fetcher; tests use this to inject a deterministic mock instead of
// real HTTP, mirroring crawl.Pool.SetFetcherFactory.
func (c *Controller) SetCrawlFetcherFactory(factory func() crawl.Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.crawlFetcherFactory = factory
}

// SetDownloadFetcher overrides the Fetcher a download run uses in
// place of a real fetch.Client.
func (c *Controller) SetDownloadFetcher(fetcher download.Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.downloadFetcher = fetcher
}

// SetCrawlFetchOptions tunes the HTTP client each crawl worker builds
// for itself. It has no effect once SetCrawlFetcherFactory has been
// used to replace that client entirely.
func (c *Controller) SetCrawlFetchOptions(opts fetch.Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.crawlFetchOptions = opts
}

// SetDownloadFetchOptions tunes the HTTP client a download run builds
// for itself. It has no effect once SetDownloadFetcher has been used
// to replace that client entirely.
func (c *Controller) SetDownloadFetchOptions(opts fetch.Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.downloadFetchOptions = opts
}

// SetDownloadTuning configures DownloadPool's retry/disk-space/chunking
// knobs for subsequent StartDownload calls.
func (c *Controller) SetDownloadTuning(t DownloadTuning) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.downloadTuning = t
}

// Events returns the channel every state transition and progress tick
// is published on. The channel is never closed by Controller; callers
// read until they choose to stop.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastResult returns the most recent crawl's ScrapedData snapshot.
func (c *Controller) LastResult() models.ScrapedData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastResult
}

// TaskID returns the Catalog Task id of the most recently finished
// crawl, or the id loaded by LoadResumeSnapshot.
func (c *Controller) TaskID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.taskID
}

// LoadResumeSnapshot primes the Controller with a ScrapedData and
// Catalog Task id reconstructed from a past crawl, so StartDownload can
// target a task from a previous process invocation (the CLI's
// "download --task" resume path). It is an error to call this while a
// run is active.
func (c *Controller) LoadResumeSnapshot(data models.ScrapedData, taskID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return fmt.Errorf("controller: cannot load a resume snapshot while in state %q", c.state)
	}
	c.lastResult = data
	c.taskID = taskID
	return nil
}

func (c *Controller) emit(e Event) {
	select {
	case c.events <- e:
	default:
		// A stalled/absent subscriber must never block a worker
		// goroutine; when the buffer is full this event is dropped
		// rather than stall.
	}
}

// StartCrawl begins a crawl rooted at seed. It is an error to call this
// while a run is already active.
func (c *Controller) StartCrawl(ctx context.Context, seed string, maxDepth int, savePath string, autoAdapt, crossDomain bool) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("controller: cannot start crawl while in state %q", c.state)
	}
	c.state = StateCrawling
	c.cancelOnce = sync.Once{}
	c.mu.Unlock()

	var cat crawl.Catalog
	if c.catalog != nil {
		cat = c.catalog
	}

	hooks := crawl.Hooks{
		OnLog:      func(msg string) { c.emit(Event{Kind: EventLog, Message: msg}) },
		OnProgress: func(done, total int) { c.emit(Event{Kind: EventProgress, Done: done, Total: total}) },
		OnResultsUpdated: func(data models.ScrapedData) {
			c.emit(Event{Kind: EventResultsUpdated, Data: data})
		},
		OnError: func(msg string) {
			c.mu.Lock()
			c.state = StateFailed
			c.mu.Unlock()
			c.emit(Event{Kind: EventError, Message: msg})
			c.returnToIdle()
		},
		OnFinished: func(data models.ScrapedData) {
			c.mu.Lock()
			c.lastResult = data
			if c.crawlPool != nil {
				c.taskID = c.crawlPool.TaskID()
			}
			c.state = StateScanned
			c.mu.Unlock()
			c.emit(Event{Kind: EventFinished, Data: data})
			c.returnToIdle()
		},
	}

	c.mu.Lock()
	fetchOpts := c.crawlFetchOptions
	c.mu.Unlock()

	pool := crawl.New(crawl.Config{
		SeedURL:          seed,
		MaxDepth:         maxDepth,
		AllowCrossDomain: crossDomain,
		AdaptiveEnabled:  autoAdapt,
		SavePath:         savePath,
		FetchOptions:     fetchOpts,
	}, cat, hooks)

	c.mu.Lock()
	if c.crawlFetcherFactory != nil {
		pool.SetFetcherFactory(c.crawlFetcherFactory)
	}
	c.crawlPool = pool
	c.mu.Unlock()

	c.emit(Event{Kind: EventStarted})
	pool.Start(ctx)
	return nil
}

// StartDownload begins downloading the categories in selection from
// the most recent crawl's ScrapedData into outputDir.
func (c *Controller) StartDownload(ctx context.Context, selection []models.Category, outputDir string, workers int) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("controller: cannot start download while in state %q", c.state)
	}
	data := c.lastResult
	taskID := c.taskID
	c.state = StateDownloading
	c.cancelOnce = sync.Once{}
	c.mu.Unlock()

	var cat download.Catalog
	if c.catalog != nil {
		cat = c.catalog
	}

	hooks := download.Hooks{
		OnLog:      func(msg string) { c.emit(Event{Kind: EventLog, Message: msg}) },
		OnProgress: func(done, total int) { c.emit(Event{Kind: EventProgress, Done: done, Total: total}) },
		OnFinished: func(success, total int) {
			c.mu.Lock()
			if c.state == StateCancelled {
				// already transitioned by Cancel
			} else {
				c.state = StateCompleted
			}
			c.mu.Unlock()
			c.emit(Event{Kind: EventFinished, Done: success, Total: total})
			c.returnToIdle()
		},
	}

	c.mu.Lock()
	fetchOpts := c.downloadFetchOptions
	tuning := c.downloadTuning
	c.mu.Unlock()

	var fetcher download.Fetcher = fetch.NewWithOptions(fetchOpts)
	c.mu.Lock()
	if c.downloadFetcher != nil {
		fetcher = c.downloadFetcher
	}
	c.mu.Unlock()

	pool := download.New(download.Config{
		OutputDir:      outputDir,
		Workers:        workers,
		Categories:     selection,
		MaxAttempts:    tuning.MaxAttempts,
		RetryBaseDelay: tuning.RetryBaseDelay,
		MinFreeBytes:   tuning.MinFreeBytes,
		ReserveBytes:   tuning.ReserveBytes,
		ChunkBytes:     tuning.ChunkBytes,
		CacheSkewBytes: tuning.CacheSkewBytes,
	}, fetcher, cat, taskID, hooks)

	c.mu.Lock()
	c.downloadPool = pool
	c.mu.Unlock()

	c.emit(Event{Kind: EventStarted})
	pool.Start(ctx, data)
	return nil
}

// Cancel requests cooperative shutdown of whichever run is active. It
// is idempotent: calling it multiple times, or while Idle, is a no-op.
func (c *Controller) Cancel() {
	c.cancelOnce.Do(func() {
		c.mu.Lock()
		crawlPool, downloadPool := c.crawlPool, c.downloadPool
		if c.state == StateCrawling || c.state == StateDownloading {
			c.state = StateCancelled
		}
		c.mu.Unlock()

		if crawlPool != nil {
			crawlPool.Cancel()
		}
		if downloadPool != nil {
			downloadPool.Cancel()
		}
	})
}

// returnToIdle drops the run's pool handles and resets to Idle once a
// terminal state has been reported.
func (c *Controller) returnToIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.crawlPool = nil
	c.downloadPool = nil
	c.state = StateIdle
}

// Aggregator exposes the active crawl's aggregator, or nil when idle.
func (c *Controller) Aggregator() *aggregate.Aggregator {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.crawlPool == nil {
		return nil
	}
	return c.crawlPool.Aggregator()
}
