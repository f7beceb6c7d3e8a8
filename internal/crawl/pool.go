// Package crawl implements CrawlPool: the bounded worker pool that
// drains a CrawlQueue, feeds Extractor output into an Aggregator, and
// re-seeds pagination links within a depth bound. It runs a fixed set
// of long-lived goroutines over FetchClient + Extractor, each pulling
// from the same blocking priority queue, rather than an async
// collector pool spun up per request.
package crawl

import (
	"context"
	"fmt"
	"net/url"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/scrapevault/scrapevault/internal/aggregate"
	"github.com/scrapevault/scrapevault/internal/extract"
	"github.com/scrapevault/scrapevault/internal/fetch"
	"github.com/scrapevault/scrapevault/internal/models"
	"github.com/scrapevault/scrapevault/internal/queue"
)

const (
	minWorkers          = 1
	maxWorkers          = 20
	adaptiveGrowthChunk = 5
	adaptiveQueueLevel  = 50
	popTimeout          = 500 * time.Millisecond
)

// Catalog is the slice of catalog.Catalog that CrawlPool needs. It is
// declared here, consumer-side, so this package has no dependency on
// the concrete sqlite-backed implementation.
type Catalog interface {
	CreateTask(sourceURL, savePath string) (int64, error)
	UpdateTaskStatus(id int64, status models.TaskStatus, finished bool) error
	UpdateTaskProgress(id int64, downloaded, total int) error
	AddResource(taskID int64, r models.ResourceRecord) (int64, error)
}

// Fetcher is the subset of fetch.Client that a worker needs, declared
// consumer-side so tests can drive the pool with a deterministic mock
// fetcher instead of real HTTP.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, headers map[string]string, rotateUA bool, referer string) (*fetch.Response, error)
}

// Hooks lets the Controller observe pool activity without CrawlPool
// knowing anything about the event-channel machinery downstream.
// Every field is optional.
type Hooks struct {
	OnLog            func(msg string)
	OnProgress       func(done, total int)
	OnResultsUpdated func(models.ScrapedData)
	OnFinished       func(models.ScrapedData)
	OnError          func(msg string)
}

// Config controls one crawl run. FetchOptions tunes the HTTP client
// every worker builds for itself; its zero value falls back to
// fetch.DefaultOptions.
type Config struct {
	SeedURL          string
	MaxDepth         int
	Workers          int
	AllowCrossDomain bool
	AdaptiveEnabled  bool
	AdaptiveInterval time.Duration
	SavePath         string
	FetchOptions     fetch.Options
}

// DefaultWorkers clamps 2*cpu_count to the [5, 10] range.
func DefaultWorkers() int {
	n := 2 * runtime.NumCPU()
	if n < 5 {
		return 5
	}
	if n > 10 {
		return 10
	}
	return n
}

// Pool drives a single crawl run to completion.
type Pool struct {
	cfg       Config
	queue     *queue.CrawlQueue
	aggregate *aggregate.Aggregator
	extractor *extract.Extractor
	catalog   Catalog
	hooks     Hooks
	monitor   *ResourceMonitor
	newClient func() Fetcher

	seedHost string

	stopFlag   atomic.Bool
	numWorkers atomic.Int32
	taskID     int64

	finishOnce sync.Once
	done       chan struct{}
	wg         sync.WaitGroup
}

// New builds a Pool for cfg. catalog and hooks may be nil-valued
// fields; a nil Catalog skips persistence (useful for tests that only
// care about aggregation).
func New(cfg Config, catalog Catalog, hooks Hooks) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers()
	}
	cfg.Workers = clampInt(cfg.Workers, minWorkers, maxWorkers)
	if cfg.AdaptiveInterval <= 0 {
		cfg.AdaptiveInterval = 2 * time.Second
	}
	if cfg.FetchOptions.RequestTimeout <= 0 {
		cfg.FetchOptions = fetch.DefaultOptions()
	}

	seedHost := ""
	if u, err := url.Parse(cfg.SeedURL); err == nil {
		seedHost = u.Host
	}

	p := &Pool{
		cfg:       cfg,
		queue:     queue.New(),
		aggregate: aggregate.New(cfg.SeedURL),
		extractor: extract.New(),
		catalog:   catalog,
		hooks:     hooks,
		monitor: NewResourceMonitor(ResourceMonitorConfig{
			SafetyReserveMemory: 256 * 1024 * 1024,
			SafetyThreshold:     128 * 1024 * 1024,
			CPULoadThreshold:    90,
		}),
		seedHost: seedHost,
		done:     make(chan struct{}),
	}
	p.newClient = func() Fetcher { return fetch.NewWithOptions(cfg.FetchOptions) }
	return p
}

// SetFetcherFactory overrides how each worker obtains its Fetcher; it
// must be called before Start. Tests use this to inject a
// deterministic mock in place of real HTTP.
func (p *Pool) SetFetcherFactory(factory func() Fetcher) {
	p.newClient = factory
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Aggregator exposes the run's aggregator for callers that need a
// snapshot outside the hook callbacks (e.g. after cancellation).
func (p *Pool) Aggregator() *aggregate.Aggregator { return p.aggregate }

// TaskID returns the Catalog Task id created by Start, or 0 if no
// Catalog was configured.
func (p *Pool) TaskID() int64 { return p.taskID }

// Start creates the catalog task, seeds the queue, and spawns workers.
// An unparseable seed URL is a fatal setup error: it aborts before any
// worker is spawned and is reported via OnError instead of OnFinished.
func (p *Pool) Start(ctx context.Context) {
	if _, err := url.Parse(p.cfg.SeedURL); err != nil || p.cfg.SeedURL == "" {
		if p.hooks.OnError != nil {
			p.hooks.OnError(fmt.Sprintf("invalid seed url %q: %v", p.cfg.SeedURL, err))
		}
		close(p.done)
		return
	}

	if p.catalog != nil {
		id, err := p.catalog.CreateTask(p.cfg.SeedURL, p.cfg.SavePath)
		if err != nil {
			p.logf("failed to create catalog task: %v", err)
		}
		p.taskID = id
		if err := p.catalog.UpdateTaskStatus(p.taskID, models.TaskScanning, false); err != nil {
			p.logf("failed to mark task scanning: %v", err)
		}
	}

	p.queue.Put(models.CrawlTask{ID: uuid.NewString(), URL: p.cfg.SeedURL, Depth: 1, Priority: models.PriorityHigh})

	p.monitor.StartMonitoring(p.cfg.AdaptiveInterval)
	if p.cfg.AdaptiveEnabled {
		go p.adaptiveLoop(ctx)
	}

	for i := 0; i < p.cfg.Workers; i++ {
		p.spawnWorker(ctx)
	}
}

// Wait blocks until the run reaches a terminal state (finished or
// cancelled).
func (p *Pool) Wait() {
	<-p.done
}

// Cancel requests cooperative shutdown: sets the stop flag and drops
// queued-but-unstarted work.
func (p *Pool) Cancel() {
	p.stopFlag.Store(true)
	p.queue.Clear()
	p.queue.Close()

	go func() {
		p.wg.Wait()
		p.finishOnce.Do(func() {
			if p.catalog != nil {
				p.catalog.UpdateTaskStatus(p.taskID, models.TaskCancelled, true)
			}
			p.monitor.StopMonitoring()
			close(p.done)
		})
	}()
}

func (p *Pool) spawnWorker(ctx context.Context) {
	p.numWorkers.Add(1)
	p.wg.Add(1)
	go p.workerLoop(ctx)
}

func (p *Pool) adaptiveLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.AdaptiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-ticker.C:
			if p.stopFlag.Load() {
				return
			}
			current := int(p.numWorkers.Load())
			if current >= maxWorkers {
				continue
			}
			if p.queue.Stats().Unfinished <= adaptiveQueueLevel {
				continue
			}
			if ok, reason := p.monitor.CanAddWorkers(); !ok {
				p.logf("adaptive scaling skipped: %s", reason)
				continue
			}

			toAdd := adaptiveGrowthChunk
			if current+toAdd > maxWorkers {
				toAdd = maxWorkers - current
			}
			for i := 0; i < toAdd; i++ {
				p.spawnWorker(ctx)
			}
			p.logf("adaptive concurrency: scaled up to %d workers", current+toAdd)
		}
	}
}

func (p *Pool) logf(format string, args ...any) {
	log.Debug().Msgf(format, args...)
	if p.hooks.OnLog != nil {
		p.hooks.OnLog(fmt.Sprintf(format, args...))
	}
}
