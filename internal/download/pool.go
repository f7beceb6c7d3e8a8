// Package download implements DownloadPool: a bounded worker set that
// pulls a filtered, flattened selection of aggregated Resources and
// writes them to disk with retry, atomic renames, and cache-skip.
package download

import (
	"context"
	"net/url"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scrapevault/scrapevault/internal/fetch"
	"github.com/scrapevault/scrapevault/internal/models"
)

// defaultMaxAttempts is 4: one initial attempt plus three retries.
const (
	defaultMaxAttempts    = 4
	defaultChunkBytes     = 8 * 1024
	defaultRetryBaseDelay = 2 * time.Second
	defaultMinFreeBytes   = 10 * 1024 * 1024
	defaultReserveBytes   = 50 * 1024 * 1024
	defaultCacheSkewBytes = 100
	defaultWorkers        = 5
)

// Fetcher is the subset of fetch.Client a download worker needs.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, headers map[string]string, rotateUA bool, referer string) (*fetch.Response, error)
	Head(ctx context.Context, rawURL string, headers map[string]string) (*fetch.Response, error)
}

// Catalog is the slice of catalog.Catalog DownloadPool needs.
type Catalog interface {
	AddResource(taskID int64, r models.ResourceRecord) (int64, error)
	UpdateResourceStatus(taskID int64, url string, status models.ResourceStatus, localPath string, size int64, errMsg string) error
	UpdateTaskStatus(id int64, status models.TaskStatus, finished bool) error
}

// Hooks lets the Controller observe download activity.
type Hooks struct {
	OnLog      func(msg string)
	OnProgress func(done, total int)
	OnFinished func(success, total int)
}

// Config controls one download run. MaxAttempts, RetryBaseDelay,
// MinFreeBytes, ReserveBytes, ChunkBytes and CacheSkewBytes are
// deployment tuning knobs; a zero value for any of them falls back to
// the matching defaultX constant.
type Config struct {
	OutputDir  string
	Workers    int
	Categories []models.Category

	MaxAttempts    int
	RetryBaseDelay time.Duration
	MinFreeBytes   int64
	ReserveBytes   int64
	ChunkBytes     int
	CacheSkewBytes int64
}

// Pool drives a single download run to completion.
type Pool struct {
	cfg     Config
	fetcher Fetcher
	catalog Catalog
	hooks   Hooks
	taskID  int64

	items chan *models.Resource

	completed atomic.Int32
	failed    atomic.Int32
	total     int

	stopFlag atomic.Bool
	wg       sync.WaitGroup
	done     chan struct{}
}

// New builds a Pool. fetcher and catalog may be shared across runs;
// DownloadPool does not own their lifecycle.
func New(cfg Config, fetcher Fetcher, catalog Catalog, taskID int64, hooks Hooks) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultRetryBaseDelay
	}
	if cfg.MinFreeBytes <= 0 {
		cfg.MinFreeBytes = defaultMinFreeBytes
	}
	if cfg.ReserveBytes <= 0 {
		cfg.ReserveBytes = defaultReserveBytes
	}
	if cfg.ChunkBytes <= 0 {
		cfg.ChunkBytes = defaultChunkBytes
	}
	if cfg.CacheSkewBytes <= 0 {
		cfg.CacheSkewBytes = defaultCacheSkewBytes
	}
	return &Pool{
		cfg:     cfg,
		fetcher: fetcher,
		catalog: catalog,
		taskID:  taskID,
		hooks:   hooks,
		done:    make(chan struct{}),
	}
}

// Start flattens data's selected categories into a work list (union in
// category order, aggregator order within each category) and spawns
// workers to drain it.
func (p *Pool) Start(ctx context.Context, data models.ScrapedData) {
	var flat []*models.Resource
	selected := make(map[models.Category]bool, len(p.cfg.Categories))
	for _, c := range p.cfg.Categories {
		selected[c] = true
	}
	for _, c := range models.AllCategories {
		if !selected[c] {
			continue
		}
		flat = append(flat, data.List(c)...)
	}

	p.total = len(flat)
	p.items = make(chan *models.Resource, len(flat))
	for _, r := range flat {
		p.items <- r
	}
	close(p.items)

	if p.total == 0 {
		p.setTaskStatus(models.TaskCompleted)
		close(p.done)
		if p.hooks.OnFinished != nil {
			p.hooks.OnFinished(0, 0)
		}
		return
	}

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(ctx)
	}

	go func() {
		p.wg.Wait()
		if p.stopFlag.Load() {
			p.setTaskStatus(models.TaskCancelled)
		} else {
			p.setTaskStatus(models.TaskCompleted)
		}
		if p.hooks.OnFinished != nil {
			p.hooks.OnFinished(int(p.completed.Load()), p.total)
		}
		close(p.done)
	}()
}

func (p *Pool) setTaskStatus(status models.TaskStatus) {
	if p.catalog == nil {
		return
	}
	p.catalog.UpdateTaskStatus(p.taskID, status, true)
}

// Wait blocks until the run reaches a terminal state.
func (p *Pool) Wait() {
	<-p.done
}

// Cancel requests cooperative shutdown; queued-but-unstarted items are
// drained without being downloaded. An item already in flight is not
// interrupted: its current fetch and its chunked write run to the end
// (the stop flag is not checked between chunks), and it makes no
// further retry attempts.
func (p *Pool) Cancel() {
	p.stopFlag.Store(true)
}

func (p *Pool) workerLoop(ctx context.Context) {
	defer p.wg.Done()

	for item := range p.items {
		if p.stopFlag.Load() {
			continue
		}

		err := p.downloadItem(ctx, item)
		if err != nil {
			p.failed.Add(1)
			if p.hooks.OnLog != nil {
				p.hooks.OnLog(item.URL + ": " + err.Error())
			}
		} else {
			p.completed.Add(1)
		}

		if p.hooks.OnProgress != nil {
			p.hooks.OnProgress(int(p.completed.Load()+p.failed.Load()), p.total)
		}
	}
}

func targetPath(outputDir, filename string) string {
	return filepath.Join(outputDir, filename)
}

func tempPath(finalPath string) string {
	return finalPath + ".tmp"
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Scheme != "data"
}
