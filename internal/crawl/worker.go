package crawl

import (
	"context"
	"net/url"

	"github.com/google/uuid"
	"github.com/scrapevault/scrapevault/internal/models"
)

func (p *Pool) workerLoop(ctx context.Context) {
	defer p.wg.Done()

	client := p.newClient()

	for {
		if p.stopFlag.Load() {
			return
		}

		task, ok := p.queue.Get(popTimeout)
		if !ok {
			if p.stopFlag.Load() {
				return
			}
			continue
		}

		success := p.processTask(ctx, client, task)
		p.queue.TaskDone(success)

		stats := p.queue.Stats()
		if p.hooks.OnProgress != nil {
			p.hooks.OnProgress(stats.Completed+stats.Failed, stats.TotalQueued)
		}

		p.maybeFinish()
	}
}

func (p *Pool) processTask(ctx context.Context, client Fetcher, task models.CrawlTask) bool {
	resp, err := client.Get(ctx, task.URL, nil, true, task.Referer)
	if err != nil {
		p.logf("fetch failed for %s (task %s): %v", task.URL, task.ID, err)
		return false
	}

	result, err := p.extractor.Extract(resp.Body, resp.Header.Get("Content-Type"), resp.FinalURL, resp.StatusCode)
	if err != nil {
		// A single malformed page does not abort the run: treat it as
		// zero resources/links but still report task_done(true).
		p.logf("extraction failed for %s (task %s): %v", task.URL, task.ID, err)
		return true
	}

	p.aggregate.AddAll(result.Resources)
	if p.hooks.OnResultsUpdated != nil {
		p.hooks.OnResultsUpdated(p.aggregate.Snapshot())
	}

	if task.Depth < p.cfg.MaxDepth {
		for _, link := range result.Links {
			if !p.allowedHost(link) {
				continue
			}
			p.queue.Put(models.CrawlTask{
				ID:       uuid.NewString(),
				URL:      link,
				Depth:    task.Depth + 1,
				Priority: models.PriorityNormal,
				Referer:  task.URL,
			})
		}
	}

	return true
}

func (p *Pool) allowedHost(rawURL string) bool {
	if p.cfg.AllowCrossDomain || p.seedHost == "" {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Host == p.seedHost
}

// maybeFinish runs the completion check: once the queue is empty and
// nothing is in flight, persist the aggregation and signal termination
// exactly once.
func (p *Pool) maybeFinish() {
	if !p.queue.IsEmpty() || p.queue.Unfinished() != 0 {
		return
	}

	p.finishOnce.Do(func() {
		p.stopFlag.Store(true)
		snapshot := p.aggregate.Snapshot()
		total := len(snapshot.Images) + len(snapshot.Videos) + len(snapshot.Audios) +
			len(snapshot.HLSPlaylists) + len(snapshot.Documents)

		if p.catalog != nil {
			p.persistResources(snapshot)
			p.catalog.UpdateTaskProgress(p.taskID, 0, total)
			p.catalog.UpdateTaskStatus(p.taskID, models.TaskScanned, true)
		}
		if p.hooks.OnFinished != nil {
			p.hooks.OnFinished(snapshot)
		}

		p.monitor.StopMonitoring()
		p.queue.Close()
		close(p.done)
	})
}

// persistResources bulk-inserts the resources in snapshot as pending
// Catalog Resource rows, so a later "download --task" run (or
// "history") has something to read without having re-crawled. The
// catalog keeps one row per (task_id, url), so URL-less inline
// resources share the empty URL and only the first of them gets a row.
func (p *Pool) persistResources(snapshot models.ScrapedData) {
	for _, category := range models.AllCategories {
		for _, r := range snapshot.List(category) {
			record := models.ResourceRecord{
				TaskID:   p.taskID,
				URL:      r.URL,
				Type:     r.Type,
				Filename: models.DeriveFilename(r),
				Status:   models.ResourceStatusPending,
			}
			if _, err := p.catalog.AddResource(p.taskID, record); err != nil {
				p.logf("failed to persist resource %s: %v", r.URL, err)
			}
		}
	}
}
