package controller

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/scrapevault/scrapevault/internal/crawl"
	"github.com/scrapevault/scrapevault/internal/fetch"
	"github.com/scrapevault/scrapevault/internal/models"
)

type stubCrawlFetcher struct {
	html  string
	delay time.Duration
}

func (s stubCrawlFetcher) Get(_ context.Context, rawURL string, _ map[string]string, _ bool, _ string) (*fetch.Response, error) {
	time.Sleep(s.delay)
	return &fetch.Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": {"text/html"}},
		Body:       []byte(s.html),
		FinalURL:   rawURL,
	}, nil
}

func waitForEvent(t *testing.T, events <-chan Event, kind EventKind, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case e := <-events:
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %q", kind)
		}
	}
}

func TestStartCrawlReachesScannedThenIdle(t *testing.T) {
	c := New(nil)
	c.SetCrawlFetcherFactory(func() crawl.Fetcher {
		return stubCrawlFetcher{html: `<html><body><div class="content"><p>short</p></div></body></html>`}
	})

	go c.StartCrawl(context.Background(), "http://example.test", 1, "", false, false)

	waitForEvent(t, c.Events(), EventFinished, 5*time.Second)

	deadline := time.Now().Add(time.Second)
	for c.State() != StateIdle && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if c.State() != StateIdle {
		t.Fatalf("expected controller to return to idle, got %q", c.State())
	}
}

func TestStartCrawlRejectsInvalidSeed(t *testing.T) {
	c := New(nil)
	go c.StartCrawl(context.Background(), "://not-a-url", 1, "", false, false)

	e := waitForEvent(t, c.Events(), EventError, 5*time.Second)
	if e.Message == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	c := New(nil)
	c.Cancel()
	c.Cancel()
}

func TestSecondStartWhileActiveIsRejected(t *testing.T) {
	c := New(nil)
	// The slow fetch keeps the one-page crawl in StateCrawling long
	// enough for the poll below to observe it.
	c.SetCrawlFetcherFactory(func() crawl.Fetcher {
		return stubCrawlFetcher{html: `<html><body><div class="content"><p>x</p></div></body></html>`, delay: 500 * time.Millisecond}
	})

	go c.StartCrawl(context.Background(), "http://example.test", 1, "", false, false)

	deadline := time.Now().Add(time.Second)
	for c.State() != StateCrawling && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := c.StartDownload(context.Background(), []models.Category{models.CategoryImages}, t.TempDir(), 1); err == nil {
		t.Fatal("expected an error starting a download while a crawl is active")
	}
}

type stubDownloadFetcher struct{}

func (stubDownloadFetcher) Get(_ context.Context, rawURL string, _ map[string]string, _ bool, _ string) (*fetch.Response, error) {
	return &fetch.Response{StatusCode: 200, Header: http.Header{}, Body: []byte("data"), FinalURL: rawURL}, nil
}

func (stubDownloadFetcher) Head(_ context.Context, rawURL string, _ map[string]string) (*fetch.Response, error) {
	return nil, fmt.Errorf("not found")
}

func TestStartDownloadReachesCompleted(t *testing.T) {
	c := New(nil)
	c.SetDownloadFetcher(stubDownloadFetcher{})

	data := models.ScrapedData{Images: []*models.Resource{
		{URL: "http://x.test/a.jpg", Type: models.ResourceImage},
	}}
	c.mu.Lock()
	c.lastResult = data
	c.mu.Unlock()

	go c.StartDownload(context.Background(), []models.Category{models.CategoryImages}, t.TempDir(), 1)

	e := waitForEvent(t, c.Events(), EventFinished, 5*time.Second)
	if e.Done != 1 || e.Total != 1 {
		t.Fatalf("expected finished(1,1), got finished(%d,%d)", e.Done, e.Total)
	}
}
