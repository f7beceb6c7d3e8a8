package crawl

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/scrapevault/scrapevault/internal/fetch"
	"github.com/scrapevault/scrapevault/internal/models"
)

// mockPage is one page in a deterministic site graph used to drive
// CrawlPool without touching real HTTP.
type mockPage struct {
	html     string
	children []string
}

type mockFetcher struct {
	mu    sync.Mutex
	pages map[string]mockPage
	hits  int
}

func (m *mockFetcher) Get(_ context.Context, rawURL string, _ map[string]string, _ bool, _ string) (*fetch.Response, error) {
	m.mu.Lock()
	m.hits++
	m.mu.Unlock()

	page, ok := m.pages[rawURL]
	if !ok {
		return nil, fmt.Errorf("mock: no page registered for %s", rawURL)
	}
	return &fetch.Response{
		StatusCode: 200,
		Header:     map[string][]string{"Content-Type": {"text/html"}},
		Body:       []byte(page.html),
		FinalURL:   rawURL,
	}, nil
}

func linkedPage(children ...string) mockPage {
	html := `<html><body><div class="content">
		<div class="quote">
			<span class="text">a fixed quote used to make crawl output deterministic</span>
			<small class="author">Nobody</small>
		</div>`
	for _, c := range children {
		html += fmt.Sprintf(`<a href="%s">next</a>`, c)
	}
	html += `</div></body></html>`
	return mockPage{html: html, children: children}
}

func buildFanoutSite(seed string, fanout int) map[string]mockPage {
	children := make([]string, fanout)
	for i := range children {
		children[i] = fmt.Sprintf("%s/child%d", seed, i)
	}
	pages := map[string]mockPage{seed: linkedPage(children...)}
	for _, c := range children {
		pages[c] = linkedPage()
	}
	return pages
}

func runCrawl(t *testing.T, pages map[string]mockPage, seed string, workers, maxDepth int) models.ScrapedData {
	t.Helper()
	mf := &mockFetcher{pages: pages}

	pool := New(Config{
		SeedURL:  seed,
		MaxDepth: maxDepth,
		Workers:  workers,
	}, nil, Hooks{})
	pool.SetFetcherFactory(func() Fetcher { return mf })

	pool.Start(context.Background())

	select {
	case <-pool.done:
	case <-time.After(5 * time.Second):
		t.Fatal("crawl did not finish within timeout")
	}

	return pool.Aggregator().Snapshot()
}

func TestWorkerCountInvariance(t *testing.T) {
	seed := "http://example.test"
	pages := buildFanoutSite(seed, 10)

	single := runCrawl(t, pages, seed, 1, 2)
	many := runCrawl(t, pages, seed, 20, 2)

	if len(single.Documents) != len(many.Documents) {
		t.Fatalf("expected same document count regardless of worker count: 1worker=%d 20workers=%d",
			len(single.Documents), len(many.Documents))
	}
}

func TestDepthGate(t *testing.T) {
	seed := "http://example.test"
	pages := buildFanoutSite(seed, 3)

	mf := &mockFetcher{pages: pages}
	pool := New(Config{SeedURL: seed, MaxDepth: 1, Workers: 2}, nil, Hooks{})
	pool.SetFetcherFactory(func() Fetcher { return mf })
	pool.Start(context.Background())

	select {
	case <-pool.done:
	case <-time.After(5 * time.Second):
		t.Fatal("crawl did not finish")
	}

	mf.mu.Lock()
	hits := mf.hits
	mf.mu.Unlock()

	if hits != 1 {
		t.Fatalf("max_depth=1 should fetch only the seed, got %d fetches", hits)
	}
}

func TestCancelDuringCrawl(t *testing.T) {
	seed := "http://example.test"
	pages := buildFanoutSite(seed, 200)

	mf := &mockFetcher{pages: pages}
	pool := New(Config{SeedURL: seed, MaxDepth: 2, Workers: 2}, nil, Hooks{})
	pool.SetFetcherFactory(func() Fetcher { return mf })
	pool.Start(context.Background())

	pool.Cancel()

	select {
	case <-pool.done:
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not complete within timeout")
	}
}
