package download

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/scrapevault/scrapevault/internal/fetch"
	"github.com/scrapevault/scrapevault/internal/models"
)

type mockFetchItem struct {
	body       []byte
	headLength int64
	failAlways bool
	delay      time.Duration
}

type mockFetcher struct {
	mu    sync.Mutex
	items map[string]mockFetchItem
	gets  int
}

func (m *mockFetcher) Get(_ context.Context, rawURL string, _ map[string]string, _ bool, _ string) (*fetch.Response, error) {
	m.mu.Lock()
	m.gets++
	m.mu.Unlock()

	it, ok := m.items[rawURL]
	if !ok || it.failAlways {
		return nil, models.NewError(models.KindNetwork, "mock.Get", rawURL, fmt.Errorf("connection reset by peer"))
	}
	time.Sleep(it.delay)
	return &fetch.Response{
		StatusCode: 200,
		Header:     http.Header{},
		Body:       it.body,
		FinalURL:   rawURL,
	}, nil
}

func (m *mockFetcher) Head(_ context.Context, rawURL string, _ map[string]string) (*fetch.Response, error) {
	it, ok := m.items[rawURL]
	if !ok {
		return nil, models.NewError(models.KindNetwork, "mock.Head", rawURL, fmt.Errorf("not found"))
	}
	h := http.Header{}
	h.Set("Content-Length", fmt.Sprintf("%d", it.headLength))
	return &fetch.Response{StatusCode: 200, Header: h, FinalURL: rawURL}, nil
}

type mockCatalog struct {
	mu      sync.Mutex
	records []models.ResourceRecord
	seen    map[string]bool
	status  models.TaskStatus
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{seen: map[string]bool{}}
}

func (c *mockCatalog) AddResource(taskID int64, r models.ResourceRecord) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := fmt.Sprintf("%d|%s", taskID, r.URL)
	if c.seen[key] {
		return -1, nil
	}
	c.seen[key] = true
	c.records = append(c.records, r)
	return int64(len(c.records)), nil
}

func (c *mockCatalog) UpdateResourceStatus(taskID int64, url string, status models.ResourceStatus, localPath string, size int64, errMsg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.records {
		if c.records[i].URL == url {
			c.records[i].Status = status
			c.records[i].LocalPath = localPath
			c.records[i].FileSize = size
			c.records[i].Error = errMsg
		}
	}
	return nil
}

func (c *mockCatalog) UpdateTaskStatus(id int64, status models.TaskStatus, finished bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
	return nil
}

func (c *mockCatalog) find(url string) (models.ResourceRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.records {
		if r.URL == url {
			return r, true
		}
	}
	return models.ResourceRecord{}, false
}

func waitForDone(t *testing.T, p *Pool) {
	t.Helper()
	select {
	case <-p.done:
	case <-time.After(20 * time.Second):
		t.Fatal("download did not finish within timeout")
	}
}

// S4: resource #2 fails every attempt with a connect-reset error.
func TestDownloadFailedItemLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	mf := &mockFetcher{items: map[string]mockFetchItem{
		"http://x.test/a.jpg": {body: []byte("AAAA")},
		"http://x.test/c.jpg": {body: []byte("CCCC")},
	}}
	cat := newMockCatalog()

	data := models.ScrapedData{Images: []*models.Resource{
		{URL: "http://x.test/a.jpg", Type: models.ResourceImage},
		{URL: "http://x.test/b.jpg", Type: models.ResourceImage},
		{URL: "http://x.test/c.jpg", Type: models.ResourceImage},
	}}

	var finishedSuccess, finishedTotal int
	pool := New(Config{OutputDir: dir, Workers: 1, Categories: []models.Category{models.CategoryImages}},
		mf, cat, 1, Hooks{OnFinished: func(s, tot int) { finishedSuccess, finishedTotal = s, tot }})
	pool.Start(context.Background(), data)
	waitForDone(t, pool)

	if finishedSuccess != 2 || finishedTotal != 3 {
		t.Fatalf("expected finished(2,3), got finished(%d,%d)", finishedSuccess, finishedTotal)
	}

	rec, ok := cat.find("http://x.test/b.jpg")
	if !ok || rec.Status != models.ResourceStatusFailed || rec.Error == "" {
		t.Fatalf("expected failed record with error for b.jpg, got %+v ok=%v", rec, ok)
	}

	if _, err := os.Stat(filepath.Join(dir, "b.jpg.tmp")); err == nil {
		t.Fatal("expected no leftover .tmp file for failed item")
	}
}

// S5: the final file already exists with a size matching the HEAD
// content-length; no body request should be made.
func TestDownloadSkipsCachedFile(t *testing.T) {
	dir := t.TempDir()
	existing := []byte("cached-bytes")
	path := filepath.Join(dir, "cached.jpg")
	if err := os.WriteFile(path, existing, 0o644); err != nil {
		t.Fatal(err)
	}

	mf := &mockFetcher{items: map[string]mockFetchItem{
		"http://x.test/cached.jpg": {headLength: int64(len(existing))},
	}}
	cat := newMockCatalog()

	data := models.ScrapedData{Images: []*models.Resource{
		{URL: "http://x.test/cached.jpg", Type: models.ResourceImage, Title: "cached"},
	}}

	pool := New(Config{OutputDir: dir, Workers: 1, Categories: []models.Category{models.CategoryImages}},
		mf, cat, 1, Hooks{})
	pool.Start(context.Background(), data)
	waitForDone(t, pool)

	if mf.gets != 0 {
		t.Fatalf("expected no GET requests on cache hit, got %d", mf.gets)
	}

	rec, ok := cat.find("http://x.test/cached.jpg")
	if !ok || rec.Status != models.ResourceStatusCompleted || rec.Error != "Skipped (cached)" {
		t.Fatalf("expected completed/cached record, got %+v ok=%v", rec, ok)
	}

	bytesOnDisk, err := os.ReadFile(path)
	if err != nil || string(bytesOnDisk) != string(existing) {
		t.Fatalf("expected cached file bytes unchanged, got %q err=%v", bytesOnDisk, err)
	}
}

// S6: cancel 50ms into a 100-item download. Each GET takes 5ms, so
// four workers need about 125ms for all items and the run is still
// going when Cancel lands.
func TestCancelDuringDownload(t *testing.T) {
	dir := t.TempDir()
	items := map[string]mockFetchItem{}
	var images []*models.Resource
	for i := 0; i < 100; i++ {
		u := fmt.Sprintf("http://x.test/item%d.jpg", i)
		items[u] = mockFetchItem{body: []byte("data"), delay: 5 * time.Millisecond}
		images = append(images, &models.Resource{URL: u, Type: models.ResourceImage})
	}
	mf := &mockFetcher{items: items}
	cat := newMockCatalog()

	data := models.ScrapedData{Images: images}

	var finishedSuccess, finishedTotal int
	var once sync.Once
	pool := New(Config{OutputDir: dir, Workers: 4, Categories: []models.Category{models.CategoryImages}},
		mf, cat, 1, Hooks{OnFinished: func(s, tot int) {
			once.Do(func() { finishedSuccess, finishedTotal = s, tot })
		}})
	pool.Start(context.Background(), data)

	time.Sleep(50 * time.Millisecond)
	pool.Cancel()

	waitForDone(t, pool)

	if finishedTotal != 100 {
		t.Fatalf("expected finished total=100, got %d", finishedTotal)
	}
	if finishedSuccess < 0 || finishedSuccess > 100 {
		t.Fatalf("expected 0<=k<=100, got %d", finishedSuccess)
	}
	if cat.status != models.TaskCancelled {
		t.Fatalf("expected task status cancelled, got %q", cat.status)
	}
}
