package aggregate

import (
	"sync"
	"testing"

	"github.com/scrapevault/scrapevault/internal/models"
)

func TestAddDeduplicatesWithinCategory(t *testing.T) {
	a := New("http://example.test/")
	a.Add(&models.Resource{URL: "http://example.test/a.jpg", Type: models.ResourceImage})
	a.Add(&models.Resource{URL: "http://example.test/a.jpg", Type: models.ResourceImage})
	a.Add(&models.Resource{URL: "http://example.test/b.jpg", Type: models.ResourceImage})

	snap := a.Snapshot()
	if len(snap.Images) != 2 {
		t.Fatalf("expected 2 unique images, got %d", len(snap.Images))
	}
}

func TestAddClassifiesHLSAndText(t *testing.T) {
	a := New("http://example.test/")
	a.Add(&models.Resource{URL: "http://example.test/stream.m3u8", Type: models.ResourceHLSPlaylist})
	a.Add(&models.Resource{Content: "inline quote", Type: models.ResourceRichText})
	a.Add(&models.Resource{Content: "another inline quote", Type: models.ResourceRichText})

	snap := a.Snapshot()
	if len(snap.HLSPlaylists) != 1 {
		t.Fatalf("expected 1 hls playlist, got %d", len(snap.HLSPlaylists))
	}
	if len(snap.Documents) != 2 {
		t.Fatalf("expected 2 documents (inline rich_text), got %d", len(snap.Documents))
	}
}

func TestInlineResourcesAreNeverDeduplicated(t *testing.T) {
	a := New("http://example.test/")
	a.Add(&models.Resource{Content: "same text", Type: models.ResourceText})
	a.Add(&models.Resource{Content: "same text", Type: models.ResourceText})

	snap := a.Snapshot()
	if len(snap.Documents) != 2 {
		t.Fatalf("expected both url-less resources to pass through, got %d", len(snap.Documents))
	}
}

func TestConcurrentAddIsSafe(t *testing.T) {
	a := New("http://example.test/")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a.Add(&models.Resource{URL: "http://example.test/img.jpg", Type: models.ResourceImage})
		}(i)
	}
	wg.Wait()

	snap := a.Snapshot()
	if len(snap.Images) != 1 {
		t.Fatalf("expected dedup to collapse concurrent adds to 1, got %d", len(snap.Images))
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	a := New("http://example.test/")
	a.Add(&models.Resource{URL: "http://example.test/a.jpg", Type: models.ResourceImage})

	snap := a.Snapshot()
	snap.Images[0].Status = models.ResourceStatusCompleted

	snap2 := a.Snapshot()
	if snap2.Images[0].Status == models.ResourceStatusCompleted {
		t.Fatal("mutating a snapshot should not affect the aggregator's internal state")
	}
}
