package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/scrapevault/scrapevault/internal/models"
)

func TestExtractJSONContentType(t *testing.T) {
	e := New()
	result, err := e.Extract([]byte(`{"ua":"X"}`), "application/json", "http://example.test/seed", 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Resources) != 1 {
		t.Fatalf("expected exactly one resource, got %d", len(result.Resources))
	}
	r := result.Resources[0]
	if r.Type != models.ResourceJSON {
		t.Fatalf("expected json type, got %s", r.Type)
	}
	if !strings.HasPrefix(r.Content, "{") {
		t.Fatalf("expected content to start with '{', got %q", r.Content)
	}
}

func TestExtractMediaFromMainBlock(t *testing.T) {
	html := `<html><body>
		<div class="sidebar"><p>ignore this filler text that is not the point</p></div>
		<div class="content">
			<h1>Title</h1>
			<p>Some long enough paragraph text to push the content score up nicely here.</p>
			<img src="/a.jpg" width="800" height="600">
			<img src="/b.jpg" width="800" height="600">
			<video src="/clip.mp4"></video>
			<a href="/stream.m3u8">watch</a>
		</div>
	</body></html>`

	e := New()
	result, err := e.Extract([]byte(html), "text/html", "http://example.test/page", 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var images, videos, hls int
	for _, r := range result.Resources {
		switch r.Type {
		case models.ResourceImage:
			images++
		case models.ResourceVideo:
			videos++
		case models.ResourceHLSPlaylist:
			hls++
		}
	}
	if images != 2 {
		t.Errorf("expected 2 images, got %d", images)
	}
	if videos != 1 {
		t.Errorf("expected 1 video, got %d", videos)
	}
	if hls != 1 {
		t.Errorf("expected 1 hls playlist, got %d", hls)
	}
}

func TestExtractQuotes(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`<html><body><div class="content">`)
	for i := 0; i < 10; i++ {
		sb.WriteString(`<div class="quote">
			<span class="text">Some quote text</span>
			<small class="author">Author Name</small>
			<div class="tags"><a class="tag">wisdom</a></div>
		</div>`)
	}
	sb.WriteString(`</div>
		<li class="next"><a href="/page/2/">Next</a></li>
	</body></html>`)

	e := New()
	result, err := e.Extract([]byte(sb.String()), "text/html", "http://example.test/page/1/", 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var richText int
	for _, r := range result.Resources {
		if r.Type == models.ResourceRichText {
			richText++
		}
	}
	if richText != 10 {
		t.Fatalf("expected 10 rich_text resources, got %d", richText)
	}
	if len(result.Links) != 1 || !strings.Contains(result.Links[0], "/page/2/") {
		t.Fatalf("expected pagination link to /page/2/, got %v", result.Links)
	}
}

func TestMainContentScoringPrefersContentOverSidebar(t *testing.T) {
	equalText := "This block has exactly the same filler text as the other one does right here today."
	html := `<html><body>
		<div class="content"><p>` + equalText + `</p></div>
		<div class="sidebar"><p>` + equalText + `</p></div>
	</body></html>`

	e := New()
	result, err := e.Extract([]byte(html), "text/html", "http://example.test/", 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected a result")
	}

	// The .content div scores +10 (class) +2 (<p>) and the .sidebar div
	// -20 +2, so scoring must pick the .content block.
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if class, _ := selectMainContent(doc).Attr("class"); class != "content" {
		t.Fatalf("expected the .content block to be selected, got class %q", class)
	}
}

func TestExtractArticleSelectsItselfNotJustDescendants(t *testing.T) {
	html := `<html><head><title>My Post</title></head><body>
		<div class="sidebar"><p>ignore this filler text that is not the point here</p></div>
		<article class="post-content">
			<h1>My Post</h1>
			<p>` + strings.Repeat("A long enough paragraph of real article body text. ", 5) + `</p>
		</article>
	</body></html>`

	e := New()
	result, err := e.Extract([]byte(html), "text/html", "http://example.test/post", 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var found bool
	for _, r := range result.Resources {
		if r.Type == models.ResourceText && strings.Contains(r.Content, "real article body text") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected article text to be extracted when the selected block is the <article> itself")
	}
}

func TestExtractNamedContentSelectsItselfNotJustDescendants(t *testing.T) {
	html := `<html><head><title>Docs</title></head><body>
		<div class="sidebar"><p>ignore this filler text that is not the point here</p></div>
		<div id="content">
			<h1>Docs</h1>
			<p>` + strings.Repeat("Enough named-content text to clear the length threshold. ", 6) + `</p>
		</div>
	</body></html>`

	e := New()
	result, err := e.Extract([]byte(html), "text/html", "http://example.test/docs", 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var found bool
	for _, r := range result.Resources {
		if r.Type == models.ResourceText && strings.Contains(r.Content, "named-content text") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected #content text to be extracted when the selected block is the #content element itself")
	}
}

func TestPaginationDiscoveryIsIdempotent(t *testing.T) {
	html := `<html><body>
		<a rel="next" href="/p/2">Next</a>
		<a class="pagination-next" href="/p/2">Next page</a>
	</body></html>`

	e := New()
	first, err := e.Extract([]byte(html), "text/html", "http://example.test/p/1", 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := e.Extract([]byte(html), "text/html", "http://example.test/p/1", 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.Links) != len(second.Links) {
		t.Fatalf("expected idempotent pagination discovery, got %v vs %v", first.Links, second.Links)
	}
	if len(first.Links) != 1 {
		t.Fatalf("expected a single deduplicated link, got %v", first.Links)
	}
}

func TestScriptSniffingInitialState(t *testing.T) {
	html := `<html><body><script>
		window.__INITIAL_STATE__ = {"user": {"id": 42}};
	</script></body></html>`

	e := New()
	result, err := e.Extract([]byte(html), "text/html", "http://example.test/", 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var found bool
	for _, r := range result.Resources {
		if r.Type == models.ResourceJSON && r.Metadata["source"] == "script_sniffing" {
			found = true
			if !strings.Contains(r.Content, "42") {
				t.Errorf("expected sniffed JSON to contain the source value, got %q", r.Content)
			}
		}
	}
	if !found {
		t.Fatal("expected a script_sniffing json resource")
	}
}
