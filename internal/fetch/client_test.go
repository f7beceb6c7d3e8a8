package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestGetDecompressesGzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte("hello world"))
	gz.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	c := New()
	resp, err := c.Get(context.Background(), srv.URL, nil, false, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "hello world" {
		t.Fatalf("expected decompressed body, got %q", resp.Body)
	}
}

func TestGetRetriesOnServerError(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New()
	resp, err := c.Get(context.Background(), srv.URL, nil, false, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Fatalf("expected eventual success body, got %q", resp.Body)
	}
	if atomic.LoadInt32(&attempts) < 2 {
		t.Fatalf("expected at least 2 attempts, got %d", attempts)
	}
}

func TestGetNonRetriableStatusFailsFast(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New()
	_, err := c.Get(context.Background(), srv.URL, nil, false, "")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Fatalf("expected a single attempt for a non-retriable status, got %d", attempts)
	}
}

func TestUserAgentRotatorCyclesPool(t *testing.T) {
	var r userAgentRotator
	seen := map[string]bool{}
	for i := 0; i < len(userAgents)*2; i++ {
		seen[r.pick()] = true
	}
	if len(seen) != len(userAgents) {
		t.Fatalf("expected to cycle through all %d UAs, saw %d", len(userAgents), len(seen))
	}
}

func TestSetProxyRejectsUnknownScheme(t *testing.T) {
	c := New()
	if err := c.SetProxy("ftp://example.com"); err == nil {
		t.Fatal("expected error for unsupported proxy scheme")
	}
}
