// Package fetch implements FetchClient, the resilient HTTP session
// used by both the crawl and download pipelines: a raw *http.Client
// with its own transport, whose response bodies are decompressed here
// (brotli/gzip/deflate), wrapped in retry, per-request UA rotation, and a login/CSRF flow
// that an off-the-shelf collector library would not expose as
// separately testable pieces.
package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog/log"
	"github.com/scrapevault/scrapevault/internal/models"
	"golang.org/x/net/proxy"
)

const (
	defaultMaxRetries     = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRequestTimeout = 30 * time.Second
	defaultHeadTimeout    = 5 * time.Second
)

// Options configures a Client's timeouts, retry behavior, UA rotation
// default, and proxy. The zero value of any numeric field falls back
// to DefaultOptions' value.
type Options struct {
	RequestTimeout  time.Duration
	HeadTimeout     time.Duration
	MaxRetries      int
	RetryBaseDelay  time.Duration
	RotateUserAgent bool
	ProxyURL        string
}

// DefaultOptions is what New() builds a Client with.
func DefaultOptions() Options {
	return Options{
		RequestTimeout:  defaultRequestTimeout,
		HeadTimeout:     defaultHeadTimeout,
		MaxRetries:      defaultMaxRetries,
		RetryBaseDelay:  defaultRetryBaseDelay,
		RotateUserAgent: true,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = d.RequestTimeout
	}
	if o.HeadTimeout <= 0 {
		o.HeadTimeout = d.HeadTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = d.MaxRetries
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = d.RetryBaseDelay
	}
	return o
}

var retriableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Response is a fully-drained HTTP response: headers and body are read
// eagerly (and decompressed) so callers never have to manage a live
// connection across retries or goroutines.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	FinalURL   string
}

// SuccessPredicate overrides the default login-success heuristic for
// callers that need more than the fragile string-matching default.
type SuccessPredicate func(resp *Response) bool

// Client is one worker's HTTP session: its own cookie jar and
// transport, never shared with another worker's connection pool.
type Client struct {
	http       *http.Client
	transport  *http.Transport
	rotator    userAgentRotator
	opts       Options
	LoginCheck SuccessPredicate
}

// New builds a Client with its own cookie jar and a transport
// configured for keep-alive and redirect-following, tuned with
// DefaultOptions.
func New() *Client {
	return NewWithOptions(DefaultOptions())
}

// NewWithOptions builds a Client tuned by opts; zero-valued numeric
// fields fall back to DefaultOptions, and a non-empty ProxyURL is
// applied immediately (a malformed one is logged and ignored rather
// than failing construction).
func NewWithOptions(opts Options) *Client {
	opts = opts.withDefaults()

	jar, _ := cookiejar.New(nil)
	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
	}
	c := &Client{
		http: &http.Client{
			Jar:       jar,
			Transport: transport,
			Timeout:   opts.RequestTimeout,
		},
		transport: transport,
		opts:      opts,
	}
	if opts.ProxyURL != "" {
		if err := c.SetProxy(opts.ProxyURL); err != nil {
			log.Error().Err(err).Str("proxy_url", opts.ProxyURL).Msg("fetch: ignoring unusable proxy url")
		}
	}
	return c
}

// SetProxy configures the client's transport to dial through url,
// supporting http, https and socks5 schemes.
func (c *Client) SetProxy(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return models.NewError(models.KindInvalidInput, "fetch.SetProxy", rawURL, err)
	}

	switch parsed.Scheme {
	case "http", "https":
		c.transport.Proxy = http.ProxyURL(parsed)
	case "socks5":
		dialer, err := proxy.FromURL(parsed, proxy.Direct)
		if err != nil {
			return models.NewError(models.KindInvalidInput, "fetch.SetProxy", rawURL, err)
		}
		c.transport.Proxy = nil
		c.transport.Dial = dialer.Dial
	default:
		return models.NewError(models.KindInvalidInput, "fetch.SetProxy", rawURL, fmt.Errorf("unsupported proxy scheme %q", parsed.Scheme))
	}
	return nil
}

func defaultHeaders(rotateUA bool, rotator *userAgentRotator) http.Header {
	h := http.Header{}
	if rotateUA {
		h.Set("User-Agent", rotator.pick())
	} else {
		h.Set("User-Agent", userAgents[0])
	}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Accept-Encoding", "gzip, deflate")
	h.Set("DNT", "1")
	h.Set("Connection", "keep-alive")
	return h
}

// Get performs an HTTP GET with retry, optional UA rotation, and extra
// headers. rotateUA is further gated by the Client's RotateUserAgent
// option.
func (c *Client) Get(ctx context.Context, rawURL string, extra map[string]string, rotateUA bool, referer string) (*Response, error) {
	return c.doWithRetry(ctx, http.MethodGet, rawURL, nil, extra, rotateUA && c.opts.RotateUserAgent, referer, c.opts.RequestTimeout)
}

// Head performs an HTTP HEAD, used for cached-download skip checks.
func (c *Client) Head(ctx context.Context, rawURL string, extra map[string]string) (*Response, error) {
	return c.doWithRetry(ctx, http.MethodHead, rawURL, nil, extra, false, "", c.opts.HeadTimeout)
}

// Post performs an HTTP POST with either URL-encoded form values or a
// JSON body, depending on which argument is non-nil.
func (c *Client) Post(ctx context.Context, rawURL string, form url.Values, jsonBody any, extra map[string]string) (*Response, error) {
	var body []byte
	contentType := ""
	switch {
	case form != nil:
		body = []byte(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case jsonBody != nil:
		b, err := json.Marshal(jsonBody)
		if err != nil {
			return nil, models.NewError(models.KindInvalidInput, "fetch.Post", rawURL, err)
		}
		body = b
		contentType = "application/json"
	}

	headers := map[string]string{}
	for k, v := range extra {
		headers[k] = v
	}
	if contentType != "" {
		headers["Content-Type"] = contentType
	}

	return c.doWithRetry(ctx, http.MethodPost, rawURL, body, headers, false, "", c.opts.RequestTimeout)
}

func (c *Client) doWithRetry(ctx context.Context, method, rawURL string, body []byte, extra map[string]string, rotateUA bool, referer string, timeout time.Duration) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.opts.RetryBaseDelay * time.Duration(1<<uint(attempt-1)) // base, 2x, 4x, ...
			select {
			case <-ctx.Done():
				return nil, models.NewError(models.KindCancelled, "fetch.doWithRetry", rawURL, ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, retriable, err := c.doOnce(method, rawURL, body, extra, rotateUA, referer, timeout)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retriable {
			break
		}
	}

	return nil, models.NewError(models.KindNetwork, "fetch."+method, rawURL, lastErr)
}

func (c *Client) doOnce(method, rawURL string, body []byte, extra map[string]string, rotateUA bool, referer string, timeout time.Duration) (resp *Response, retriable bool, err error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, rawURL, reader)
	if err != nil {
		return nil, false, err
	}

	req.Header = defaultHeaders(rotateUA, &c.rotator)
	for k, v := range extra {
		req.Header.Set(k, v)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	httpResp, err := c.clientWithTimeout(timeout).Do(req)
	if err != nil {
		// One extra attempt with a freshly rotated UA on transport failure.
		req2, buildErr := http.NewRequest(method, rawURL, bytesReaderOrNil(body))
		if buildErr != nil {
			return nil, true, err
		}
		req2.Header = defaultHeaders(true, &c.rotator)
		for k, v := range extra {
			req2.Header.Set(k, v)
		}
		httpResp, err = c.clientWithTimeout(timeout).Do(req2)
		if err != nil {
			return nil, true, err
		}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, true, err
	}

	decoded, err := decompress(httpResp.Header.Get("Content-Encoding"), raw)
	if err != nil {
		decoded = raw
	}

	finalURL := rawURL
	if httpResp.Request != nil && httpResp.Request.URL != nil {
		finalURL = httpResp.Request.URL.String()
	}

	r := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       decoded,
		FinalURL:   finalURL,
	}

	if retriableStatus[httpResp.StatusCode] {
		return r, true, fmt.Errorf("retriable status %d", httpResp.StatusCode)
	}
	if httpResp.StatusCode >= 400 {
		return r, false, models.NewError(models.KindHTTP, "fetch.doOnce", rawURL, fmt.Errorf("status %d", httpResp.StatusCode))
	}

	return r, false, nil
}

func bytesReaderOrNil(body []byte) io.Reader {
	if body == nil {
		return nil
	}
	return bytes.NewReader(body)
}

func (c *Client) clientWithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{
		Jar:           c.http.Jar,
		Transport:     c.transport,
		Timeout:       timeout,
		CheckRedirect: nil, // default: follow redirects
	}
}

// decompress undoes Content-Encoding: gzip, deflate, or br.
func decompress(encoding string, body []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "deflate":
		r := flate.NewReader(bytes.NewReader(body))
		defer r.Close()
		return io.ReadAll(r)
	case "br":
		return io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
	default:
		return body, nil
	}
}

// ContentLength parses the Content-Length header, returning -1 when
// absent or malformed.
func (r *Response) ContentLength() int64 {
	v := r.Header.Get("Content-Length")
	if v == "" {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return -1
	}
	return n
}
