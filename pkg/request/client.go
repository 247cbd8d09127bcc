package request

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/smalyshev/TabulistBot/pkg/tracker"
	"github.com/smalyshev/TabulistBot/pkg/version"
)

var (
	defaultUserAgent = fmt.Sprintf("TabulistBot/%s (https://github.com/smalyshev/TabulistBot)", version.Version)
)

// Options tunes a Client. Zero values fall back to defaults.
type Options struct {
	UserAgent   string
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Gap is the pause between two requests to the same provider.
	Gap time.Duration
	// Cookies enables a session cookie jar, needed for logged-in wiki edits.
	Cookies bool
}

// StatusError is returned for non-retryable HTTP error statuses.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error: status %d", e.Code)
}

// Client handles HTTP requests with per-provider queuing, retries and tracking.
type Client struct {
	httpClient  *http.Client
	tracker     *tracker.Tracker
	backoff     *ProviderBackoff
	userAgent   string
	maxAttempts int
	baseDelay   time.Duration
	gap         time.Duration

	// Queues per provider (domain)
	queues map[string]chan job
	mu     sync.Mutex // Protects queues map
}

// job represents a queued request.
type job struct {
	req      *http.Request
	headers  map[string]string
	respChan chan jobResult
}

type jobResult struct {
	body []byte
	err  error
}

// New creates a new Client.
func New(t *tracker.Tracker, opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 300 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.MaxDelay < opts.BaseDelay {
		opts.MaxDelay = 60 * time.Second
	}
	if opts.Gap < 0 {
		opts.Gap = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if t == nil {
		t = tracker.New()
	}

	httpClient := &http.Client{Timeout: opts.Timeout}
	if opts.Cookies {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}

	return &Client{
		httpClient:  httpClient,
		tracker:     t,
		backoff:     NewProviderBackoff(opts.BaseDelay, opts.MaxDelay),
		userAgent:   opts.UserAgent,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		gap:         opts.Gap,
		queues:      make(map[string]chan job),
	}, nil
}

// Tracker returns the request statistics collector.
func (c *Client) Tracker() *tracker.Tracker {
	return c.tracker
}

// Get performs a GET request with queuing.
func (c *Client) Get(ctx context.Context, u string) ([]byte, error) {
	return c.GetWithHeaders(ctx, u, nil)
}

// GetWithHeaders performs a GET request with custom headers.
func (c *Client) GetWithHeaders(ctx context.Context, u string, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, u, nil, headers)
}

// Post performs a POST request with queuing.
func (c *Client) Post(ctx context.Context, u string, body []byte, contentType string) ([]byte, error) {
	return c.PostWithHeaders(ctx, u, body, map[string]string{"Content-Type": contentType})
}

// PostForm posts url-encoded form values.
func (c *Client) PostForm(ctx context.Context, u string, form url.Values, headers map[string]string) ([]byte, error) {
	h := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	for k, v := range headers {
		h[k] = v
	}
	return c.PostWithHeaders(ctx, u, []byte(form.Encode()), h)
}

// PostWithHeaders performs a POST request with custom headers and queuing.
func (c *Client) PostWithHeaders(ctx context.Context, u string, body []byte, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, u, body, headers)
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, headers map[string]string) ([]byte, error) {
	parsedURL, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	provider := normalizeProvider(parsedURL.Host)

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	respChan := make(chan jobResult, 1)
	c.dispatch(provider, job{req: req, headers: headers, respChan: respChan})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-respChan:
		return res.body, res.err
	}
}

func normalizeProvider(host string) string {
	host = strings.ToLower(host)
	// The query service has its own rate limits, separate from the wikidata API
	if host == "query.wikidata.org" {
		return "wdqs"
	}
	if strings.HasSuffix(host, ".wikidata.org") || host == "wikidata.org" {
		return "wikidata"
	}
	if strings.HasSuffix(host, ".wikimedia.org") {
		return "wikimedia"
	}
	if strings.HasSuffix(host, ".wikipedia.org") || host == "wikipedia.org" {
		return "wikipedia"
	}
	return host
}

// dispatch sends the job to the provider's queue, creating the queue/worker if needed.
func (c *Client) dispatch(provider string, j job) {
	c.mu.Lock()
	q, ok := c.queues[provider]
	if !ok {
		q = make(chan job, 100)
		c.queues[provider] = q
		go c.worker(provider, q)
	}
	c.mu.Unlock()

	// Blocks if the queue is full, throttling the caller
	select {
	case q <- j:
	case <-j.req.Context().Done():
		j.respChan <- jobResult{err: j.req.Context().Err()}
	}
}

// worker processes requests for a specific provider sequentially.
func (c *Client) worker(provider string, q <-chan job) {
	for j := range q {
		ctx := j.req.Context()
		if ctx.Err() != nil {
			slog.Warn("Job dropped from queue (context expired)", "provider", provider, "error", ctx.Err())
			j.respChan <- jobResult{err: ctx.Err()}
			continue
		}

		if err := c.backoff.Wait(ctx, provider); err != nil {
			j.respChan <- jobResult{err: err}
			continue
		}

		j.req.Header.Set("User-Agent", c.userAgent)
		for k, v := range j.headers {
			j.req.Header.Set(k, v)
		}

		body, err := c.executeWithBackoff(provider, j.req)

		if err == nil {
			c.tracker.TrackAPISuccess(provider)
			c.backoff.RecordSuccess(provider)
		} else {
			c.tracker.TrackAPIFailure(provider)
		}

		j.respChan <- jobResult{body: body, err: err}

		if c.gap > 0 {
			time.Sleep(c.gap)
		}
	}
}

// executeWithBackoff attempts the request with exponential backoff on retryable errors.
func (c *Client) executeWithBackoff(provider string, req *http.Request) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
		if attempt > 0 {
			c.tracker.TrackRetry(provider)
			if err := rewind(req); err != nil {
				return nil, err
			}
		}

		slog.Debug("Network Request", "host", req.URL.Host, "path", req.URL.Path, "attempt", attempt+1)
		resp, err := c.httpClient.Do(req)

		if err != nil {
			if req.Context().Err() != nil {
				return nil, req.Context().Err()
			}
			slog.Warn("Request failed, retrying", "url", req.URL, "attempt", attempt+1, "error", err)
			lastErr = err
			if err := c.sleep(req.Context(), c.delay(attempt, "")); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode < 600) {
			retryAfter := resp.Header.Get("Retry-After")
			resp.Body.Close()
			slog.Warn("API Backoff", "status", resp.StatusCode, "url", req.URL, "attempt", attempt+1)
			c.backoff.RecordFailure(provider)
			lastErr = &StatusError{Code: resp.StatusCode, URL: req.URL.String()}
			if err := c.sleep(req.Context(), c.delay(attempt, retryAfter)); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, &StatusError{Code: resp.StatusCode, URL: req.URL.String()}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// delay is the exponential backoff for attempt, or the server's Retry-After if longer.
func (c *Client) delay(attempt int, retryAfter string) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt))) * c.baseDelay
	if secs, err := strconv.Atoi(retryAfter); err == nil && time.Duration(secs)*time.Second > d {
		d = time.Duration(secs) * time.Second
	}
	return d
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// rewind resets the request body for another attempt.
func rewind(req *http.Request) error {
	if req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to rewind request body: %w", err)
	}
	req.Body = body
	return nil
}
