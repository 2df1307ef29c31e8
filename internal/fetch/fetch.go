// Package fetch performs HTTP GETs against source sites with retry, backoff
// and per-host rate limiting. It has no side effects beyond the network call.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/corvida/mangrove/internal/config"
)

// ErrKind classifies a fetch failure so callers can decide whether to retry
// or give up.
type ErrKind int

const (
	KindNetwork ErrKind = iota
	KindTimeout
	KindHTTP
	KindTooLarge
)

// Error is the classified failure returned by Fetch after retries exhaust.
type Error struct {
	Kind   ErrKind
	Status int // HTTP status, set when Kind is KindHTTP
	URL    string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("fetch %s: timed out", e.URL)
	case KindHTTP:
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.Status)
	case KindTooLarge:
		return fmt.Sprintf("fetch %s: response exceeds size limit", e.URL)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Permanent reports whether retrying this request can never help. A 4xx
// response is permanent; everything else is worth another attempt.
func (e *Error) Permanent() bool {
	return e.Kind == KindHTTP && e.Status >= 400 && e.Status < 500
}

// Client fetches pages and images from source sites. All requests to the
// same host share a rate limiter so one series cannot hammer a site.
type Client struct {
	http     *http.Client
	cfg      config.IngestConfig
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	headers  map[string]string
}

// NewClient builds a Client from the ingest configuration.
func NewClient(cfg config.IngestConfig) *Client {
	return &Client{
		http:     &http.Client{Timeout: cfg.FetchTimeout},
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
		headers:  make(map[string]string),
	}
}

// SetHeader adds a header to every request (e.g. Referer, which many manga
// CDNs require before serving images).
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		rps := c.cfg.RateLimitRPS
		if rps <= 0 {
			rps = 2
		}
		l = rate.NewLimiter(rate.Limit(rps), 1)
		c.limiters[host] = l
	}
	return l
}

// Fetch GETs rawURL and returns the body. Transport errors, timeouts and 5xx
// responses are retried with exponential backoff and jitter up to the
// configured attempt ceiling; a 4xx response fails immediately. The response
// body is capped at MaxResponseBytes.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &Error{Kind: KindNetwork, URL: rawURL, Err: fmt.Errorf("invalid url")}
	}

	attempts := c.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr *Error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := backoff(c.cfg.RetryBaseDelay, attempt)
			log.Printf("Retrying fetch of %s in %s (attempt %d/%d)", rawURL, delay, attempt+1, attempts)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &Error{Kind: KindTimeout, URL: rawURL, Err: ctx.Err()}
			}
		}

		if err := c.limiter(u.Host).Wait(ctx); err != nil {
			return nil, &Error{Kind: KindTimeout, URL: rawURL, Err: err}
		}

		body, ferr := c.doOnce(ctx, rawURL)
		if ferr == nil {
			return body, nil
		}
		lastErr = ferr
		if ferr.Permanent() || ferr.Kind == KindTooLarge {
			return nil, ferr
		}
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, rawURL string) ([]byte, *Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: rawURL, Err: err}
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		kind := KindNetwork
		var nerr interface{ Timeout() bool }
		if errors.As(err, &nerr) && nerr.Timeout() {
			kind = KindTimeout
		} else if errors.Is(err, context.DeadlineExceeded) {
			kind = KindTimeout
		}
		return nil, &Error{Kind: kind, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: KindHTTP, Status: resp.StatusCode, URL: rawURL}
	}

	limit := c.cfg.MaxResponseBytes
	if limit <= 0 {
		limit = 20 * 1024 * 1024
	}
	if resp.ContentLength > limit {
		return nil, &Error{Kind: KindTooLarge, URL: rawURL}
	}

	// Read one byte past the limit so we can tell "exactly at the cap" from
	// "over it" when Content-Length is absent.
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: rawURL, Err: err}
	}
	if int64(len(body)) > limit {
		return nil, &Error{Kind: KindTooLarge, URL: rawURL}
	}
	return body, nil
}

// backoff returns baseDelay * 2^(attempt-1) with up to 50% jitter added.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	d := base << (attempt - 1)
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(d)/2 + 1))
	return d + jitter
}
