// Package transport implements the HTTP collaborator the rest of the
// downloader treats as an interface: HEAD to probe a resource and ranged
// GET to fetch a byte span, both wrapped with retry and jittered backoff
// on transient failures.
package transport

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"time"
)

// ResourceInfo is what Head reports about a remote resource.
type ResourceInfo struct {
	TotalBytes     int64
	RangeSupported bool
	StatusCode     int
}

// Transport is the HTTP collaborator the Probe, Worker and Sequential
// Downloader depend on. httpTransport below is the default net/http
// implementation; tests and embedders may substitute their own.
//
//go:generate mockgen -source=transport.go -destination=mocks/mock_transport.go -package=mocks
type Transport interface {
	Head(ctx context.Context, url string) (ResourceInfo, error)
	GetRange(ctx context.Context, url string, start, end int64) (*http.Response, error)
	GetFrom(ctx context.Context, url string, start int64) (*http.Response, error)
	Get(ctx context.Context, url string) (*http.Response, error)
}

// Options configures the default Transport implementation.
type Options struct {
	// HeaderTimeout bounds connection setup and response headers for a
	// single attempt. Body streaming is bounded by the caller's context
	// rather than a wall-clock total, so a large transfer is never cut
	// off mid-stream.
	HeaderTimeout time.Duration
	// RetryAttempts is the number of retries after the first attempt.
	RetryAttempts int
	// RetryBackoff is the initial backoff duration.
	RetryBackoff time.Duration
	// RetryMaxBackoff caps the backoff duration.
	RetryMaxBackoff time.Duration
	// MaxIdleConnsPerHost sets connection pooling for the shared client.
	MaxIdleConnsPerHost int
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		HeaderTimeout:       30 * time.Second,
		RetryAttempts:       3,
		RetryBackoff:        time.Second,
		RetryMaxBackoff:     30 * time.Second,
		MaxIdleConnsPerHost: 16,
	}
}

// ErrServerError marks a 5xx response as retryable.
var ErrServerError = errors.New("transport: server error")

// httpTransport is the default net/http-backed Transport.
type httpTransport struct {
	client *http.Client
	opts   Options
}

// New creates a Transport wrapping a shared, connection-pooled
// *http.Client. DisableCompression is set so the server can't silently
// gzip a ranged response and perturb the byte accounting.
func New(opts Options) Transport {
	rt := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: opts.HeaderTimeout}).DialContext,
		ResponseHeaderTimeout: opts.HeaderTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		MaxIdleConns:          opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:       90 * time.Second,
		DisableCompression:    true,
	}

	return &httpTransport{
		client: &http.Client{Transport: rt},
		opts:   opts,
	}
}

// Head issues a HEAD request, retrying on transient transport errors and
// 5xx responses.
func (t *httpTransport) Head(ctx context.Context, url string) (ResourceInfo, error) {
	resp, err := t.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	})
	if err != nil {
		return ResourceInfo{}, err
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ResourceInfo{StatusCode: resp.StatusCode}, nil
	}

	total := resp.ContentLength
	if total < 0 {
		// The client reports -1 when the server omitted Content-Length;
		// callers treat 0 as "length unknown".
		total = 0
	}

	return ResourceInfo{
		TotalBytes:     total,
		RangeSupported: resp.Header.Get("Accept-Ranges") == "bytes",
		StatusCode:     resp.StatusCode,
	}, nil
}

// GetRange performs a ranged GET; start and end are inclusive byte
// offsets, matching the HTTP Range header convention. Transport errors
// and 5xx responses are retried with backoff; any other status is
// returned to the caller, which applies its own policy (the worker's
// segment-level retry, the sequential downloader's 416 restart).
func (t *httpTransport) GetRange(ctx context.Context, url string, start, end int64) (*http.Response, error) {
	return t.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
		return req, nil
	})
}

// GetFrom performs an open-ended ranged GET (Range: bytes=start-), used by
// the Sequential Downloader to resume a partial transfer.
func (t *httpTransport) GetFrom(ctx context.Context, url string, start int64) (*http.Response, error) {
	return t.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", start))
		return req, nil
	})
}

// Get performs a plain GET. Get is used for full-stream fetches.
func (t *httpTransport) Get(ctx context.Context, url string) (*http.Response, error) {
	return t.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
}

// do issues the request built by build up to RetryAttempts+1 times,
// backing off between attempts. Transport-level errors and 5xx responses
// are retried; any other response is returned as-is, body open, for the
// caller to interpret. build is invoked per attempt so each retry gets a
// fresh request.
func (t *httpTransport) do(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= t.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := t.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := t.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: %d %s", ErrServerError, resp.StatusCode, resp.Status)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", t.opts.RetryAttempts+1, lastErr)
}

// backoff waits for an exponentially increasing duration with jitter.
func (t *httpTransport) backoff(ctx context.Context, attempt int) error {
	backoff := t.opts.RetryBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > t.opts.RetryMaxBackoff {
		backoff = t.opts.RetryMaxBackoff
	}

	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}
