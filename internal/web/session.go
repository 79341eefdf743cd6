package web

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/franz/media-librarian/internal/util"
)

const (
	connectTimeout = 8 * time.Second
	readTimeout    = 45 * time.Second
)

// retryStatuses are transient server responses worth waiting out.
// Connection resets surface as network errors, not statuses, and are
// retried through the same loop.
var retryStatuses = map[int]bool{
	http.StatusRequestEntityTooLarge: true,
	http.StatusTooManyRequests:       true,
	http.StatusInternalServerError:   true,
	http.StatusBadGateway:            true,
	http.StatusServiceUnavailable:    true,
	http.StatusGatewayTimeout:        true,
	522:                              true, // Cloudflare origin timeout
}

// Session is a pooled HTTP client with retry semantics tuned for slow,
// flaky media hosts
type Session struct {
	client    *http.Client
	retry     *util.RetryConfig
	UserAgent string
}

// NewSession builds a session whose connection pool matches the worker
// count that will share it
func NewSession(workers int) *Session {
	if workers <= 0 {
		workers = 4
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
		MaxIdleConns:          workers * 2,
		MaxIdleConnsPerHost:   workers,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Session{
		client:    &http.Client{Transport: transport},
		retry:     util.HTTPRetryConfig(0),
		UserAgent: "media-librarian/1.0",
	}
}

// Get issues a GET with retries. The caller owns the response body.
func (s *Session) Get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	return s.do(ctx, http.MethodGet, url, header)
}

// Head issues a HEAD with retries
func (s *Session) Head(ctx context.Context, url string) (*http.Response, error) {
	resp, err := s.do(ctx, http.MethodHead, url, nil)
	if resp != nil {
		resp.Body.Close()
	}
	return resp, err
}

func (s *Session) do(ctx context.Context, method, url string, header http.Header) (*http.Response, error) {
	wait := s.retry.InitialWait

	var lastErr error
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", s.UserAgent)
		}

		resp, err := s.client.Do(req)
		if err == nil && !retryStatuses[resp.StatusCode] {
			return resp, nil
		}

		var delay time.Duration
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !util.IsRetryableError(err) {
				return nil, err
			}
			lastErr = err
		} else {
			lastErr = fmt.Errorf("%s returned %s", url, resp.Status)
			delay = retryAfter(resp)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		if attempt == s.retry.MaxAttempts {
			break
		}

		if delay == 0 {
			delay = wait
			if s.retry.Jitter > 0 {
				delay += time.Duration(rand.Int63n(int64(s.retry.Jitter)))
			}
		}
		util.DebugLog("Retrying %s %s in %v (attempt %d/%d): %v",
			method, url, delay, attempt, s.retry.MaxAttempts, lastErr)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		wait *= 3
		if wait > s.retry.MaxWait {
			wait = s.retry.MaxWait
		}
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", s.retry.MaxAttempts, lastErr)
}

// retryAfter honors the server's own backoff hint when present and sane
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 && secs < 3600 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
