package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxErrorBody = 512
	// DefaultMaxResponseBytes caps a response body when none is configured.
	DefaultMaxResponseBytes int64 = 32 << 20
)

// HTTPGetter performs paced JSON GET requests and maps failures onto the
// source error taxonomy.
type HTTPGetter struct {
	name    string
	client  *http.Client
	limiter *rate.Limiter
	maxBody int64
}

// NewHTTPGetter creates a getter. A non-positive requestsPerSecond disables
// pacing; a non-positive maxBody falls back to DefaultMaxResponseBytes.
func NewHTTPGetter(name string, timeout time.Duration, requestsPerSecond float64, maxBody int64) *HTTPGetter {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	if maxBody <= 0 {
		maxBody = DefaultMaxResponseBytes
	}
	return &HTTPGetter{
		name:    name,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
		maxBody: maxBody,
	}
}

// GetJSON requests rawURL with query and decodes the body into out.
func (g *HTTPGetter) GetJSON(ctx context.Context, rawURL string, query url.Values, out interface{}) error {
	if err := g.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: pacing: %w", g.name, context.DeadlineExceeded)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Rejected(g.name, "invalid URL", err)
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Rejected(g.name, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return Unavailable(g.name, "request failed", err)
	}
	defer resp.Body.Close()

	if err := g.checkStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, g.maxBody+1))
	if err != nil {
		return Unavailable(g.name, "failed to read response body", err)
	}
	if int64(len(body)) > g.maxBody {
		return Malformed(g.name, "response body too large", fmt.Errorf("exceeds %d bytes", g.maxBody))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return Malformed(g.name, "failed to decode response", err)
	}
	return nil
}

func (g *HTTPGetter) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return RateLimited(g.name, parseRetryAfter(resp.Header.Get("Retry-After")))
	case resp.StatusCode >= 500:
		return Unavailable(g.name, "server error", statusError(resp))
	case resp.StatusCode >= 400:
		return Rejected(g.name, "request rejected", statusError(resp))
	}
	return nil
}

func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(snippet) == 0 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet)
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// IsContextError reports whether err came from ctx rather than the source.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
