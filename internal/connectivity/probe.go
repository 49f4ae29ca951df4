// Package connectivity tracks whether the hosted store is reachable.
package connectivity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Result is the outcome of one probe.
type Result struct {
	Reachable bool          `json:"reachable"`
	Latency   time.Duration `json:"-"`
	LatencyMS int64         `json:"latency_ms"`
	Endpoint  string        `json:"endpoint"`
	Err       error         `json:"-"`
}

// Prober checks reachability once.
type Prober interface {
	Probe(ctx context.Context) Result
}

// HTTPProbe sends a HEAD to the health endpoint and falls back to a GET of
// the root endpoint when that fails.
type HTTPProbe struct {
	client    *http.Client
	healthURL string
	baseURL   string
	timeout   time.Duration
	now       func() time.Time
}

// NewHTTPProbe constructs an HTTPProbe. A zero timeout means 4s.
func NewHTTPProbe(client *http.Client, healthURL, baseURL string, timeout time.Duration) *HTTPProbe {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &HTTPProbe{client: client, healthURL: healthURL, baseURL: baseURL, timeout: timeout, now: time.Now}
}

// Probe runs the health check, then the fallback. Each attempt has its own timeout.
func (p *HTTPProbe) Probe(ctx context.Context) Result {
	res := p.attempt(ctx, http.MethodHead, p.healthURL)
	if res.Reachable || p.baseURL == "" {
		return res
	}
	fallback := p.attempt(ctx, http.MethodGet, p.baseURL)
	if !fallback.Reachable && fallback.Err != nil && res.Err != nil {
		fallback.Err = fmt.Errorf("%w (health: %v)", fallback.Err, res.Err)
	}
	return fallback
}

func (p *HTTPProbe) attempt(ctx context.Context, method, url string) Result {
	res := Result{Endpoint: url}
	if url == "" {
		res.Err = fmt.Errorf("connectivity: no %s endpoint configured", method)
		return res
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		res.Err = fmt.Errorf("connectivity: build request: %w", err)
		return res
	}
	start := p.now()
	resp, err := p.client.Do(req)
	if err != nil {
		res.Err = err
		return res
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
	res.Latency = p.now().Sub(start)
	res.LatencyMS = res.Latency.Milliseconds()
	if resp.StatusCode >= http.StatusInternalServerError {
		res.Err = fmt.Errorf("connectivity: %s %s returned %d", method, url, resp.StatusCode)
		return res
	}
	res.Reachable = true
	return res
}
