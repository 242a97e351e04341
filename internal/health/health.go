// Package health probes an HTTP endpoint on a fixed interval and keeps
// running statistics. The daemon logs a snapshot of the counters when it
// receives the STATS action and includes them in the DATA state dump.
package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Prober periodically checks a single HTTP endpoint.
type Prober struct {
	url    string
	client *retryablehttp.Client

	mu        sync.Mutex
	successes uint64
	failures  uint64
	lastErr   string
	lastProbe time.Time
}

// Stats is a point-in-time snapshot of a Prober's counters.
type Stats struct {
	URL       string
	Successes uint64
	Failures  uint64
	LastError string
	LastProbe time.Time
}

// ///////////////////////////////////////////////
// Public API
// ///////////////////////////////////////////////

// NewProber builds a prober for url. timeout bounds a single attempt and
// retryMax is the number of retries per probe.
func NewProber(url string, timeout time.Duration, retryMax int) *Prober {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.HTTPClient.Timeout = timeout
	client.Logger = nil // suppress retryablehttp's default logging
	return &Prober{url: url, client: client}
}

// Probe performs one check against the endpoint and updates the
// counters. Any response outside the 2xx range counts as a failure.
func (p *Prober) Probe(ctx context.Context) error {
	err := p.fetch(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastProbe = time.Now()
	if err != nil {
		p.failures++
		p.lastErr = err.Error()
		return err
	}
	p.successes++
	p.lastErr = ""
	return nil
}

// Snapshot returns a copy of the current counters.
func (p *Prober) Snapshot() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		URL:       p.url,
		Successes: p.successes,
		Failures:  p.failures,
		LastError: p.lastErr,
		LastProbe: p.lastProbe,
	}
}

// ///////////////////////////////////////////////
// Internal helpers
// ///////////////////////////////////////////////

// fetch issues the GET request and maps non-2xx statuses to errors.
func (p *Prober) fetch(ctx context.Context) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", p.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("GET %s: status %d", p.url, resp.StatusCode)
	}
	return nil
}
