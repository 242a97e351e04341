// Tests for the health prober covering success and failure counting,
// retry behavior, and snapshot isolation.

package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestProbe_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber(srv.URL, 2*time.Second, 0)
	if err := p.Probe(context.Background()); err != nil {
		t.Fatalf("Probe: %v", err)
	}

	stats := p.Snapshot()
	if stats.Successes != 1 || stats.Failures != 0 {
		t.Errorf("Snapshot = %d successes / %d failures, want 1 / 0",
			stats.Successes, stats.Failures)
	}
	if stats.LastError != "" {
		t.Errorf("LastError = %q, want empty", stats.LastError)
	}
	if stats.LastProbe.IsZero() {
		t.Error("LastProbe not recorded")
	}
}

func TestProbe_FailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewProber(srv.URL, 2*time.Second, 0)
	err := p.Probe(context.Background())
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %v, want status 404 mentioned", err)
	}

	stats := p.Snapshot()
	if stats.Successes != 0 || stats.Failures != 1 {
		t.Errorf("Snapshot = %d successes / %d failures, want 0 / 1",
			stats.Successes, stats.Failures)
	}
	if stats.LastError == "" {
		t.Error("LastError empty after failed probe")
	}
}

func TestProbe_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber(srv.URL, 2*time.Second, 2)
	if err := p.Probe(context.Background()); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if got := calls.Load(); got < 2 {
		t.Errorf("server saw %d requests, want at least 2", got)
	}

	stats := p.Snapshot()
	if stats.Successes != 1 {
		t.Errorf("Successes = %d, want 1 (retry outcome counts once)", stats.Successes)
	}
}

func TestProbe_ConnectionRefused(t *testing.T) {
	// Grab a port that nothing listens on.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewProber(url, time.Second, 0)
	if err := p.Probe(context.Background()); err == nil {
		t.Fatal("expected error probing closed server")
	}

	stats := p.Snapshot()
	if stats.Failures != 1 {
		t.Errorf("Failures = %d, want 1", stats.Failures)
	}
}

func TestSnapshot_LastErrorClearedOnSuccess(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber(srv.URL, 2*time.Second, 0)
	if err := p.Probe(context.Background()); err == nil {
		t.Fatal("expected first probe to fail")
	}
	fail.Store(false)
	if err := p.Probe(context.Background()); err != nil {
		t.Fatalf("second probe: %v", err)
	}

	stats := p.Snapshot()
	if stats.Successes != 1 || stats.Failures != 1 {
		t.Errorf("Snapshot = %d successes / %d failures, want 1 / 1",
			stats.Successes, stats.Failures)
	}
	if stats.LastError != "" {
		t.Errorf("LastError = %q, want cleared after success", stats.LastError)
	}
}
