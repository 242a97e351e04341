//go:build !windows

// Tests for the runner covering allow-list gating, spawn failures, PID
// tracking, and non-blocking reaping of exited children.

package runner

import (
	"errors"
	"testing"
	"time"
)

// allowOnly returns an allow func that accepts exactly the given paths.
func allowOnly(paths ...string) func(string) bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return func(p string) bool { return set[p] }
}

// reapPID polls Reap until the given child shows up or the deadline
// passes. Children exit asynchronously, so a single Reap call racing the
// exit can legitimately come back empty.
func reapPID(t *testing.T, r *Runner, pid int) Exit {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, ex := range r.Reap() {
			if ex.PID == pid {
				return ex
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("child %d never reaped", pid)
	return Exit{}
}

func TestRun_Disallowed(t *testing.T) {
	r := New(nil, allowOnly("/etc/keepalived/notify.sh"))

	_, err := r.Run("/tmp/evil.sh", "STOP")
	if !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("Run error = %v, want ErrNotAllowed", err)
	}
	if n := r.Running(); n != 0 {
		t.Errorf("Running = %d, want 0", n)
	}
}

func TestRun_NilAllowPermitsNothing(t *testing.T) {
	r := New(nil, nil)
	if _, err := r.Run("/bin/sh", "STOP"); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("Run error = %v, want ErrNotAllowed", err)
	}
}

func TestRun_MissingScript(t *testing.T) {
	r := New(nil, allowOnly("/nonexistent/notify.sh"))
	if _, err := r.Run("/nonexistent/notify.sh", "STOP"); err == nil {
		t.Fatal("expected start error for missing script")
	}
}

func TestRunAndReap(t *testing.T) {
	r := New(nil, allowOnly("/bin/sh"))

	pid, err := r.Run("/bin/sh", "RELOAD", "-c", "exit 0")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pid <= 0 {
		t.Fatalf("pid = %d, want positive", pid)
	}
	if n := r.Running(); n != 1 {
		t.Errorf("Running = %d, want 1", n)
	}

	ex := reapPID(t, r, pid)
	if ex.Script != "/bin/sh" {
		t.Errorf("Script = %q, want /bin/sh", ex.Script)
	}
	if ex.Signaled || ex.Status != 0 {
		t.Errorf("exit = %+v, want clean status 0", ex)
	}
	if n := r.Running(); n != 0 {
		t.Errorf("Running = %d after reap, want 0", n)
	}
}

func TestReap_ExitCode(t *testing.T) {
	r := New(nil, allowOnly("/bin/sh"))

	pid, err := r.Run("/bin/sh", "STOP", "-c", "exit 3")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	ex := reapPID(t, r, pid)
	if ex.Signaled {
		t.Fatalf("exit = %+v, want non-signaled", ex)
	}
	if ex.Status != 3 {
		t.Errorf("Status = %d, want 3", ex.Status)
	}
}

func TestReap_NoChildren(t *testing.T) {
	r := New(nil, allowOnly())
	if exits := r.Reap(); len(exits) != 0 {
		t.Errorf("Reap = %v, want empty", exits)
	}
}

func TestRun_EventEnvPassedToChild(t *testing.T) {
	r := New(nil, allowOnly("/bin/sh"))

	// The child exits 0 only if KEEPALIVED_EVENT carries the event name.
	pid, err := r.Run("/bin/sh", "DATA", "-c", `[ "$KEEPALIVED_EVENT" = "DATA" ]`)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	ex := reapPID(t, r, pid)
	if ex.Status != 0 {
		t.Errorf("Status = %d, want 0 (env var missing in child)", ex.Status)
	}
}
