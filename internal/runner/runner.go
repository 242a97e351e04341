// Package runner executes the configured notify script in response to
// daemon events and tracks the resulting child processes so the CHLD
// handler can reap them.
//
// Before spawning a child the runner restores the dispositions the host
// process originally had, so the script does not inherit the daemon's
// quiesced signal state; after the spawn it rearms the dispatcher.
package runner

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mscbg/keepalived/internal/signals"
)

// ErrNotAllowed is returned when a script path fails the allow list.
var ErrNotAllowed = errors.New("script path not allowed")

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Exit describes a reaped child process.
type Exit struct {
	// PID is the child's process ID.
	PID int
	// Script is the path the child was started from, or empty if the
	// child was not started by this runner.
	Script string
	// Status is the exit code, or the signal number if Signaled.
	Status int
	// Signaled reports whether the child was killed by a signal.
	Signaled bool
}

// Runner spawns notify scripts and tracks live children by PID.
type Runner struct {
	disp    *signals.Dispatcher
	allowed func(path string) bool

	mu      sync.Mutex
	running map[int]string // pid -> script path
}

// ///////////////////////////////////////////////
// Construction
// ///////////////////////////////////////////////

// New builds a Runner. allowed gates every script path before execution;
// disp may be nil, in which case no disposition bracketing is done.
func New(disp *signals.Dispatcher, allowed func(path string) bool) *Runner {
	if allowed == nil {
		allowed = func(string) bool { return false }
	}
	return &Runner{
		disp:    disp,
		allowed: allowed,
		running: make(map[int]string),
	}
}

// Running returns the number of children not yet reaped.
func (r *Runner) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}

// track records a started child under its PID.
func (r *Runner) track(pid int, script string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running[pid] = script
}

// untrack removes pid and returns the script it belonged to.
func (r *Runner) untrack(pid int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	script := r.running[pid]
	delete(r.running, pid)
	return script
}

// checkAllowed validates script against the allow list.
func (r *Runner) checkAllowed(script string) error {
	if !r.allowed(script) {
		return fmt.Errorf("%w: %s", ErrNotAllowed, script)
	}
	return nil
}
