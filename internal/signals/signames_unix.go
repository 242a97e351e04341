// Symbolic signal-name mapping for configuration on POSIX platforms.
//
// User-facing configuration refers to signals by the action they trigger
// ("STOP", "RELOAD", ...) rather than by number. The fixed mapping lives
// here; an application-specific extension name can be registered once at
// startup and participates in both lookup and teardown.

//go:build !windows

package signals

import (
	"fmt"
	"sync"
	"syscall"
)

// ///////////////////////////////////////////////
// Fixed Mapping
// ///////////////////////////////////////////////

// actionSignals is the fixed mapping from symbolic action names to
// signal numbers.
var actionSignals = map[string]syscall.Signal{
	"STOP":   syscall.SIGTERM,
	"RELOAD": syscall.SIGHUP,
	"DATA":   syscall.SIGUSR1,
	"STATS":  syscall.SIGUSR2,
}

// extension holds the optional application-registered action name.
var extension struct {
	mu   sync.Mutex
	name string
	sig  syscall.Signal
}

// Signum maps a symbolic action name to its signal number. The second
// return value is false when the name is unknown.
func Signum(name string) (syscall.Signal, bool) {
	if sig, ok := actionSignals[name]; ok {
		return sig, true
	}
	extension.mu.Lock()
	defer extension.mu.Unlock()
	if extension.name != "" && extension.name == name {
		return extension.sig, true
	}
	return 0, false
}

// RegisterExtension adds one application-specific action name to the
// mapping. The registered signal also joins the fixed set cleared by
// [Dispatcher.Destroy]. Re-registering replaces the previous extension.
func RegisterExtension(name string, sig syscall.Signal) error {
	if name == "" {
		return fmt.Errorf("extension name must not be empty")
	}
	if _, fixed := actionSignals[name]; fixed {
		return fmt.Errorf("extension name %q collides with a fixed action", name)
	}
	if sig < 1 || sig > MaxSignal {
		return fmt.Errorf("%w: %d (valid range 1..%d)", ErrInvalidSignal, int(sig), MaxSignal)
	}
	extension.mu.Lock()
	defer extension.mu.Unlock()
	extension.name = name
	extension.sig = sig
	return nil
}

// ClearExtension removes a previously registered extension mapping.
func ClearExtension() {
	extension.mu.Lock()
	defer extension.mu.Unlock()
	extension.name = ""
	extension.sig = 0
}

// appSignals returns the fixed set of signals meaningful to the
// application (hangup, interrupt, terminate, child-exited, and the two
// user-defined signals) plus the registered extension signal, if any.
func appSignals() []syscall.Signal {
	sigs := []syscall.Signal{
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGCHLD,
		syscall.SIGUSR1,
		syscall.SIGUSR2,
	}
	extension.mu.Lock()
	defer extension.mu.Unlock()
	if extension.name != "" {
		sigs = append(sigs, extension.sig)
	}
	return sigs
}
