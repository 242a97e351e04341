// Package signals converts asynchronous OS signal delivery into safe,
// synchronous callback dispatch for the keepalived daemon.
//
// POSIX signal handlers run in a restricted asynchronous context where
// almost nothing is safe to do. This package keeps that context minimal:
// each delivered signal is reduced to a single non-blocking write of its
// number into a self-pipe, and the daemon's event loop drains the pipe
// and runs the registered callbacks in ordinary synchronous code.
//
// The [Dispatcher] is process-scoped state with an explicit lifecycle:
// the hosting daemon owns one value, calls [Dispatcher.Init] once at
// startup, hands [Dispatcher.ReadFD] to its poll loop, and calls
// [Dispatcher.Dispatch] whenever the descriptor becomes readable.
package signals

import (
	"errors"
	"syscall"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// MaxSignal is the highest signal number the registration table accepts.
// It covers the realtime range; the constant mirrors the Linux _NSIG
// upper bound of 64 so extension signals in the realtime range fit.
const MaxSignal = 64

// Handler is a callback invoked from synchronous dispatch context when a
// registered signal has been delivered. ctx is the opaque value supplied
// at registration; sig is the signal that fired.
type Handler func(ctx any, sig syscall.Signal)

// Disposition describes how a signal number is currently routed.
type Disposition int

const (
	// DispositionNone means the signal was never captured or configured.
	DispositionNone Disposition = iota
	// DispositionIgnored means delivery is discarded at the OS level.
	DispositionIgnored
	// DispositionDefaulted means the OS default action applies.
	DispositionDefaulted
	// DispositionHandled means delivery is routed through the self-pipe
	// to a registered callback.
	DispositionHandled
)

// String returns a short human-readable name for the disposition.
func (d Disposition) String() string {
	switch d {
	case DispositionIgnored:
		return "ignored"
	case DispositionDefaulted:
		return "default"
	case DispositionHandled:
		return "handled"
	default:
		return "none"
	}
}

// ///////////////////////////////////////////////
// Errors
// ///////////////////////////////////////////////

var (
	// ErrInvalidSignal is returned for signal numbers outside [1, MaxSignal].
	ErrInvalidSignal = errors.New("invalid signal number")

	// ErrNotInitialized is returned when an operation requires a prior
	// successful Init.
	ErrNotInitialized = errors.New("signal dispatcher not initialized")

	// ErrUnsupported is returned on platforms without POSIX signal
	// semantics.
	ErrUnsupported = errors.New("signal dispatch not supported on this platform")
)
