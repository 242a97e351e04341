// Windows stubs for the signal dispatch subsystem.
//
// Windows has no POSIX signal semantics: there is no sigaction, no
// self-pipe trick, and no user-defined signals. The Dispatcher type
// compiles so shared daemon code links, but Init reports
// [ErrUnsupported] and every other operation is inert. The Windows
// daemon entry point uses the interrupt-only loop instead.

//go:build windows

package signals

import "syscall"

// Dispatcher is an inert placeholder on Windows.
type Dispatcher struct{}

// New returns a Dispatcher whose Init always fails with ErrUnsupported.
func New() *Dispatcher { return &Dispatcher{} }

// Init reports that POSIX signal dispatch is unavailable.
func (d *Dispatcher) Init() error { return ErrUnsupported }

// ChildReset reports that POSIX signal dispatch is unavailable.
func (d *Dispatcher) ChildReset() error { return ErrUnsupported }

// Destroy is a no-op.
func (d *Dispatcher) Destroy() {}

// RestoreForExec is a no-op.
func (d *Dispatcher) RestoreForExec() {}

// Rearm is a no-op.
func (d *Dispatcher) Rearm() {}

// Set always fails with ErrUnsupported.
func (d *Dispatcher) Set(sig syscall.Signal, fn Handler, ctx any) (Disposition, error) {
	return DispositionNone, ErrUnsupported
}

// SetIgnore always fails with ErrUnsupported.
func (d *Dispatcher) SetIgnore(sig syscall.Signal) (Disposition, error) {
	return DispositionNone, ErrUnsupported
}

// SetDefault always fails with ErrUnsupported.
func (d *Dispatcher) SetDefault(sig syscall.Signal) (Disposition, error) {
	return DispositionNone, ErrUnsupported
}

// Disposition always reports DispositionNone.
func (d *Dispatcher) Disposition(sig syscall.Signal) Disposition { return DispositionNone }

// Dispatch is a no-op.
func (d *Dispatcher) Dispatch() {}

// ReadFD reports no descriptor.
func (d *Dispatcher) ReadFD() int { return -1 }

// CloseAbove is a no-op.
func (d *Dispatcher) CloseAbove(minFD int) {}

// Signum maps the two action names whose signals exist in the Windows
// syscall package; user-defined signals have no Windows equivalent.
func Signum(name string) (syscall.Signal, bool) {
	switch name {
	case "STOP":
		return syscall.SIGTERM, true
	case "RELOAD":
		return syscall.SIGHUP, true
	}
	return 0, false
}

// RegisterExtension always fails with ErrUnsupported.
func RegisterExtension(name string, sig syscall.Signal) error { return ErrUnsupported }

// ClearExtension is a no-op.
func ClearExtension() {}
