// Signal disposition capture on POSIX platforms without a /proc signal
// mask.

//go:build !linux && !windows

package signals

import (
	"os/signal"
	"syscall"
)

// kernelIgnored approximates the kernel's ignore mask with the
// runtime's bookkeeping. Ignores inherited across exec that os/signal
// never observed are missed here; Linux reads the kernel state from
// /proc instead.
func kernelIgnored() (sigset, error) {
	var s sigset
	for n := 1; n <= MaxSignal; n++ {
		sig := syscall.Signal(n)
		if capturable(sig) && signal.Ignored(sig) {
			s.add(sig)
		}
	}
	return s, nil
}
