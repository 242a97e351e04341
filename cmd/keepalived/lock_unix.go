// PID file locking on Unix via flock(2).
//
// Compiled on all non-Windows platforms. An exclusive advisory lock on
// the PID file is what actually enforces single-instance execution; the
// PID contents exist only for diagnostics and stale-file detection.

//go:build !windows

package main

import (
	"fmt"
	"os"
	"syscall"
)

// ///////////////////////////////////////////////
// File Locking
// ///////////////////////////////////////////////

// lockFile takes an exclusive non-blocking flock on f. With LOCK_NB a
// second daemon sees EWOULDBLOCK immediately instead of queueing behind
// the running instance.
func lockFile(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		return fmt.Errorf("lock file %s: %w", f.Name(), err)
	}
	return nil
}

// unlockFile drops the flock on f. Closing the descriptor releases it
// too; the explicit call keeps shutdown ordering obvious.
func unlockFile(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		return fmt.Errorf("unlock file %s: %w", f.Name(), err)
	}
	return nil
}
