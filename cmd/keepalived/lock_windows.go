// PID file locking on Windows via LockFileEx/UnlockFileEx.
//
// Single-instance enforcement works the same way as on Unix: an
// exclusive lock on the PID file held for the daemon's lifetime.
// LOCKFILE_FAIL_IMMEDIATELY is the Win32 counterpart of LOCK_NB.

//go:build windows

package main

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// ///////////////////////////////////////////////
// File Locking
// ///////////////////////////////////////////////

// lockFile takes an exclusive non-blocking LockFileEx lock on f. A
// second daemon fails immediately rather than queueing. Only the first
// byte is locked (length 1, offset 0) since the lock exists purely for
// mutual exclusion, not data protection.
func lockFile(f *os.File) error {
	ol := new(windows.Overlapped)
	if err := windows.LockFileEx(
		windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0,
		1, 0,
		ol,
	); err != nil {
		return fmt.Errorf("lock file %s: %w", f.Name(), err)
	}
	return nil
}

// unlockFile drops the LockFileEx lock on f. Closing the handle
// releases it too; the explicit call keeps shutdown ordering obvious.
func unlockFile(f *os.File) error {
	ol := new(windows.Overlapped)
	if err := windows.UnlockFileEx(
		windows.Handle(f.Fd()),
		0,
		1, 0,
		ol,
	); err != nil {
		return fmt.Errorf("unlock file %s: %w", f.Name(), err)
	}
	return nil
}
