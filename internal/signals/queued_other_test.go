//go:build !linux && !windows

package signals

import "golang.org/x/sys/unix"

// pipeQueuedRequest is the ioctl that reports the number of bytes
// queued in a pipe.
const pipeQueuedRequest = unix.FIONREAD
