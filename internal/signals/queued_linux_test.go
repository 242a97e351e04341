//go:build linux

package signals

import "golang.org/x/sys/unix"

// pipeQueuedRequest is the ioctl that reports the number of bytes
// queued in a pipe. Linux spells it TIOCINQ; the BSDs call the same
// request FIONREAD.
const pipeQueuedRequest = unix.TIOCINQ
