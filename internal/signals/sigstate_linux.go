// Kernel-level signal disposition capture on Linux.
//
// signal.Ignored only knows about signals that went through os/signal;
// an ignore disposition inherited across exec from the parent process
// is invisible to it. The kernel's actual per-process ignore mask is
// exposed in /proc/self/status, so capture reads it from there.

//go:build linux

package signals

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// kernelIgnored returns the set of signals the kernel currently ignores
// for this process, read from the SigIgn field of /proc/self/status.
// The field is a 64-bit hex mask with bit (n-1) set for signal n, the
// same layout as sigset.
func kernelIgnored() (sigset, error) {
	data, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return 0, fmt.Errorf("read process status: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		rest, ok := strings.CutPrefix(line, "SigIgn:")
		if !ok {
			continue
		}
		mask, err := strconv.ParseUint(strings.TrimSpace(rest), 16, 64)
		if err != nil {
			return 0, fmt.Errorf("parse SigIgn field %q: %w", strings.TrimSpace(rest), err)
		}
		return sigset(mask), nil
	}
	return 0, fmt.Errorf("no SigIgn field in /proc/self/status")
}
