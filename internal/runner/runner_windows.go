//go:build windows

package runner

import "github.com/mscbg/keepalived/internal/signals"

// Run is not supported on Windows: the daemon has no notify-script
// pipeline there because there is no CHLD reaping.
func (r *Runner) Run(script, event string, args ...string) (int, error) {
	if err := r.checkAllowed(script); err != nil {
		return 0, err
	}
	return 0, signals.ErrUnsupported
}

// Reap is a no-op on Windows.
func (r *Runner) Reap() []Exit { return nil }
