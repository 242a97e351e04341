//go:build !windows

package runner

import (
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// ///////////////////////////////////////////////
// Spawning
// ///////////////////////////////////////////////

// Run starts script asynchronously with KEEPALIVED_EVENT=event in its
// environment and returns the child's PID. The dispatcher's dispositions
// are restored for the duration of the spawn so the child starts with
// the signal state the host process originally had. execve already
// resets caught signals to default and preserves kernel-level ignores,
// so the bracket's main job is keeping the parent's own state exact
// around the fork.
func (r *Runner) Run(script, event string, args ...string) (int, error) {
	if err := r.checkAllowed(script); err != nil {
		return 0, err
	}

	if r.disp != nil {
		r.disp.RestoreForExec()
		defer r.disp.Rearm()
	}

	cmd := exec.Command(script, args...)
	cmd.Env = append(os.Environ(), "KEEPALIVED_EVENT="+event)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", script, err)
	}
	pid := cmd.Process.Pid

	// The CHLD handler reaps via wait4, so let go of the handle here.
	// Release never fails on a started process.
	cmd.Process.Release()

	r.track(pid, script)
	return pid, nil
}

// ///////////////////////////////////////////////
// Reaping
// ///////////////////////////////////////////////

// Reap collects every exited child without blocking. It is intended to
// be called from the CHLD action and keeps calling wait4 until no more
// zombies remain, since pending deliveries of the same signal coalesce.
func (r *Runner) Reap() []Exit {
	var exits []Exit
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil || pid <= 0 {
			// ECHILD means nothing left to reap.
			return exits
		}

		ex := Exit{PID: pid, Script: r.untrack(pid)}
		if ws.Signaled() {
			ex.Signaled = true
			ex.Status = int(ws.Signal())
		} else {
			ex.Status = ws.ExitStatus()
		}
		exits = append(exits, ex)
	}
}
