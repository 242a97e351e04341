// Unix daemon loop built around the signal dispatcher.
//
// A small goroutine polls the dispatcher's self-pipe read end and pokes
// the event loop when signal records are queued; the loop then drains
// the pipe and runs the registered action callbacks synchronously. The
// same loop also services config file change events and the periodic
// health probe.

//go:build !windows

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mscbg/keepalived/internal/atomicfile"
	"github.com/mscbg/keepalived/internal/config"
	"github.com/mscbg/keepalived/internal/confwatch"
	"github.com/mscbg/keepalived/internal/health"
	"github.com/mscbg/keepalived/internal/logger"
	"github.com/mscbg/keepalived/internal/runner"
	"github.com/mscbg/keepalived/internal/signals"
)

// ///////////////////////////////////////////////
// Daemon State
// ///////////////////////////////////////////////

// daemon holds the state shared by the event loop and the signal action
// callbacks. Callbacks run on the loop goroutine via Dispatch, so no
// locking is needed around these fields.
type daemon struct {
	cfg       *config.Config
	dataPaths DataPaths
	disp      *signals.Dispatcher
	scripts   *runner.Runner

	// installed maps the currently routed action signals to their names,
	// so a reload can ignore actions that were disabled.
	installed map[syscall.Signal]string

	prober       *health.Prober
	healthTicker *time.Ticker
	healthC      <-chan time.Time

	start time.Time
	quit  bool
}

// ///////////////////////////////////////////////
// Run
// ///////////////////////////////////////////////

// run wires up the dispatcher, config watcher, and health prober, then
// executes the event loop until a STOP action arrives. Returns the
// process exit code.
func run(cfg *config.Config, dataPaths DataPaths) int {
	disp := signals.New()
	if err := disp.Init(); err != nil {
		slog.Error("failed to initialize signal dispatcher", "error", err)
		return 1
	}
	defer disp.Destroy()

	d := &daemon{
		cfg:       cfg,
		dataPaths: dataPaths,
		disp:      disp,
		installed: make(map[syscall.Signal]string),
		start:     time.Now(),
	}
	d.scripts = runner.New(disp, func(p string) bool { return d.cfg.ScriptAllowed(p) })

	if err := d.installActions(); err != nil {
		slog.Error("failed to install signal actions", "error", err)
		return 1
	}
	d.resetHealth()
	defer d.stopHealth()

	watcher, err := confwatch.New(dataPaths.Config())
	if err != nil {
		slog.Error("failed to watch config file", "error", err)
		return 1
	}
	defer watcher.Close()
	if watcher.Polling() {
		slog.Info("using polling mode for config watching")
	}

	sigReady := make(chan struct{}, 1)
	pollDone := make(chan struct{})
	go pollSignalPipe(disp.ReadFD(), sigReady, pollDone)
	defer close(pollDone)

	slog.Info("daemon ready", "actions", d.cfg.Signals.Enabled)

	for !d.quit {
		select {
		case <-sigReady:
			d.disp.Dispatch()
		case <-watcher.Events():
			slog.Info("config file changed on disk")
			d.reload()
		case <-d.healthC:
			d.probe()
		}
	}

	slog.Info("keepalived exiting", "uptime", time.Since(d.start).Round(time.Second).String())
	return 0
}

// pollSignalPipe blocks on the self-pipe read end and pokes ready when
// signal records are queued. The non-blocking send coalesces wakeups;
// Dispatch drains the whole pipe per call. A short poll timeout bounds
// how long shutdown waits for this goroutine to notice done.
func pollSignalPipe(rfd int, ready chan<- struct{}, done <-chan struct{}) {
	fds := []unix.PollFd{{Fd: int32(rfd), Events: unix.POLLIN}}
	for {
		select {
		case <-done:
			return
		default:
		}

		fds[0].Revents = 0
		n, err := unix.Poll(fds, 500)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			slog.Error("signal pipe poll failed", "error", err)
			return
		}
		if n == 0 {
			continue
		}
		if fds[0].Revents&(unix.POLLNVAL|unix.POLLERR|unix.POLLHUP) != 0 {
			return
		}
		if fds[0].Revents&unix.POLLIN != 0 {
			select {
			case ready <- struct{}{}:
			default:
			}
		}
	}
}

// ///////////////////////////////////////////////
// Action Installation
// ///////////////////////////////////////////////

// installActions routes every enabled action's signal through the
// dispatcher and ignores signals whose actions were disabled since the
// last call. SIGINT always aliases STOP and SIGCHLD always drives the
// child reaper; both stay installed regardless of configuration.
func (d *daemon) installActions() error {
	desired := map[syscall.Signal]string{
		syscall.SIGINT:  "STOP",
		syscall.SIGCHLD: "CHLD",
	}
	for _, name := range d.cfg.Signals.Enabled {
		sig, ok := signals.Signum(name)
		if !ok {
			return fmt.Errorf("no signal mapping for action %q", name)
		}
		desired[sig] = name
	}

	for sig := range d.installed {
		if _, keep := desired[sig]; !keep {
			if _, err := d.disp.SetIgnore(sig); err != nil {
				slog.Warn("failed to disable action signal", "signal", int(sig), "error", err)
			}
			delete(d.installed, sig)
		}
	}

	for sig, name := range desired {
		handler := d.onAction
		if name == "CHLD" {
			handler = d.onChild
		}
		if _, err := d.disp.Set(sig, handler, name); err != nil {
			return fmt.Errorf("install %s on signal %d: %w", name, int(sig), err)
		}
		d.installed[sig] = name
	}
	return nil
}

// ///////////////////////////////////////////////
// Action Callbacks
// ///////////////////////////////////////////////

// onAction handles one symbolic action. Invoked from Dispatch on the
// event loop goroutine, in the order the signals entered the pipe.
func (d *daemon) onAction(ctx any, sig syscall.Signal) {
	name, _ := ctx.(string)
	slog.Info("signal action received", "action", name, "signal", int(sig))

	switch name {
	case "STOP":
		d.notify("STOP")
		d.quit = true
	case "RELOAD":
		d.reload()
	case "DATA":
		d.dumpState()
	case "STATS":
		d.dumpStats()
	default:
		// Extension actions have no built-in behavior beyond the
		// notify script.
		d.notify(name)
	}
}

// onChild reaps every exited notify-script child. Repeated CHLD
// deliveries may coalesce in the kernel, so Reap loops until no zombies
// remain.
func (d *daemon) onChild(_ any, _ syscall.Signal) {
	for _, ex := range d.scripts.Reap() {
		if ex.Signaled {
			slog.Warn("notify script killed by signal",
				"pid", ex.PID, "script", ex.Script, "signal", ex.Status)
			continue
		}
		if ex.Status != 0 {
			slog.Warn("notify script exited nonzero",
				"pid", ex.PID, "script", ex.Script, "status", ex.Status)
			continue
		}
		slog.Debug("notify script finished", "pid", ex.PID, "script", ex.Script)
	}
}

// ///////////////////////////////////////////////
// Reload
// ///////////////////////////////////////////////

// reload re-reads the configuration from disk and applies it: action
// routing, the extension mapping, and the health prober are rebuilt.
// On any load error the previous configuration stays in effect.
func (d *daemon) reload() {
	cfg, err := config.Load(d.dataPaths.Root)
	if err != nil {
		slog.Error("reload failed, keeping previous config", "error", err)
		return
	}

	if cfg.Log.Level != d.cfg.Log.Level {
		slog.Warn("log level change takes effect on restart",
			"current", d.cfg.Log.Level, "configured", cfg.Log.Level)
	}

	if cfg.Signals.ExtensionName != "" {
		sig := syscall.Signal(cfg.Signals.ExtensionSignum)
		if regErr := signals.RegisterExtension(cfg.Signals.ExtensionName, sig); regErr != nil {
			slog.Error("reload failed, extension rejected", "error", regErr)
			return
		}
	} else {
		signals.ClearExtension()
	}

	d.cfg = cfg
	if err := d.installActions(); err != nil {
		slog.Error("failed to reinstall signal actions", "error", err)
	}
	d.resetHealth()

	logger.Notice(slog.Default(), "configuration reloaded", "actions", d.cfg.Signals.Enabled)
	d.notify("RELOAD")
}

// ///////////////////////////////////////////////
// Notify Script
// ///////////////////////////////////////////////

// notify starts the configured notify script for event, if one is set.
// The script runs asynchronously; its exit is collected by onChild.
func (d *daemon) notify(event string) {
	script := d.cfg.Scripts.Notify
	if script == "" {
		return
	}
	pid, err := d.scripts.Run(script, event)
	if err != nil {
		slog.Warn("notify script failed to start",
			"script", script, "event", event, "error", err)
		return
	}
	slog.Debug("notify script started", "script", script, "event", event, "child", pid)
}

// ///////////////////////////////////////////////
// Health Probing
// ///////////////////////////////////////////////

// resetHealth rebuilds the prober and its ticker from the current
// config. With no URL configured, probing is disabled and the loop's
// health case never fires (a nil channel never becomes ready).
func (d *daemon) resetHealth() {
	d.stopHealth()

	h := d.cfg.Health
	if h.URL == "" {
		return
	}
	d.prober = health.NewProber(h.URL, time.Duration(h.TimeoutSeconds)*time.Second, h.RetryMax)
	d.healthTicker = time.NewTicker(time.Duration(h.IntervalSeconds) * time.Second)
	d.healthC = d.healthTicker.C
	slog.Info("health probing enabled", "url", h.URL, "interval_seconds", h.IntervalSeconds)
}

// stopHealth tears down the ticker and prober.
func (d *daemon) stopHealth() {
	if d.healthTicker != nil {
		d.healthTicker.Stop()
	}
	d.healthTicker = nil
	d.healthC = nil
	d.prober = nil
}

// probe runs one health check off the loop goroutine so a slow endpoint
// cannot stall signal dispatch. The prober serializes its own counters.
func (d *daemon) probe() {
	prober := d.prober
	timeout := time.Duration(d.cfg.Health.TimeoutSeconds) * time.Second
	retries := d.cfg.Health.RetryMax

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout*time.Duration(retries+1))
		defer cancel()
		if err := prober.Probe(ctx); err != nil {
			slog.Warn("health probe failed", "error", err)
		}
	}()
}

// ///////////////////////////////////////////////
// State and Statistics Dumps
// ///////////////////////////////////////////////

// dumpState writes a human-readable snapshot of the daemon to the data
// dump file. Triggered by the DATA action.
func (d *daemon) dumpState() {
	var b strings.Builder
	fmt.Fprintf(&b, "keepalived state dump\n")
	fmt.Fprintf(&b, "time: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "version: %s\n", resolveVersion())
	fmt.Fprintf(&b, "pid: %d\n", os.Getpid())
	fmt.Fprintf(&b, "uptime: %s\n", time.Since(d.start).Round(time.Second))
	fmt.Fprintf(&b, "config version: %d\n", d.cfg.Version)
	fmt.Fprintf(&b, "log level: %s\n", d.cfg.Log.Level)

	fmt.Fprintf(&b, "actions:\n")
	for sig, name := range d.installed {
		fmt.Fprintf(&b, "  %s -> signal %d (%s)\n", name, int(sig), unix.SignalName(sig))
	}
	if ext := d.cfg.Signals.ExtensionName; ext != "" {
		fmt.Fprintf(&b, "extension: %s -> signal %d\n", ext, d.cfg.Signals.ExtensionSignum)
	}

	if d.cfg.Scripts.Notify != "" {
		fmt.Fprintf(&b, "notify script: %s\n", d.cfg.Scripts.Notify)
		fmt.Fprintf(&b, "running children: %d\n", d.scripts.Running())
	}
	if d.prober != nil {
		stats := d.prober.Snapshot()
		fmt.Fprintf(&b, "health: url=%s ok=%d failed=%d\n", stats.URL, stats.Successes, stats.Failures)
	}

	path := d.dataPaths.DataDump()
	if err := atomicfile.Write(path, []byte(b.String()), 0o644); err != nil {
		slog.Error("failed to write state dump", "path", path, "error", err)
		return
	}
	slog.Info("state dumped", "path", path)
}

// dumpStats writes the health probe counters to the statistics file and
// logs them at notice level. Triggered by the STATS action.
func (d *daemon) dumpStats() {
	var b strings.Builder
	fmt.Fprintf(&b, "keepalived statistics\n")
	fmt.Fprintf(&b, "time: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "uptime: %s\n", time.Since(d.start).Round(time.Second))

	if d.prober == nil {
		fmt.Fprintf(&b, "health probing: disabled\n")
		logger.Notice(slog.Default(), "statistics", "health", "disabled")
	} else {
		stats := d.prober.Snapshot()
		fmt.Fprintf(&b, "health url: %s\n", stats.URL)
		fmt.Fprintf(&b, "probes ok: %d\n", stats.Successes)
		fmt.Fprintf(&b, "probes failed: %d\n", stats.Failures)
		if stats.LastError != "" {
			fmt.Fprintf(&b, "last error: %s\n", stats.LastError)
		}
		if !stats.LastProbe.IsZero() {
			fmt.Fprintf(&b, "last probe: %s\n", stats.LastProbe.Format(time.RFC3339))
		}
		logger.Notice(slog.Default(), "statistics",
			"probes_ok", stats.Successes, "probes_failed", stats.Failures)
	}

	path := d.dataPaths.Stats()
	if err := atomicfile.Write(path, []byte(b.String()), 0o644); err != nil {
		slog.Error("failed to write statistics", "path", path, "error", err)
		return
	}
	slog.Info("statistics dumped", "path", path)
}
