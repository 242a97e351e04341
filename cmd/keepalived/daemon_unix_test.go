//go:build !windows

// Tests for the Unix daemon: action installation and removal, reload
// behavior, health prober lifecycle, and the DATA/STATS dump files.

package main

import (
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/mscbg/keepalived/internal/config"
	"github.com/mscbg/keepalived/internal/paths"
	"github.com/mscbg/keepalived/internal/runner"
	"github.com/mscbg/keepalived/internal/signals"
)

// newTestDaemon builds a daemon around a fresh dispatcher and a temp
// data dir with default configuration.
func newTestDaemon(t *testing.T) *daemon {
	t.Helper()

	disp := signals.New()
	if err := disp.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(disp.Destroy)

	d := &daemon{
		cfg:       config.DefaultConfig(),
		dataPaths: DataPaths{Root: t.TempDir()},
		disp:      disp,
		installed: make(map[syscall.Signal]string),
		start:     time.Now(),
	}
	d.scripts = runner.New(disp, func(p string) bool { return d.cfg.ScriptAllowed(p) })
	return d
}

// writeDaemonConfig places a config file in the daemon's data dir for
// reload tests.
func writeDaemonConfig(t *testing.T, d *daemon, content string) {
	t.Helper()
	path := d.dataPaths.Config()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// ///////////////////////////////////////////////
// installActions Tests
// ///////////////////////////////////////////////

func TestInstallActions_RoutesEnabled(t *testing.T) {
	d := newTestDaemon(t)

	if err := d.installActions(); err != nil {
		t.Fatalf("installActions: %v", err)
	}

	handled := []syscall.Signal{
		syscall.SIGTERM, // STOP
		syscall.SIGHUP,  // RELOAD
		syscall.SIGUSR1, // DATA
		syscall.SIGUSR2, // STATS
		syscall.SIGINT,  // STOP alias
		syscall.SIGCHLD, // reaper
	}
	for _, sig := range handled {
		if got := d.disp.Disposition(sig); got != signals.DispositionHandled {
			t.Errorf("Disposition(%d) = %v, want Handled", int(sig), got)
		}
	}
}

func TestInstallActions_DisablesRemoved(t *testing.T) {
	d := newTestDaemon(t)
	if err := d.installActions(); err != nil {
		t.Fatalf("installActions: %v", err)
	}

	d.cfg.Signals.Enabled = []string{"STOP"}
	if err := d.installActions(); err != nil {
		t.Fatalf("installActions (second): %v", err)
	}

	if got := d.disp.Disposition(syscall.SIGUSR1); got != signals.DispositionIgnored {
		t.Errorf("SIGUSR1 disposition = %v, want Ignored after disable", got)
	}
	if got := d.disp.Disposition(syscall.SIGTERM); got != signals.DispositionHandled {
		t.Errorf("SIGTERM disposition = %v, want still Handled", got)
	}
	if got := d.disp.Disposition(syscall.SIGCHLD); got != signals.DispositionHandled {
		t.Errorf("SIGCHLD disposition = %v, want always Handled", got)
	}
}

func TestInstallActions_UnknownAction(t *testing.T) {
	d := newTestDaemon(t)
	d.cfg.Signals.Enabled = []string{"BOGUS"}

	if err := d.installActions(); err == nil {
		t.Fatal("expected error for unmapped action name")
	}
}

// ///////////////////////////////////////////////
// Action Callback Tests
// ///////////////////////////////////////////////

func TestOnAction_StopSetsQuit(t *testing.T) {
	d := newTestDaemon(t)

	d.onAction("STOP", syscall.SIGTERM)
	if !d.quit {
		t.Error("quit not set after STOP action")
	}
}

func TestOnAction_DataWritesDump(t *testing.T) {
	d := newTestDaemon(t)
	if err := d.installActions(); err != nil {
		t.Fatalf("installActions: %v", err)
	}

	d.onAction("DATA", syscall.SIGUSR1)

	data, err := os.ReadFile(d.dataPaths.DataDump())
	if err != nil {
		t.Fatalf("read %s: %v", paths.DataDumpFile, err)
	}
	dump := string(data)
	for _, want := range []string{"keepalived state dump", "uptime:", "STOP -> signal"} {
		if !strings.Contains(dump, want) {
			t.Errorf("dump missing %q:\n%s", want, dump)
		}
	}
}

func TestOnAction_StatsWritesFile(t *testing.T) {
	d := newTestDaemon(t)

	d.onAction("STATS", syscall.SIGUSR2)

	data, err := os.ReadFile(d.dataPaths.Stats())
	if err != nil {
		t.Fatalf("read %s: %v", paths.StatsFile, err)
	}
	if !strings.Contains(string(data), "health probing: disabled") {
		t.Errorf("stats should report probing disabled:\n%s", data)
	}
}

func TestOnChild_NoChildren(t *testing.T) {
	d := newTestDaemon(t)

	// Must not panic or block with nothing to reap.
	d.onChild(nil, syscall.SIGCHLD)
}

func TestNotify_EmptyScriptNoOp(t *testing.T) {
	d := newTestDaemon(t)
	d.cfg.Scripts.Notify = ""

	d.notify("STOP")
	if n := d.scripts.Running(); n != 0 {
		t.Errorf("Running = %d, want 0", n)
	}
}

// ///////////////////////////////////////////////
// Reload Tests
// ///////////////////////////////////////////////

func TestReload_AppliesChanges(t *testing.T) {
	d := newTestDaemon(t)
	if err := d.installActions(); err != nil {
		t.Fatalf("installActions: %v", err)
	}

	writeDaemonConfig(t, d, `
version = 1

[signals]
enabled = ["STOP", "RELOAD"]
`)
	d.reload()

	if len(d.cfg.Signals.Enabled) != 2 {
		t.Errorf("Enabled = %v, want [STOP RELOAD]", d.cfg.Signals.Enabled)
	}
	if got := d.disp.Disposition(syscall.SIGUSR1); got != signals.DispositionIgnored {
		t.Errorf("SIGUSR1 disposition = %v, want Ignored after reload", got)
	}
	if got := d.disp.Disposition(syscall.SIGTERM); got != signals.DispositionHandled {
		t.Errorf("SIGTERM disposition = %v, want Handled after reload", got)
	}
}

func TestReload_BadConfigKeepsOld(t *testing.T) {
	d := newTestDaemon(t)
	if err := d.installActions(); err != nil {
		t.Fatalf("installActions: %v", err)
	}
	before := d.cfg

	writeDaemonConfig(t, d, "this is not valid toml [[[")
	d.reload()

	if d.cfg != before {
		t.Error("config replaced despite load failure")
	}
	if got := d.disp.Disposition(syscall.SIGUSR1); got != signals.DispositionHandled {
		t.Errorf("SIGUSR1 disposition = %v, want unchanged Handled", got)
	}
}

// ///////////////////////////////////////////////
// Health Lifecycle Tests
// ///////////////////////////////////////////////

func TestResetHealth_Disabled(t *testing.T) {
	d := newTestDaemon(t)
	d.cfg.Health.URL = ""

	d.resetHealth()
	if d.prober != nil || d.healthC != nil {
		t.Error("prober active with no URL configured")
	}
}

func TestResetHealth_Enabled(t *testing.T) {
	d := newTestDaemon(t)
	d.cfg.Health.URL = "http://127.0.0.1:1/healthz"

	d.resetHealth()
	defer d.stopHealth()

	if d.prober == nil {
		t.Fatal("prober not created")
	}
	if d.healthC == nil {
		t.Fatal("health ticker not created")
	}
}
