// Package main implements the keepalived daemon: a long-running process
// whose control surface is POSIX signals. Symbolic actions (STOP,
// RELOAD, DATA, STATS) are routed through a self-pipe signal dispatcher
// into the main event loop.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"

	rootpkg "github.com/mscbg/keepalived"
	"github.com/mscbg/keepalived/internal/atomicfile"
	"github.com/mscbg/keepalived/internal/config"
	"github.com/mscbg/keepalived/internal/logger"
	"github.com/mscbg/keepalived/internal/paths"
	"github.com/mscbg/keepalived/internal/signals"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via ldflags:
//   - release: -X main.version={{.Version}} -> "0.1.0"
//
// When ldflags are not set (bare go build), resolveVersion reads the VCS info
// that Go embeds automatically, so dev builds get a useful version string
// without needing git at runtime.
var version = "dev"

// resolveVersion returns the build version string. If [version] was set via
// ldflags at build time it is returned as-is; otherwise VCS revision and dirty
// state embedded by the Go toolchain are used to construct a "dev+<hash>" tag.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// PID Management
// ///////////////////////////////////////////////

// pidToken generates a random 16-character hex token used to prove ownership
// of the PID file, so [removePID] only deletes the file if this instance wrote it.
func pidToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// writePID creates or opens the PID file at pidPath, acquires an advisory
// file lock, and writes "PID:TOKEN" content. The returned file handle must
// be kept open for the lifetime of the daemon to hold the lock; pass it to
// [removePID] on shutdown.
func writePID(pidPath, token string) (*os.File, error) {
	f, err := os.OpenFile(pidPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock PID file: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("truncate PID file: %w", err)
	}
	content := fmt.Sprintf("%d:%s", os.Getpid(), token)
	if _, err := f.WriteString(content); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("write PID file: %w", err)
	}
	return f, nil
}

// removePID releases the advisory lock, closes the file handle, and removes the
// PID file only if the stored token matches, preventing accidental removal of a
// file owned by a different daemon instance.
func removePID(pidPath, token string, f *os.File) {
	if f != nil {
		_ = unlockFile(f)
		f.Close()
	}
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return
	}
	parts := strings.SplitN(string(data), ":", 2)
	if len(parts) == 2 && parts[1] == token {
		os.Remove(pidPath)
	}
}

// checkStalePID checks whether another daemon instance is running. It attempts
// to acquire the advisory lock on the PID file; if the lock fails, another
// instance holds it. If the lock succeeds, any previous instance is dead and
// the stale file is cleaned up.
func checkStalePID(pidPath string) (alive bool, pid int) {
	f, err := os.OpenFile(pidPath, os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}

	if lockErr := lockFile(f); lockErr != nil {
		data, _ := os.ReadFile(pidPath)
		f.Close()
		parts := strings.SplitN(string(data), ":", 2)
		if len(parts) >= 1 {
			if p, convErr := strconv.Atoi(parts[0]); convErr == nil {
				return true, p
			}
		}
		return true, 0
	}

	// Lock acquired -- previous instance is dead. Clean up stale file.
	_ = unlockFile(f)
	f.Close()
	os.Remove(pidPath)
	return false, 0
}

// ///////////////////////////////////////////////
// Default Data Directory
// ///////////////////////////////////////////////

// defaultDataDir returns the platform default directory for keepalived data,
// typically ~/.keepalived. Falls back to ./.keepalived if the home directory
// cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}

// pidPath resolves the PID file location, honoring the config override.
func pidPath(dataPaths DataPaths, cfg *config.Config) string {
	if cfg.Daemon.PIDFile != "" {
		return filepath.Join(dataPaths.Root, cfg.Daemon.PIDFile)
	}
	return dataPaths.PID()
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	dataDir := flag.String("data-dir", defaultDataDir(), "Data directory for config, PID file, and logs")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(resolveVersion())
		return
	}

	dataPaths := DataPaths{Root: *dataDir}

	if err := os.MkdirAll(dataPaths.Root, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: create data dir: %v\n", err)
		os.Exit(1)
	}

	if _, err := os.Stat(dataPaths.Config()); os.IsNotExist(err) {
		if writeErr := atomicfile.Write(dataPaths.Config(), rootpkg.DefaultConfigTOML, 0o644); writeErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to write default config: %v\n", writeErr)
		}
	}

	cfg, err := config.Load(dataPaths.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: load config: %v\n", err)
		os.Exit(1)
	}

	pidFilePath := pidPath(dataPaths, cfg)
	if alive, pid := checkStalePID(pidFilePath); alive {
		fmt.Fprintf(os.Stderr, "daemon already running (pid %d)\n", pid)
		os.Exit(1)
	}

	logLevel := logger.ParseLevel(cfg.Log.Level)
	log, logCloser, err := logger.NewLogger(dataPaths.Log(), logLevel, cfg.Log.MaxSizeMB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: init logger: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("keepalived starting",
		"version", resolveVersion(), "data_dir", dataPaths.Root, "pid", os.Getpid())

	if cfg.Signals.ExtensionName != "" {
		sig := syscall.Signal(cfg.Signals.ExtensionSignum)
		switch regErr := signals.RegisterExtension(cfg.Signals.ExtensionName, sig); {
		case errors.Is(regErr, signals.ErrUnsupported):
			slog.Warn("extension action not supported on this platform",
				"name", cfg.Signals.ExtensionName)
		case regErr != nil:
			slog.Error("failed to register extension action",
				"name", cfg.Signals.ExtensionName, "signal", cfg.Signals.ExtensionSignum, "error", regErr)
			os.Exit(1)
		default:
			slog.Info("registered extension action",
				"name", cfg.Signals.ExtensionName, "signal", cfg.Signals.ExtensionSignum)
		}
	}

	token := pidToken()
	pidFile, err := writePID(pidFilePath, token)
	if err != nil {
		slog.Error("failed to write PID file", "error", err)
		os.Exit(1)
	}
	defer removePID(pidFilePath, token, pidFile)

	if exitCode := run(cfg, dataPaths); exitCode != 0 {
		removePID(pidFilePath, token, pidFile)
		os.Exit(exitCode)
	}
}
