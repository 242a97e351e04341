// Windows daemon loop.
//
// Windows has no POSIX signal semantics, so the dispatcher is not used.
// The daemon still runs: Ctrl+C (and the console-close events the Go
// runtime maps onto os.Interrupt) triggers shutdown, config file changes
// are picked up from the watcher, and the health prober works unchanged.

//go:build windows

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/mscbg/keepalived/internal/config"
	"github.com/mscbg/keepalived/internal/confwatch"
	"github.com/mscbg/keepalived/internal/health"
)

// run executes the reduced Windows event loop until interrupted.
// Returns the process exit code.
func run(cfg *config.Config, dataPaths DataPaths) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	watcher, err := confwatch.New(dataPaths.Config())
	if err != nil {
		slog.Error("failed to watch config file", "error", err)
		return 1
	}
	defer watcher.Close()

	var prober *health.Prober
	var healthC <-chan time.Time
	if cfg.Health.URL != "" {
		prober = health.NewProber(cfg.Health.URL,
			time.Duration(cfg.Health.TimeoutSeconds)*time.Second, cfg.Health.RetryMax)
		ticker := time.NewTicker(time.Duration(cfg.Health.IntervalSeconds) * time.Second)
		defer ticker.Stop()
		healthC = ticker.C
	}

	start := time.Now()
	slog.Info("daemon ready (signal actions unavailable on Windows)")

	for {
		select {
		case <-sigCh:
			slog.Info("received interrupt, exiting",
				"uptime", time.Since(start).Round(time.Second).String())
			return 0

		case <-watcher.Events():
			slog.Info("config file changed on disk")
			newCfg, loadErr := config.Load(dataPaths.Root)
			if loadErr != nil {
				slog.Error("reload failed, keeping previous config", "error", loadErr)
				continue
			}
			cfg = newCfg

		case <-healthC:
			go func() {
				timeout := time.Duration(cfg.Health.TimeoutSeconds) * time.Second
				ctx, cancel := context.WithTimeout(context.Background(),
					timeout*time.Duration(cfg.Health.RetryMax+1))
				defer cancel()
				if probeErr := prober.Probe(ctx); probeErr != nil {
					slog.Warn("health probe failed", "error", probeErr)
				}
			}()
		}
	}
}
