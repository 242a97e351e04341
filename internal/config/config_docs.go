package config

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc holds documentation and alternative examples for a single config field.
// The genconfig tool uses [FieldDoc] values to annotate the generated keepalived.default.toml.
type FieldDoc struct {
	// Comment is shown as a header comment above the field in the example config.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps TOML field paths (dot-separated, e.g. "signals.extension_name")
// to their [FieldDoc] entries. The genconfig tool uses this map to annotate the
// generated keepalived.default.toml with inline comments and alternative examples.
var ConfigDocs = map[string]FieldDoc{
	// ── Root ──────────────────────────────────────────────────────
	"version": {
		Comment: "Config schema version. Do not edit.",
	},

	// ── Log ───────────────────────────────────────────────────────
	"log.level": {
		Comment: "Minimum log level. Options: \"debug\", \"info\", \"notice\", \"warn\", \"error\"",
		Alternatives: []string{
			`level = "debug"`,
			`level = "notice"`,
		},
	},
	"log.max_size_mb": {
		Comment: "Maximum log file size in megabytes before rotation.",
	},

	// ── Daemon ────────────────────────────────────────────────────
	"daemon.pidfile": {
		Comment: "PID file name inside the data directory.\nLeave empty to use the default (keepalived.pid).",
	},

	// ── Signals ───────────────────────────────────────────────────
	"signals.enabled": {
		Comment: "Symbolic actions installed at startup.\nSTOP = graceful shutdown, RELOAD = re-read configuration,\nDATA = dump daemon state, STATS = log health statistics.",
	},
	"signals.extension_name": {
		Comment: "Optional application-defined action. When set, the name may appear\nin 'enabled' and is bound to extension_signum.",
		Alternatives: []string{
			`extension_name = "ROTATE"`,
		},
	},
	"signals.extension_signum": {
		Comment: "Signal number for the extension action, typically in the realtime\nrange (35 and up on Linux).",
		Alternatives: []string{
			`extension_signum = 35`,
		},
	},

	// ── Health ────────────────────────────────────────────────────
	"health.url": {
		Comment: "Endpoint probed periodically. Leave empty to disable probing.",
		Alternatives: []string{
			`url = "http://127.0.0.1:8080/healthz"`,
		},
	},
	"health.interval_seconds": {
		Comment: "Seconds between probes.",
	},
	"health.timeout_seconds": {
		Comment: "Upper bound on a single probe attempt, in seconds.",
	},
	"health.retry_max": {
		Comment: "Retries per probe before it counts as a failure.",
	},

	// ── Scripts ───────────────────────────────────────────────────
	"scripts.notify": {
		Comment: "Script executed on STOP and RELOAD events.\nLeave empty to disable script execution.",
		Alternatives: []string{
			`notify = "/etc/keepalived/notify.sh"`,
		},
	},
	"scripts.allow": {
		Comment: "A script runs only if its path matches one of these glob patterns.\n** matches across directory boundaries.",
	},
}
