// Package paths centralizes file and directory names used across the project.
// All data directory file names are defined here as the single source of truth.
package paths

import "path/filepath"

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	PIDFile      = "keepalived.pid"
	ConfigFile   = "keepalived.toml"
	LogFile      = "keepalived.log"
	DataDumpFile = "keepalived.data"
	StatsFile    = "keepalived.stats"
	ScriptsDir   = "scripts"

	BinaryName = "keepalived"
	DataDirRel = ".keepalived" // relative to $HOME
)

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir provides path construction methods rooted at a data directory.
type DataDir struct {
	Root string
}

// PID returns the full path to the PID file.
func (d DataDir) PID() string { return filepath.Join(d.Root, PIDFile) }

// Config returns the full path to the config file.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Log returns the full path to the log file.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }

// DataDump returns the full path to the state dump file written on DATA.
func (d DataDir) DataDump() string { return filepath.Join(d.Root, DataDumpFile) }

// Stats returns the full path to the statistics file written on STATS.
func (d DataDir) Stats() string { return filepath.Join(d.Root, StatsFile) }

// Scripts returns the full path to the notify scripts directory.
func (d DataDir) Scripts() string { return filepath.Join(d.Root, ScriptsDir) }
