package paths

import (
	"path/filepath"
	"testing"
)

// ///////////////////////////////////////////////
// Constant Value Tests
// ///////////////////////////////////////////////

func TestConstantValues(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DataDirRel", DataDirRel, ".keepalived"},
		{"PIDFile", PIDFile, "keepalived.pid"},
		{"ConfigFile", ConfigFile, "keepalived.toml"},
		{"LogFile", LogFile, "keepalived.log"},
		{"DataDumpFile", DataDumpFile, "keepalived.data"},
		{"StatsFile", StatsFile, "keepalived.stats"},
		{"ScriptsDir", ScriptsDir, "scripts"},
		{"BinaryName", BinaryName, "keepalived"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// DataDir Method Tests
// ///////////////////////////////////////////////

func TestDataDirMethods(t *testing.T) {
	root := filepath.Join("var", "run", "keepalived")
	d := DataDir{Root: root}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"PID", d.PID(), filepath.Join(root, "keepalived.pid")},
		{"Config", d.Config(), filepath.Join(root, "keepalived.toml")},
		{"Log", d.Log(), filepath.Join(root, "keepalived.log")},
		{"DataDump", d.DataDump(), filepath.Join(root, "keepalived.data")},
		{"Stats", d.Stats(), filepath.Join(root, "keepalived.stats")},
		{"Scripts", d.Scripts(), filepath.Join(root, "scripts")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestDataDirEmptyRoot(t *testing.T) {
	d := DataDir{Root: ""}

	// With an empty root, methods should return just the filename.
	if got := d.PID(); got != PIDFile {
		t.Errorf("PID() with empty root = %q, want %q", got, PIDFile)
	}
	if got := d.Config(); got != ConfigFile {
		t.Errorf("Config() with empty root = %q, want %q", got, ConfigFile)
	}
}
