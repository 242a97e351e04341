// Package keepalived provides embedded assets for the keepalived daemon.
//
// The root package exists solely to embed [keepalived.default.toml] via
// [DefaultConfigTOML]. The daemon writes this file to the data directory
// on first run so operators have a commented starting point to edit.
package keepalived

import _ "embed"

// DefaultConfigTOML holds the raw bytes of keepalived.default.toml,
// embedded at build time.
//
//go:embed keepalived.default.toml
var DefaultConfigTOML []byte
