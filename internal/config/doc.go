// Package config loads, normalizes, and validates capturebridge configuration.
//
// Configuration lives in a TOML file (default ~/.config/capturebridge/config.toml,
// or a capturebridge.toml in the working directory). Load applies defaults for
// absent keys, expands ~ in path fields, and rejects configurations the daemon
// cannot run with. The embedded sample_config.toml documents every key.
package config
