// Package config loads the bridge's optional YAML configuration. The CLI
// layer supplies the interpreter and script; config only carries tuning
// knobs and diagnostics settings.
package config

import "time"

// Config is the root configuration.
type Config struct {
	// LogLevel is DEBUG | INFO | WARN | ERROR. Default INFO.
	LogLevel string `yaml:"log_level"`

	// ShutdownGrace is how long to wait for the interpreter to exit after
	// its stdin is closed before force-killing it.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`

	Spawn  SpawnConfig  `yaml:"spawn"`
	Trace  TraceConfig  `yaml:"trace"`
	Script ScriptConfig `yaml:"script"`
}

// SpawnConfig bounds eager output capture for spawned subprocesses.
type SpawnConfig struct {
	StdoutCap int `yaml:"stdout_cap"`
	StderrCap int `yaml:"stderr_cap"`
}

// TraceConfig enables the per-run effect audit database. Empty path
// disables tracing.
type TraceConfig struct {
	Path string `yaml:"path"`
}

// ScriptConfig carries optional script integrity settings.
type ScriptConfig struct {
	// Checksum is the expected BLAKE3 hash of the script file, hex-encoded.
	// Empty skips verification.
	Checksum string `yaml:"checksum"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return applyDefaults(&Config{})
}
