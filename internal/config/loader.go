package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	// Expand ${ENV_VAR} references before parsing.
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", absPath, err)
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", absPath, err)
	}
	return &cfg, nil
}

// expandEnvVars replaces ${VAR} with the environment value. Unset
// variables expand to the empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

func applyDefaults(cfg *Config) *Config {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "INFO"
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 5 * time.Second
	}
	if cfg.Spawn.StdoutCap <= 0 {
		cfg.Spawn.StdoutCap = 1 << 20
	}
	if cfg.Spawn.StderrCap <= 0 {
		cfg.Spawn.StderrCap = 64 * 1024
	}
	return cfg
}

func validate(cfg *Config) error {
	switch strings.ToUpper(cfg.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("log_level must be DEBUG, INFO, WARN or ERROR, got %q", cfg.LogLevel)
	}
	if cfg.Script.Checksum != "" && len(cfg.Script.Checksum) != 64 {
		return fmt.Errorf("script.checksum must be a 64-char hex BLAKE3 digest")
	}
	return nil
}
