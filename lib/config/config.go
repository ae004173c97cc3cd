// Copyright 2026 The Smart Proxy REX Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for REX commands.
//
// Configuration is loaded from a single file specified by:
//   - REX_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. The config file is the
// single source of truth; environment variables do not override its values.
// The only expansion performed is ${HOME} and similar path variables for
// portability.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jhoblitt/smart-proxy-remote-execution-ssh/session"
)

// Config is the master configuration for REX commands.
type Config struct {
	// SSH describes the default target connection. Command-line flags
	// override individual fields.
	SSH session.Config `yaml:"ssh"`

	// ArchiveDir is where finished job records are written. Empty disables
	// archiving.
	ArchiveDir string `yaml:"archive_dir"`

	// RemoteScriptDir is the directory on the target where uploaded
	// scripts are staged.
	RemoteScriptDir string `yaml:"remote_script_dir"`

	// LogLevel controls slog verbosity: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration defaults. These are applied
// as a base before loading the config file.
func Default() *Config {
	return &Config{
		SSH: session.Config{
			Port:           session.DefaultPort,
			ConnectTimeout: 30 * time.Second,
		},
		RemoteScriptDir: "/var/tmp/rex",
		LogLevel:        "info",
	}
}

// Load loads configuration from the REX_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks - if REX_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("REX_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("REX_CONFIG environment variable not set; " +
			"set it to the path of your rex.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()

	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.ArchiveDir = expandVars(c.ArchiveDir, vars)
	c.SSH.IdentityFile = expandVars(c.SSH.IdentityFile, vars)
	c.SSH.KnownHostsFile = expandVars(c.SSH.KnownHostsFile, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. The SSH section is only
// validated when a host is set, so a config file that relies on the --host
// flag for targeting still loads cleanly.
func (c *Config) Validate() error {
	if c.SSH.Host != "" {
		if err := c.SSH.Validate(); err != nil {
			return fmt.Errorf("ssh: %w", err)
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q: must be debug, info, warn, or error", c.LogLevel)
	}

	if c.RemoteScriptDir == "" {
		return fmt.Errorf("remote_script_dir is required")
	}

	return nil
}
