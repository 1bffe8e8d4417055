// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

//go:embed compgraph.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/compgraph/compgraph.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", cgerr.Errorf(cgerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "compgraph", "compgraph.yaml"), nil
}

// BootstrapConfig writes the commented default config to the default path
// unless a file is already there. It returns the path written, or "" when
// nothing was written. Failures are logged at debug level and skipped.
func BootstrapConfig() string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}
	return writeDefault(cfgPath)
}

func writeDefault(cfgPath string) string {
	if _, err := os.Stat(cfgPath); err == nil {
		return ""
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Debug("skipping config bootstrap: cannot create directory", "path", dir, "error", err)
		return ""
	}
	if err := os.WriteFile(cfgPath, DefaultConfigYAML, 0o600); err != nil {
		slog.Debug("skipping config bootstrap: cannot write config", "path", cfgPath, "error", err)
		return ""
	}

	slog.Info("created default config", "path", cfgPath)
	return cfgPath
}
