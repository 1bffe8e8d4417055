// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// WarnInsecurePermissions logs a warning when the config file at path is
// readable by group or others. Store passwords and DSNs may live there.
func WarnInsecurePermissions(path string) {
	if path == "" {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("config permission check skipped", "path", path, "error", err)
		return
	}

	const readableByOthers fs.FileMode = 0o044
	if info.Mode().Perm()&readableByOthers != 0 {
		slog.Warn("config file has insecure permissions, store credentials may be readable by other users",
			"path", path,
			"mode", info.Mode().Perm(),
			"recommended", "0600",
		)
	}
}
