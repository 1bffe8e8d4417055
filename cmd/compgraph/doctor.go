// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"

	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

const storeCheckTimeout = 5 * time.Second

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check the binary, the running server, the config file, both stores, and free disk space.",
		RunE:  runDoctor,
	}

	cmd.Flags().String("address", defaultServerAddress, "server address to check")

	return cmd
}

type check struct {
	name string
	fn   func() string
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	addr, _ := cmd.Flags().GetString("address")
	dataDir := resolveDataDir()

	checks := []check{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Server", func() string { return checkServer(addr) }},
		{"Config", checkConfig},
	}

	eng, err := openEngine()
	if err != nil {
		checks = append(checks, check{"Stores", func() string { return errorStyle.Render("error: " + err.Error()) }})
	} else {
		defer func() { _ = eng.Close() }()
		checks = append(checks,
			check{"Triple Store", func() string { return checkTripleStore(cmd.Context(), eng) }},
			check{"Ledger", func() string { return checkLedger(cmd.Context(), eng) }},
		)
	}
	checks = append(checks, check{"Disk Space", func() string { return checkDiskSpace(dataDir) }})

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

// resolveDataDir returns the data directory from viper or the default.
func resolveDataDir() string {
	if dataDir := viper.GetString("data_dir"); dataDir != "" {
		return dataDir
	}
	return "data"
}

func checkBinary() string {
	return fmt.Sprintf("compgraph %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkServer(addr string) string {
	var body statusBody
	if err := newServerClient(addr).getJSON("/api/v1/status", &body); err != nil {
		if cgerr.HasCode(err, cgerr.CodeCLIServerNotRunning) {
			return dimStyle.Render(fmt.Sprintf("not running at %s (run 'compgraph serve')", addr))
		}
		return errorStyle.Render(fmt.Sprintf("error: %s", err))
	}
	return fmt.Sprintf("%s at %s", body.Status, addr)
}

func checkConfig() string {
	if cfgFile := viper.ConfigFileUsed(); cfgFile != "" {
		return fmt.Sprintf("loaded from %s", cfgFile)
	}
	return "using defaults (no config file found)"
}

func checkTripleStore(ctx context.Context, eng *Engine) string {
	ctx, cancel := context.WithTimeout(ctx, storeCheckTimeout)
	defer cancel()
	cfg := eng.Config

	if err := eng.Gateway.Ping(ctx); err != nil {
		return errorStyle.Render(fmt.Sprintf("%s unreachable: %s", cfg.TripleStore.Backend, err))
	}
	n, err := eng.Gateway.Count(ctx)
	if err != nil {
		return warnStyle.Render(fmt.Sprintf("%s reachable, count failed: %s", cfg.TripleStore.Backend, err))
	}
	return successStyle.Render(fmt.Sprintf("%s ok, %d triples", cfg.TripleStore.Backend, n))
}

func checkLedger(ctx context.Context, eng *Engine) string {
	ctx, cancel := context.WithTimeout(ctx, storeCheckTimeout)
	defer cancel()
	cfg := eng.Config

	if err := eng.Ledger.Ping(ctx); err != nil {
		return errorStyle.Render(fmt.Sprintf("%s unreachable: %s", cfg.Ledger.Backend, err))
	}
	stats, err := eng.Ledger.Statistics(ctx, 1, 1)
	if err != nil {
		return warnStyle.Render(fmt.Sprintf("%s reachable, statistics failed: %s", cfg.Ledger.Backend, err))
	}
	return successStyle.Render(fmt.Sprintf("%s ok, %d versioned nodes", cfg.Ledger.Backend, stats.VersionedNodes))
}

func checkDiskSpace(dataDir string) string {
	path := dataDir
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Fall back to the working directory if the data dir doesn't exist yet.
		path = "."
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
