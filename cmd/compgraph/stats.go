// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise the version ledger",
		Long:  "Show how many nodes are versioned, the most active contributors, and the latest changes.",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}

	cmd.Flags().Int("top", 10, "number of contributors to list")
	cmd.Flags().Int("recent", 10, "number of recent changes to list")
	cmd.Flags().Bool("json", false, "print the summary as JSON")

	return cmd
}

func runStats(cmd *cobra.Command, _ []string) error {
	top, _ := cmd.Flags().GetInt("top")
	recent, _ := cmd.Flags().GetInt("recent")

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	ctx := cmd.Context()
	stats, err := eng.Ledger.Statistics(ctx, top, recent)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON(cmd) {
		return writeJSON(out, stats)
	}

	triples, err := eng.Gateway.Count(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("triples:        "), triples)
	fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("versioned nodes:"), stats.VersionedNodes)
	fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("version sum:    "), stats.TotalVersionSum)
	fmt.Fprintf(&b, "%s %d", labelStyle.Render("history rows:   "), stats.HistoryCount)
	_, _ = fmt.Fprintln(out, titleStyle.Render("Ledger"))
	_, _ = fmt.Fprintln(out, boxStyle.Render(b.String()))

	if len(stats.TopContributors) > 0 {
		_, _ = fmt.Fprintln(out, titleStyle.Render("Top contributors"))
		for _, c := range stats.TopContributors {
			_, _ = fmt.Fprintf(out, "  user %-8d %d change(s)\n", c.UserID, c.Changes)
		}
	}
	if len(stats.Recent) > 0 {
		_, _ = fmt.Fprintln(out, titleStyle.Render("Recent changes"))
		for _, e := range stats.Recent {
			_, _ = fmt.Fprintf(out, "  %s %-6s v%-4d user %d %s\n",
				dimStyle.Render(e.ChangedAt.Format(time.RFC3339)), e.Kind, e.Version, e.UserID, e.NodeURI)
		}
	}
	return nil
}
