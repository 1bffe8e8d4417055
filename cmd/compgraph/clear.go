// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every triple from the graph",
		Long:  "Delete the whole graph. The version ledger is left untouched. Requires --yes.",
		Args:  cobra.NoArgs,
		RunE:  runClear,
	}

	cmd.Flags().Bool("yes", false, "confirm that the whole graph should be deleted")

	return cmd
}

func runClear(cmd *cobra.Command, _ []string) error {
	confirm, _ := cmd.Flags().GetBool("yes")

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if err := eng.Gateway.ClearAll(cmd.Context(), confirm); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Graph cleared."))
	return nil
}
