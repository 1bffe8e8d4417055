// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/compgraph/compgraph/internal/ledger"
	"github.com/compgraph/compgraph/internal/store"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

func newNodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Inspect and change individual nodes and their versions",
	}

	cmd.AddCommand(
		newNodeDeleteCmd(),
		newNodeVersionCmd(),
		newNodeHistoryCmd(),
		newNodeCheckCmd(),
		newNodeUpdateCmd(),
	)

	return cmd
}

func newNodeDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <uri>",
		Short: "Delete every triple the node takes part in",
		Args:  cobra.ExactArgs(1),
		RunE:  runNodeDelete,
	}
	cmd.Flags().Int64("user", 0, "record a DELETE version under this user id")
	return cmd
}

func newNodeVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version <uri>...",
		Short: "Show the current version of one or more nodes",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runNodeVersion,
	}
}

func newNodeHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <uri>",
		Short: "Show a node's change history, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE:  runNodeHistory,
	}
	cmd.Flags().Int("limit", 10, "maximum number of entries")
	return cmd
}

func newNodeCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <uri>",
		Short: "Report whether an expected version is still current",
		Args:  cobra.ExactArgs(1),
		RunE:  runNodeCheck,
	}
	cmd.Flags().Int64("expected", 0, "version the caller last read")
	return cmd
}

func newNodeUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <uri>",
		Short: "Record a change guarded by an expected version",
		Long: "Bump the node's version if it still equals --expected. --old and --new are JSON snapshots;\n" +
			"values that are not valid JSON are stored as JSON strings.",
		Args: cobra.ExactArgs(1),
		RunE: runNodeUpdate,
	}
	cmd.Flags().Int64("expected", 0, "version the caller last read")
	cmd.Flags().Int64("user", 0, "user id making the change (required)")
	cmd.Flags().String("type", string(store.ChangeUpdate), "change type: CREATE, UPDATE or DELETE")
	cmd.Flags().String("old", "", "snapshot before the change")
	cmd.Flags().String("new", "", "snapshot after the change")
	return cmd
}

func runNodeDelete(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetInt64("user")
	if userID < 0 {
		return cgerr.New(cgerr.CodeCLIInputInvalid, "--user must be a positive integer")
	}

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	ctx := cmd.Context()
	uri := eng.Gateway.Namespace().Normalize(args[0])
	if err := eng.Gateway.DeleteNode(ctx, uri); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Deleted node %s\n", uri)

	if userID == 0 {
		return nil
	}
	v, err := eng.Ledger.BumpVersion(ctx, ledger.Change{NodeURI: uri, UserID: userID, Kind: store.ChangeDelete})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "%s %s is now at version %d\n", labelStyle.Render("version:"), uri, v)
	return nil
}

func runNodeVersion(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	records, err := eng.Ledger.BatchGetVersions(cmd.Context(), args)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, r := range records {
		_, _ = fmt.Fprintln(out, formatVersion(r))
	}
	return nil
}

func formatVersion(r store.VersionRecord) string {
	if r.Version == 0 {
		return fmt.Sprintf("%s  %s", r.NodeURI, dimStyle.Render("unversioned"))
	}
	by := "unknown"
	if r.LastModifiedBy != nil {
		by = fmt.Sprintf("user %d", *r.LastModifiedBy)
	}
	return fmt.Sprintf("%s  v%d  %s by %s", r.NodeURI, r.Version, r.LastModified.Format(time.RFC3339), by)
}

func runNodeHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	entries, err := eng.Ledger.GetHistory(cmd.Context(), args[0], limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "No history recorded.")
		return nil
	}
	for _, e := range entries {
		printHistoryEntry(out, e)
	}
	return nil
}

func printHistoryEntry(w io.Writer, e store.HistoryEntry) {
	_, _ = fmt.Fprintf(w, "v%-4d %-6s user %-6d %s\n", e.Version, e.Kind, e.UserID, dimStyle.Render(e.ChangedAt.Format(time.RFC3339)))
	if len(e.OldValue) > 0 {
		_, _ = fmt.Fprintf(w, "      old: %s\n", e.OldValue)
	}
	if len(e.NewValue) > 0 {
		_, _ = fmt.Fprintf(w, "      new: %s\n", e.NewValue)
	}
}

func runNodeCheck(cmd *cobra.Command, args []string) error {
	expected, _ := cmd.Flags().GetInt64("expected")

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	ok, err := eng.Ledger.CheckConflict(cmd.Context(), args[0], expected)
	if err != nil {
		return err
	}
	if ok {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("current"))
		return nil
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), errorStyle.Render("stale"))
	return nil
}

func runNodeUpdate(cmd *cobra.Command, args []string) error {
	expected, _ := cmd.Flags().GetInt64("expected")
	userID, _ := cmd.Flags().GetInt64("user")
	kind, _ := cmd.Flags().GetString("type")
	oldRaw, _ := cmd.Flags().GetString("old")
	newRaw, _ := cmd.Flags().GetString("new")
	if userID <= 0 {
		return cgerr.New(cgerr.CodeCLIInputInvalid, "--user is required and must be a positive integer")
	}

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	v, err := eng.Ledger.UpdateWithVersion(cmd.Context(), ledger.Change{
		NodeURI:  args[0],
		UserID:   userID,
		Kind:     store.ChangeKind(strings.ToUpper(kind)),
		OldValue: snapshotArg(oldRaw),
		NewValue: snapshotArg(newRaw),
	}, expected)
	if err != nil {
		if cgerr.IsConflict(err) {
			fields := cgerr.FieldsOf(err)
			return cgerr.Wrapf(err, cgerr.CodeLedgerVersionConflict,
				"expected version %v but node is at %v; reload and retry", fields["expected_version"], fields["current_version"])
		}
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Updated %s to version %d\n", eng.Gateway.Namespace().Normalize(args[0]), v)
	return nil
}

// snapshotArg turns a flag value into a JSON snapshot. Empty stays empty.
func snapshotArg(raw string) json.RawMessage {
	if raw == "" {
		return nil
	}
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw)
	}
	quoted, _ := json.Marshal(raw)
	return quoted
}
