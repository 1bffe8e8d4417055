// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/compgraph/compgraph/internal/store"
	"github.com/compgraph/compgraph/internal/traversal"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run hierarchy and neighborhood queries",
	}

	cmd.PersistentFlags().Bool("json", false, "print results as JSON")

	cmd.AddCommand(
		newClosureCmd("ancestors", "List every node above <uri> in the hierarchy"),
		newClosureCmd("descendants", "List every node below <uri> in the hierarchy"),
		newPathCmd(),
		newNeighborhoodCmd(),
	)

	return cmd
}

func newClosureCmd(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <uri>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE:  runClosure,
	}
	cmd.Flags().Int("limit", traversal.DefaultLimit, fmt.Sprintf("maximum results (at most %d)", traversal.MaxLimit))
	cmd.Flags().Int("offset", 0, "results to skip")
	return cmd
}

func newPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path <start> <end>",
		Short: "Show the hierarchy neighbors of <end> when <end> is reachable from <start>",
		Args:  cobra.ExactArgs(2),
		RunE:  runPath,
	}
}

func newNeighborhoodCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "neighborhood <uri>",
		Short: "Show the subgraph within --depth outgoing hops of <uri>",
		Args:  cobra.ExactArgs(1),
		RunE:  runNeighborhood,
	}
	cmd.Flags().Int("depth", 2, fmt.Sprintf("hop radius (%d to %d)", traversal.MinDepth, traversal.MaxDepth))
	cmd.Flags().Int("limit", traversal.DefaultLimit, fmt.Sprintf("maximum nodes (at most %d)", traversal.MaxLimit))
	cmd.Flags().Int("offset", 0, "nodes to skip")
	return cmd
}

func runClosure(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	var refs []store.NodeRef
	if cmd.Name() == "ancestors" {
		refs, err = eng.Traversal.Ancestors(cmd.Context(), args[0], limit, offset)
	} else {
		refs, err = eng.Traversal.Descendants(cmd.Context(), args[0], limit, offset)
	}
	if err != nil {
		return err
	}
	return printRefs(cmd, refs)
}

func runPath(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	refs, err := eng.Traversal.FindPath(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	return printRefs(cmd, refs)
}

func runNeighborhood(cmd *cobra.Command, args []string) error {
	depth, _ := cmd.Flags().GetInt("depth")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	g, err := eng.Traversal.Neighborhood(cmd.Context(), args[0], depth, limit, offset)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON(cmd) {
		return writeJSON(out, g)
	}
	_, _ = fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%d nodes, %d links", len(g.Nodes), len(g.Links))))
	for _, n := range g.Nodes {
		_, _ = fmt.Fprintf(out, "  %s %s %s\n", n.URI, labelStyle.Render(n.Label), dimStyle.Render(string(n.Kind)))
	}
	for _, l := range g.Links {
		_, _ = fmt.Fprintf(out, "  %s -[%s]-> %s\n", l.Source, l.Predicate, l.Target)
	}
	return nil
}

func printRefs(cmd *cobra.Command, refs []store.NodeRef) error {
	out := cmd.OutOrStdout()
	if asJSON(cmd) {
		return writeJSON(out, refs)
	}
	if len(refs) == 0 {
		_, _ = fmt.Fprintln(out, dimStyle.Render("No results."))
		return nil
	}
	for _, r := range refs {
		_, _ = fmt.Fprintf(out, "%s  %s\n", r.URI, labelStyle.Render(r.Label))
	}
	return nil
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return cgerr.Wrap(err, cgerr.CodeCLIRequestFailure, "encoding result")
	}
	return nil
}
