// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/compgraph/compgraph/internal/ontology"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the whole graph as a node/link document",
		Long:  "Write every labelled node and every resource link in a form that apply accepts back.",
		Args:  cobra.NoArgs,
		RunE:  runExport,
	}

	cmd.Flags().StringP("format", "f", "yaml", "output format: yaml or json")
	cmd.Flags().StringP("output", "o", "", "write to file instead of stdout")

	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "yaml" && format != "json" {
		return cgerr.Errorf(cgerr.CodeCLIInputInvalid, "unknown format %q (want yaml or json)", format)
	}
	path, _ := cmd.Flags().GetString("output")

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	g, err := eng.Gateway.ExportGraph(cmd.Context())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return cgerr.Errorf(cgerr.CodeCLIInputInvalid, "opening %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	return writeGraph(w, g, format)
}

func writeGraph(w io.Writer, g *ontology.Graph, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(g); err != nil {
			return cgerr.Wrap(err, cgerr.CodeCLIRequestFailure, "encoding graph")
		}
		return nil
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(g); err != nil {
		return cgerr.Wrap(err, cgerr.CodeCLIRequestFailure, "encoding graph")
	}
	if err := enc.Close(); err != nil {
		return cgerr.Wrap(err, cgerr.CodeCLIRequestFailure, "encoding graph")
	}
	return nil
}
