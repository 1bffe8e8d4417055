// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

const defaultServerAddress = "127.0.0.1:8000"

// statusBody mirrors the server's /api/v1/status response.
type statusBody struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Triples     int64  `json:"triples"`
	TripleStore string `json:"triplestore"`
	Ledger      string `json:"ledger"`
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		Long:  "Query a running server's status endpoint and display store health.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", defaultServerAddress, "server address to check")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	var body statusBody
	if err := newServerClient(addr).getJSON("/api/v1/status", &body); err != nil {
		if cgerr.HasCode(err, cgerr.CodeCLIServerNotRunning) {
			_, _ = fmt.Fprintf(out, "Server at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Server at %s: %s\n", addr, err)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Server at %s: %s (version %s)\n", addr, body.Status, body.Version)
	_, _ = fmt.Fprintf(out, "  triples:     %d\n", body.Triples)
	_, _ = fmt.Fprintf(out, "  triplestore: %s\n", body.TripleStore)
	_, _ = fmt.Fprintf(out, "  ledger:      %s\n", body.Ledger)
	return nil
}
