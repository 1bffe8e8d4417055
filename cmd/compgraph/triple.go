// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/compgraph/compgraph/internal/ledger"
	"github.com/compgraph/compgraph/internal/ontology"
	"github.com/compgraph/compgraph/internal/store"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

func newTripleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triple",
		Short: "Add or delete single statements",
	}

	cmd.AddCommand(
		newTripleMutationCmd("add", "Insert one statement"),
		newTripleMutationCmd("delete", "Remove one statement"),
	)

	return cmd
}

func newTripleMutationCmd(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <subject> <predicate> <object>",
		Short: short,
		Long: short + ". Bare identifiers resolve against the configured namespace. The object is stored as a\n" +
			"resource when it is an absolute URI and as a literal otherwise, unless --kind says which.",
		Args: cobra.ExactArgs(3),
		RunE: runTriple,
	}

	cmd.Flags().String("kind", "", "object kind: iri or literal")
	cmd.Flags().String("datatype", "", "literal datatype URI")
	cmd.Flags().String("lang", "", "literal language tag")
	cmd.Flags().Int64("user", 0, "record an UPDATE of the subject under this user id")

	return cmd
}

func runTriple(cmd *cobra.Command, args []string) error {
	kind, _ := cmd.Flags().GetString("kind")
	datatype, _ := cmd.Flags().GetString("datatype")
	lang, _ := cmd.Flags().GetString("lang")
	userID, _ := cmd.Flags().GetInt64("user")
	if userID < 0 {
		return cgerr.New(cgerr.CodeCLIInputInvalid, "--user must be a positive integer")
	}

	in := ontology.TripleInput{
		Subject:    args[0],
		Predicate:  args[1],
		Object:     args[2],
		ObjectKind: store.TermKind(kind),
		Datatype:   datatype,
		Lang:       lang,
	}

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	ctx := cmd.Context()
	add := cmd.Name() == "add"

	var t store.Triple
	if add {
		t, err = eng.Gateway.AddTriple(ctx, in)
	} else {
		t, err = eng.Gateway.DeleteTriple(ctx, in)
	}
	if err != nil {
		return err
	}

	verb := "Added"
	if !add {
		verb = "Deleted"
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "%s <%s> <%s> %s\n", verb, t.Subject, t.Predicate, formatTerm(t.Object))

	if userID == 0 {
		return nil
	}
	snapshot, err := json.Marshal(t)
	if err != nil {
		return cgerr.Wrap(err, cgerr.CodeCLIInputInvalid, "encoding triple snapshot")
	}
	change := ledger.Change{NodeURI: t.Subject, UserID: userID, Kind: store.ChangeUpdate}
	if add {
		change.NewValue = snapshot
	} else {
		change.OldValue = snapshot
	}
	v, err := eng.Ledger.BumpVersion(ctx, change)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "%s %s is now at version %d\n", labelStyle.Render("version:"), t.Subject, v)
	return nil
}

// formatTerm renders an object in N-Triples style.
func formatTerm(t store.Term) string {
	if t.IsIRI() {
		return "<" + t.Value + ">"
	}
	s := fmt.Sprintf("%q", t.Value)
	switch {
	case t.Lang != "":
		s += "@" + t.Lang
	case t.Datatype != "":
		s += "^^<" + t.Datatype + ">"
	}
	return s
}
