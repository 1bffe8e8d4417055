// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

// isolate points HOME at a temp dir so config bootstrap never touches the
// real home, and clears the global viper between commands.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	viper.Reset()
	t.Cleanup(viper.Reset)
}

// execute runs one CLI invocation and returns its combined output.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}
