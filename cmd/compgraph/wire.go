// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/compgraph/compgraph/internal/config"
	"github.com/compgraph/compgraph/internal/ledger"
	"github.com/compgraph/compgraph/internal/metrics"
	"github.com/compgraph/compgraph/internal/ontology"
	"github.com/compgraph/compgraph/internal/store"
	_ "github.com/compgraph/compgraph/internal/store/postgres" // register postgres ledger
	_ "github.com/compgraph/compgraph/internal/store/sparql"   // register sparql triple store
	_ "github.com/compgraph/compgraph/internal/store/sqlite"   // register sqlite backends
	"github.com/compgraph/compgraph/internal/traversal"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

// Engine holds the wired stores and the three components over them.
type Engine struct {
	Config    *config.Config
	Metrics   *metrics.Metrics
	Triples   store.TripleStore
	Versions  store.Ledger
	Gateway   *ontology.Gateway
	Ledger    *ledger.Service
	Traversal *traversal.Engine
}

// loadConfig decodes the configuration initViper assembled.
func loadConfig() (*config.Config, error) {
	return config.FromViper(viper.GetViper())
}

// WireEngine opens both stores and builds the components. m may be nil.
func WireEngine(cfg *config.Config, m *metrics.Metrics) (*Engine, error) {
	tsOpts := cfg.TripleStoreOptions()
	if m != nil {
		tsOpts.BreakerObserver = m.SetBreakerState
	}
	ldOpts := cfg.LedgerOptions()

	for _, p := range sqlitePaths(tsOpts, ldOpts) {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, cgerr.Errorf(cgerr.CodeCLISetupFailure, "creating data directory: %w", err)
		}
	}

	triples, err := store.NewTripleStore(tsOpts)
	if err != nil {
		return nil, cgerr.Wrapf(err, cgerr.CodeCLISetupFailure, "opening %s triple store", tsOpts.Backend)
	}
	versions, err := store.NewLedger(ldOpts)
	if err != nil {
		_ = triples.Close()
		return nil, cgerr.Wrapf(err, cgerr.CodeCLISetupFailure, "opening %s ledger", ldOpts.Backend)
	}

	e := &Engine{Config: cfg, Metrics: m, Triples: triples, Versions: versions}
	ns := cfg.Namespace()

	if e.Gateway, err = ontology.NewGateway(ontology.GatewayConfig{Store: triples, Namespace: ns, Metrics: m}); err != nil {
		_ = e.Close()
		return nil, err
	}
	if e.Ledger, err = ledger.New(ledger.Config{Store: versions, Namespace: ns, Metrics: m}); err != nil {
		_ = e.Close()
		return nil, err
	}
	if e.Traversal, err = traversal.New(traversal.Config{
		Store:     triples,
		Namespace: ns,
		Hierarchy: cfg.Graph.HierarchyPredicate,
		Metrics:   m,
	}); err != nil {
		_ = e.Close()
		return nil, err
	}

	slog.Debug("engine wired",
		"triplestore", tsOpts.Backend,
		"ledger", ldOpts.Backend,
		"namespace", ns.Base,
		"hierarchy", e.Traversal.Hierarchy(),
	)
	return e, nil
}

func sqlitePaths(ts store.TripleStoreConfig, ld store.LedgerConfig) []string {
	var paths []string
	if ts.Backend == "sqlite" && ts.Path != "" {
		paths = append(paths, ts.Path)
	}
	if ld.Backend == "sqlite" && ld.Path != "" {
		paths = append(paths, ld.Path)
	}
	return paths
}

// Close releases both stores.
func (e *Engine) Close() error {
	var errs []error
	if e.Triples != nil {
		if err := e.Triples.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.Versions != nil {
		if err := e.Versions.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return cgerr.Join(errs...)
	}
	return nil
}

// openEngine loads the config and wires an engine without metrics, for the
// one-shot commands.
func openEngine() (*Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return WireEngine(cfg, nil)
}
