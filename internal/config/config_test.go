// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compgraph/compgraph/internal/config"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "compgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func validConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Listen: "127.0.0.1:8000"},
		Graph: config.GraphConfig{
			Namespace:          "http://example.org/competencies#",
			HierarchyPredicate: "http://example.org/hasSubCompetence",
			SystemNamespace:    "http://www.ontotext.com/",
		},
		TripleStore: config.TripleStoreConfig{Backend: "sqlite", Path: "graph.db"},
		Ledger:      config.LedgerConfig{Backend: "sqlite", Path: "ledger.db", MaxConns: 4},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8000", cfg.Server.Listen)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "http://example.org/competencies#", cfg.Graph.Namespace)
	assert.Equal(t, "http://example.org/hasSubCompetence", cfg.Graph.HierarchyPredicate)
	assert.Equal(t, "sqlite", cfg.TripleStore.Backend)
	assert.Equal(t, 30*time.Second, cfg.TripleStore.Timeout)
	assert.Equal(t, uint32(5), cfg.TripleStore.BreakerThreshold)
	assert.Equal(t, filepath.Join("data", "graph.db"), cfg.TripleStore.Path)
	assert.Equal(t, filepath.Join("data", "ledger.db"), cfg.Ledger.Path)
	assert.Equal(t, int32(10), cfg.Ledger.MaxConns)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: "0.0.0.0:9000"
triplestore:
  backend: sparql
  url: "http://graphdb:7200"
  repository: skills
  timeout: 5s
ledger:
  backend: postgres
  dsn: "postgres://u:p@db/ledger"
  max_conns: 3
data_dir: /var/lib/compgraph
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Listen)
	assert.Equal(t, "sparql", cfg.TripleStore.Backend)
	assert.Equal(t, 5*time.Second, cfg.TripleStore.Timeout)
	assert.Equal(t, "/var/lib/compgraph/ledger.db", cfg.Ledger.Path)

	ts := cfg.TripleStoreOptions()
	assert.Equal(t, "http://graphdb:7200", ts.URL)
	assert.Equal(t, "skills", ts.Repository)

	lg := cfg.LedgerOptions()
	assert.Equal(t, "postgres", lg.Backend)
	assert.Equal(t, int32(3), lg.MaxConns)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("COMPGRAPH_SERVER_LISTEN", "10.0.0.1:8080")
	t.Setenv("COMPGRAPH_GRAPH_NAMESPACE", "https://skills.example/ns#")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8080", cfg.Server.Listen)
	assert.Equal(t, "https://skills.example/ns#", cfg.Namespace().Base)
	assert.Equal(t, "http://www.ontotext.com/", cfg.Namespace().System)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, cgerr.HasCode(err, cgerr.CodeConfigLoadReadFailure))
}

func TestLoad_InvalidConfigFailsFast(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: "nowhere"
triplestore:
  backend: neo4j
`)

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validating config")
	assert.True(t, cgerr.IsInvalidInput(err))
}

func TestFromViper(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("triplestore.path", "/tmp/explicit.db")

	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/explicit.db", cfg.TripleStore.Path)
	assert.Equal(t, filepath.Join("data", "ledger.db"), cfg.Ledger.Path)
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.Empty(t, validConfig().Validate())
}

func TestValidate_Listen(t *testing.T) {
	tests := []struct {
		listen  string
		wantErr bool
	}{
		{"127.0.0.1:8000", false},
		{":8000", false},
		{"[::1]:8000", false},
		{"", true},
		{"127.0.0.1", true},
		{"127.0.0.1:0", true},
		{"127.0.0.1:70000", true},
		{"127.0.0.1:http", true},
	}
	for _, tt := range tests {
		t.Run(tt.listen, func(t *testing.T) {
			cfg := validConfig()
			cfg.Server.Listen = tt.listen
			errs := cfg.Validate()
			if tt.wantErr {
				require.Len(t, errs, 1)
				assert.Contains(t, errs[0].Error(), "server.listen")
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

func TestValidate_Backends(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown triple store", func(c *config.Config) { c.TripleStore.Backend = "neo4j" }, "triplestore.backend"},
		{"sparql without url", func(c *config.Config) { c.TripleStore.Backend = "sparql" }, "triplestore.url"},
		{"sparql without repository", func(c *config.Config) {
			c.TripleStore.Backend = "sparql"
			c.TripleStore.URL = "http://localhost:7200"
		}, "triplestore.repository"},
		{"negative timeout", func(c *config.Config) { c.TripleStore.Timeout = -time.Second }, "triplestore.timeout"},
		{"negative rate", func(c *config.Config) { c.Server.RateLimitRPS = -1 }, "server.rate_limit_rps"},
		{"rate without burst", func(c *config.Config) { c.Server.RateLimitRPS = 10 }, "server.rate_limit_burst"},
		{"unknown ledger", func(c *config.Config) { c.Ledger.Backend = "mysql" }, "ledger.backend"},
		{"postgres without dsn", func(c *config.Config) { c.Ledger.Backend = "postgres" }, "ledger.dsn"},
		{"no connections", func(c *config.Config) { c.Ledger.MaxConns = 0 }, "ledger.max_conns"},
		{"relative namespace", func(c *config.Config) { c.Graph.Namespace = "competencies#" }, "graph.namespace"},
		{"bad hierarchy", func(c *config.Config) { c.Graph.HierarchyPredicate = "has sub" }, "graph.hierarchy_predicate"},
		{"bad system namespace", func(c *config.Config) { c.Graph.SystemNamespace = "urn:x" }, "graph.system_namespace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			errs := cfg.Validate()
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0].Error(), tt.want)
		})
	}
}

func TestValidate_CollectsEveryError(t *testing.T) {
	cfg := &config.Config{
		TripleStore: config.TripleStoreConfig{Backend: "sparql"},
		Ledger:      config.LedgerConfig{Backend: "postgres"},
	}
	errs := cfg.Validate()
	assert.GreaterOrEqual(t, len(errs), 6, "got %v", errs)
}
