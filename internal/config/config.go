// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package config

import (
	"errors"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/compgraph/compgraph/internal/ontology"
	"github.com/compgraph/compgraph/internal/store"
	"github.com/compgraph/compgraph/internal/vocab"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. COMPGRAPH_SERVER_LISTEN.
const EnvPrefix = "COMPGRAPH"

// Config is the top-level compgraph configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Graph       GraphConfig       `mapstructure:"graph"`
	TripleStore TripleStoreConfig `mapstructure:"triplestore"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	DataDir     string            `mapstructure:"data_dir"`
	Verbose     bool              `mapstructure:"verbose"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// RateLimitRPS is the sustained per-IP request rate; zero disables it.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// GraphConfig names the vocabulary the engine works with.
type GraphConfig struct {
	Namespace          string `mapstructure:"namespace"`
	HierarchyPredicate string `mapstructure:"hierarchy_predicate"`
	SystemNamespace    string `mapstructure:"system_namespace"`
}

// TripleStoreConfig selects and addresses the triple store.
type TripleStoreConfig struct {
	Backend          string        `mapstructure:"backend"`
	Path             string        `mapstructure:"path"`
	URL              string        `mapstructure:"url"`
	Repository       string        `mapstructure:"repository"`
	Username         string        `mapstructure:"username"`
	Password         string        `mapstructure:"password"`
	Timeout          time.Duration `mapstructure:"timeout"`
	BreakerThreshold uint32        `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

// LedgerConfig selects and addresses the version ledger database.
type LedgerConfig struct {
	Backend  string `mapstructure:"backend"`
	Path     string `mapstructure:"path"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:8000")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit_rps", 0)
	v.SetDefault("server.rate_limit_burst", 20)

	v.SetDefault("graph.namespace", vocab.DefaultNamespace)
	v.SetDefault("graph.hierarchy_predicate", vocab.DefaultHierarchy)
	v.SetDefault("graph.system_namespace", vocab.Ontotext)

	v.SetDefault("triplestore.backend", "sqlite")
	v.SetDefault("triplestore.repository", "competencies")
	v.SetDefault("triplestore.timeout", 30*time.Second)
	v.SetDefault("triplestore.breaker_threshold", 5)
	v.SetDefault("triplestore.breaker_cooldown", 30*time.Second)

	v.SetDefault("ledger.backend", "sqlite")
	v.SetDefault("ledger.max_conns", 10)

	v.SetDefault("data_dir", "data")
	v.SetDefault("verbose", false)
}

// SetupEnv binds COMPGRAPH_* environment variables to config keys.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from path (or defaults only when empty) with
// environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, cgerr.Errorf(cgerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v. Empty sqlite
// paths are placed under the data directory.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, cgerr.Errorf(cgerr.CodeConfigParseInvalidFormat, "decoding config: %w", err)
	}

	if cfg.TripleStore.Path == "" {
		cfg.TripleStore.Path = filepath.Join(cfg.DataDir, "graph.db")
	}
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = filepath.Join(cfg.DataDir, "ledger.db")
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, cgerr.Errorf(cgerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}
	return &cfg, nil
}

// Validate collects every problem in the configuration.
func (c *Config) Validate() []error {
	var errs []error
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateGraph()...)
	errs = append(errs, c.validateTripleStore()...)
	errs = append(errs, c.validateLedger()...)
	return errs
}

func invalid(format string, args ...any) error {
	return cgerr.Errorf(cgerr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func (c *Config) validateServer() []error {
	var errs []error
	if err := validateListen(c.Server.Listen); err != nil {
		errs = append(errs, err)
	}
	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, invalid("server.rate_limit_rps must not be negative, got %g", c.Server.RateLimitRPS))
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst <= 0 {
		errs = append(errs, invalid("server.rate_limit_burst must be positive when a rate is set, got %d", c.Server.RateLimitBurst))
	}
	return errs
}

func validateListen(listen string) error {
	if listen == "" {
		return invalid("server.listen must not be empty")
	}
	_, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return invalid("server.listen must be host:port, got %q: %w", listen, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return invalid("server.listen port must be a number, got %q", portStr)
	}
	if port < 1 || port > 65535 {
		return invalid("server.listen port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func (c *Config) validateGraph() []error {
	var errs []error
	if !ontology.WellFormed(c.Graph.Namespace) {
		errs = append(errs, invalid("graph.namespace must be an absolute http(s) URI, got %q", c.Graph.Namespace))
	}
	if !ontology.WellFormed(c.Graph.HierarchyPredicate) {
		errs = append(errs, invalid("graph.hierarchy_predicate must be an absolute http(s) URI, got %q", c.Graph.HierarchyPredicate))
	}
	if c.Graph.SystemNamespace != "" && !ontology.WellFormed(c.Graph.SystemNamespace) {
		errs = append(errs, invalid("graph.system_namespace must be an absolute http(s) URI, got %q", c.Graph.SystemNamespace))
	}
	return errs
}

func (c *Config) validateTripleStore() []error {
	var errs []error
	switch c.TripleStore.Backend {
	case "sqlite":
	case "sparql":
		if c.TripleStore.URL == "" {
			errs = append(errs, invalid("triplestore.url is required for the sparql backend"))
		}
		if c.TripleStore.Repository == "" {
			errs = append(errs, invalid("triplestore.repository is required for the sparql backend"))
		}
	default:
		errs = append(errs, invalid("triplestore.backend must be one of [sqlite, sparql], got %q", c.TripleStore.Backend))
	}
	if c.TripleStore.Timeout < 0 {
		errs = append(errs, invalid("triplestore.timeout must not be negative, got %s", c.TripleStore.Timeout))
	}
	return errs
}

func (c *Config) validateLedger() []error {
	var errs []error
	switch c.Ledger.Backend {
	case "sqlite":
	case "postgres":
		if c.Ledger.DSN == "" {
			errs = append(errs, invalid("ledger.dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, invalid("ledger.backend must be one of [sqlite, postgres], got %q", c.Ledger.Backend))
	}
	if c.Ledger.MaxConns < 1 {
		errs = append(errs, invalid("ledger.max_conns must be greater than 0, got %d", c.Ledger.MaxConns))
	}
	return errs
}

// Namespace returns the identifier namespace for the gateway and engines.
func (c *Config) Namespace() ontology.Namespace {
	return ontology.Namespace{Base: c.Graph.Namespace, System: c.Graph.SystemNamespace}
}

// TripleStoreOptions converts the section into the store factory config.
func (c *Config) TripleStoreOptions() store.TripleStoreConfig {
	ts := c.TripleStore
	return store.TripleStoreConfig{
		Backend:          ts.Backend,
		Path:             ts.Path,
		URL:              ts.URL,
		Repository:       ts.Repository,
		Username:         ts.Username,
		Password:         ts.Password,
		Timeout:          ts.Timeout,
		BreakerThreshold: ts.BreakerThreshold,
		BreakerCooldown:  ts.BreakerCooldown,
	}
}

// LedgerOptions converts the section into the store factory config.
func (c *Config) LedgerOptions() store.LedgerConfig {
	return store.LedgerConfig{
		Backend:  c.Ledger.Backend,
		Path:     c.Ledger.Path,
		DSN:      c.Ledger.DSN,
		MaxConns: c.Ledger.MaxConns,
	}
}
