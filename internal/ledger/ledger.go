// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

// Package ledger tracks per-node version counters and the append-only change
// history, and offers optimistic concurrency checks on top of them.
package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/compgraph/compgraph/internal/metrics"
	"github.com/compgraph/compgraph/internal/ontology"
	"github.com/compgraph/compgraph/internal/store"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 1000
	maxBatch            = 500

	defaultTopContributors = 10
	defaultRecentChanges   = 10
)

// Config wires a Service.
type Config struct {
	Store     store.Ledger
	Namespace ontology.Namespace
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Service is the version ledger. Versions start at 1 on the first bump and
// only ever increase; history rows are never rewritten.
type Service struct {
	store   store.Ledger
	ns      ontology.Namespace
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Change describes one versioned modification.
type Change struct {
	NodeURI  string           `json:"node_uri"`
	UserID   int64            `json:"user_id"`
	Kind     store.ChangeKind `json:"change_type"`
	OldValue json.RawMessage  `json:"old_value,omitempty"`
	NewValue json.RawMessage  `json:"new_value,omitempty"`
}

// New returns a ledger service over cfg.Store.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, cgerr.New(cgerr.CodeServerConfigInvalid, "ledger requires a store")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ns := cfg.Namespace
	if ns.Base == "" {
		ns = ontology.DefaultNamespace()
	}
	return &Service{
		store:   cfg.Store,
		ns:      ns,
		metrics: cfg.Metrics,
		logger:  logger.With("component", "ledger"),
	}, nil
}

func (s *Service) node(uri string) (string, error) {
	n := s.ns.Normalize(uri)
	if !ontology.WellFormed(n) {
		return "", cgerr.New(cgerr.CodeLedgerInputInvalid, "node must be an absolute http(s) URI", cgerr.FieldNodeURI(n))
	}
	return n, nil
}

// GetVersion returns the node's current version, or the unversioned
// sentinel when the node has never been bumped.
func (s *Service) GetVersion(ctx context.Context, uri string) (store.VersionRecord, error) {
	n, err := s.node(uri)
	if err != nil {
		return store.VersionRecord{}, err
	}
	return s.store.GetVersion(ctx, n)
}

// BumpVersion increments the node version and records the change in one
// transaction, returning the new version.
func (s *Service) BumpVersion(ctx context.Context, c Change) (int64, error) {
	b, err := s.validate(c)
	if err != nil {
		return 0, err
	}
	version, err := s.store.BumpVersion(ctx, b)
	if err != nil {
		s.logger.ErrorContext(ctx, "version bump failed", "node_uri", b.NodeURI, "error", err)
		return 0, cgerr.With(err, cgerr.FieldNodeURI(b.NodeURI), cgerr.FieldUserID(b.UserID))
	}
	s.metrics.Bump(string(b.Kind))
	s.logger.InfoContext(ctx, "version bumped",
		"node_uri", b.NodeURI,
		"user_id", b.UserID,
		"change_type", b.Kind,
		"version", version,
	)
	return version, nil
}

func (s *Service) validate(c Change) (store.Bump, error) {
	n, err := s.node(c.NodeURI)
	if err != nil {
		return store.Bump{}, err
	}
	if c.UserID <= 0 {
		return store.Bump{}, cgerr.New(cgerr.CodeLedgerInputInvalid, "user id must be positive", cgerr.FieldUserID(c.UserID))
	}
	kind := store.ChangeKind(strings.ToUpper(string(c.Kind)))
	if !kind.Valid() {
		return store.Bump{}, cgerr.New(cgerr.CodeLedgerInputInvalid, "unknown change type: "+string(c.Kind))
	}
	for name, v := range map[string]json.RawMessage{"old_value": c.OldValue, "new_value": c.NewValue} {
		if len(v) > 0 && !json.Valid(v) {
			return store.Bump{}, cgerr.New(cgerr.CodeLedgerInputInvalid, name+" is not valid JSON", cgerr.FieldNodeURI(n))
		}
	}
	return store.Bump{NodeURI: n, UserID: c.UserID, Kind: kind, OldValue: c.OldValue, NewValue: c.NewValue}, nil
}

// CheckConflict reports whether expected still matches the stored version.
// A node with no version row never conflicts. The check is not atomic with
// any later write.
func (s *Service) CheckConflict(ctx context.Context, uri string, expected int64) (bool, error) {
	rec, err := s.GetVersion(ctx, uri)
	if err != nil {
		return false, err
	}
	ok := rec.Version == 0 || rec.Version == expected
	if !ok {
		s.metrics.Conflict()
	}
	return ok, nil
}

// UpdateWithVersion bumps the node only if its version still equals
// expected. A mismatch returns a conflict error carrying both versions.
func (s *Service) UpdateWithVersion(ctx context.Context, c Change, expected int64) (int64, error) {
	b, err := s.validate(c)
	if err != nil {
		return 0, err
	}
	rec, err := s.store.GetVersion(ctx, b.NodeURI)
	if err != nil {
		return 0, err
	}
	if rec.Version != 0 && rec.Version != expected {
		s.metrics.Conflict()
		s.logger.WarnContext(ctx, "version conflict",
			"node_uri", b.NodeURI,
			"expected_version", expected,
			"current_version", rec.Version,
		)
		return 0, cgerr.New(cgerr.CodeLedgerVersionConflict, "node was modified by another user",
			cgerr.FieldNodeURI(b.NodeURI),
			cgerr.Field("expected_version", expected),
			cgerr.Field("current_version", rec.Version),
		)
	}
	return s.BumpVersion(ctx, Change{
		NodeURI:  b.NodeURI,
		UserID:   b.UserID,
		Kind:     b.Kind,
		OldValue: b.OldValue,
		NewValue: b.NewValue,
	})
}

// BatchGetVersions returns one record per input URI, in input order.
func (s *Service) BatchGetVersions(ctx context.Context, uris []string) ([]store.VersionRecord, error) {
	if len(uris) > maxBatch {
		return nil, cgerr.New(cgerr.CodeLedgerInputInvalid, "too many nodes in one request", cgerr.Field("max", maxBatch))
	}
	nodes := make([]string, len(uris))
	for i, u := range uris {
		n, err := s.node(u)
		if err != nil {
			return nil, err
		}
		nodes[i] = n
	}
	return s.store.GetVersions(ctx, nodes)
}

// GetHistory returns the node's changes, most recent first. A limit of zero
// or less means the default of 10; limits above 1000 are rejected.
func (s *Service) GetHistory(ctx context.Context, uri string, limit int) ([]store.HistoryEntry, error) {
	n, err := s.node(uri)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return nil, cgerr.New(cgerr.CodeLedgerInputInvalid, "history limit must be at most 1000",
			cgerr.Field("limit", limit), cgerr.FieldNodeURI(n))
	}
	return s.store.History(ctx, n, limit)
}

// Statistics summarises the ledger.
func (s *Service) Statistics(ctx context.Context, topN, recentN int) (*store.Stats, error) {
	if topN <= 0 {
		topN = defaultTopContributors
	}
	if recentN <= 0 {
		recentN = defaultRecentChanges
	}
	return s.store.Statistics(ctx, topN, recentN)
}

// Ping checks the backing store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
