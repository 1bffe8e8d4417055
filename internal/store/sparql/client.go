// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

// Package sparql talks the SPARQL 1.1 protocol to a GraphDB-style repository
// and implements store.TripleStore on top of it.
package sparql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

const (
	defaultTimeout          = 30 * time.Second
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 30 * time.Second

	resultsMediaType = "application/sparql-results+json"
	maxErrorBody     = 4 << 10
)

// Options configures a Client.
type Options struct {
	URL        string // server base URL, e.g. http://localhost:7200
	Repository string
	Username   string
	Password   string
	Timeout    time.Duration

	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. OpenTimeout is how long it stays open before probing again.
	FailureThreshold uint32
	OpenTimeout      time.Duration

	HTTPClient    *http.Client
	OnStateChange func(name string, from, to gobreaker.State)
}

// Client executes SPARQL queries and updates against one repository.
type Client struct {
	queryURL  string
	updateURL string
	username  string
	password  string
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker
	logger    *slog.Logger
}

// statusError is a non-2xx response from the server.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("sparql endpoint returned %d: %s", e.status, e.body)
}

// NewClient builds a client for opts.URL/repositories/opts.Repository.
func NewClient(opts Options) (*Client, error) {
	if opts.URL == "" || opts.Repository == "" {
		return nil, cgerr.New(cgerr.CodeStoreTriplesInvalid, "sparql client requires url and repository")
	}
	base, err := url.Parse(strings.TrimRight(opts.URL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, cgerr.New(cgerr.CodeStoreTriplesInvalid, "invalid sparql url: "+opts.URL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	threshold := opts.FailureThreshold
	if threshold == 0 {
		threshold = defaultFailureThreshold
	}
	openTimeout := opts.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = defaultOpenTimeout
	}

	logger := slog.Default().With("component", "sparql", "repository", opts.Repository)
	repoURL := base.String() + "/repositories/" + url.PathEscape(opts.Repository)

	c := &Client{
		queryURL:  repoURL,
		updateURL: repoURL + "/statements",
		username:  opts.Username,
		password:  opts.Password,
		http:      hc,
		logger:    logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sparql:" + opts.Repository,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			if opts.OnStateChange != nil {
				opts.OnStateChange(name, from, to)
			}
		},
		IsSuccessful: countsAsSuccess,
	})

	return c, nil
}

// countsAsSuccess keeps client-side mistakes and caller cancellations from
// tripping the breaker. Only transport failures and 5xx responses count.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.status < http.StatusInternalServerError
	}
	return false
}

// Query runs a SELECT or ASK query and decodes the JSON results.
func (c *Client) Query(ctx context.Context, query string) (*Results, error) {
	c.logger.DebugContext(ctx, "sparql query", "query", query)

	var res Results
	err := c.do(ctx, c.queryURL, url.Values{"query": {query}}, func(body io.Reader) error {
		return json.NewDecoder(body).Decode(&res)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Update runs a SPARQL update request. Multiple operations may be joined
// with ';' and are applied by the server as one request.
func (c *Client) Update(ctx context.Context, update string) error {
	c.logger.DebugContext(ctx, "sparql update", "update", update)
	return c.do(ctx, c.updateURL, url.Values{"update": {update}}, nil)
}

// State reports the breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) do(ctx context.Context, endpoint string, form url.Values, decode func(io.Reader) error) error {
	_, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", resultsMediaType)
		if c.username != "" {
			req.SetBasicAuth(c.username, c.password)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return nil, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
		}
		if decode == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, nil
		}
		if err := decode(resp.Body); err != nil {
			return nil, &statusError{status: resp.StatusCode, body: "decoding results: " + err.Error()}
		}
		return nil, nil
	})
	return classify(err)
}

func classify(err error) error {
	if err == nil {
		return nil
	}

	backend := cgerr.FieldBackend("sparql")
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return cgerr.Wrap(err, cgerr.CodeStoreTriplesUnavailable, "sparql endpoint circuit open", backend)
	case errors.Is(err, context.Canceled):
		return cgerr.Wrap(err, cgerr.CodeStoreTriplesFailure, "sparql request canceled", backend)
	}

	var se *statusError
	if errors.As(err, &se) {
		if se.status == http.StatusServiceUnavailable {
			return cgerr.Wrap(err, cgerr.CodeStoreTriplesUnavailable, "sparql endpoint unavailable", backend,
				cgerr.Field("status", se.status))
		}
		return cgerr.Wrap(err, cgerr.CodeStoreTriplesFailure, "sparql request rejected", backend,
			cgerr.Field("status", se.status))
	}

	// Transport errors: refused connections, DNS failures, timeouts.
	return cgerr.Wrap(err, cgerr.CodeStoreTriplesUnavailable, "sparql endpoint unreachable", backend)
}
