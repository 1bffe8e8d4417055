// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/danielgtaylor/huma/v2"

	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

func logger(ctx context.Context) *slog.Logger {
	l := slog.Default().With("component", "server")
	if id := RequestIDFromContext(ctx); id != "" {
		l = l.With("request_id", id)
	}
	return l
}

// apiError maps a coded error onto an RFC 7807 response. Client errors keep
// their message and structured fields; server-side failures are logged and
// answered with the bare status text.
func apiError(ctx context.Context, err error) error {
	status := cgerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger(ctx).ErrorContext(ctx, "request failed",
			"status", status,
			"code", cgerr.CodeOf(err),
			"error", err,
		)
		return huma.NewError(status, http.StatusText(status))
	}

	fields := cgerr.FieldsOf(err)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	details := make([]error, 0, len(keys))
	for _, k := range keys {
		details = append(details, &huma.ErrorDetail{
			Location: k,
			Message:  fmt.Sprint(fields[k]),
			Value:    fields[k],
		})
	}
	return huma.NewError(status, err.Error(), details...)
}
