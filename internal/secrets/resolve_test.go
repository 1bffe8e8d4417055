// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package secrets_test

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compgraph/compgraph/internal/secrets"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		name        string
		ref         string
		wantService string
		wantKey     string
		wantErr     bool
	}{
		{"simple", "keyring://compgraph/graphdb-password", "compgraph", "graphdb-password", false},
		{"nested key", "keyring://compgraph/ledger/dsn", "compgraph", "ledger/dsn", false},
		{"other scheme", "vault://compgraph/x", "", "", true},
		{"no key", "keyring://compgraph/", "", "", true},
		{"no service", "keyring:///x", "", "", true},
		{"scheme only", "keyring://", "", "", true},
		{"no slash", "keyring://compgraph", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, key, err := secrets.ParseReference(tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, cgerr.HasCode(err, cgerr.CodeSecretInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantService, svc)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.ref, secrets.Reference(svc, key))
		})
	}
}

func TestResolve(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Store("test-resolve", "password", "s3cret"))

	val, err := secrets.Resolve(ks, "keyring://test-resolve/password")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", val)

	val, err = secrets.Resolve(ks, "plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", val)

	_, err = secrets.Resolve(ks, "keyring://test-resolve/absent")
	assert.True(t, cgerr.HasCode(err, cgerr.CodeSecretResolveFailure))

	_, err = secrets.Resolve(ks, "keyring://malformed")
	assert.True(t, cgerr.HasCode(err, cgerr.CodeSecretInvalidInput))
}

func TestResolveViper(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Store("test-viper", "graphdb", "root"))
	require.NoError(t, ks.Store("test-viper", "dsn", "postgres://u:p@db/ledger"))

	v := viper.New()
	v.Set("triplestore.password", "keyring://test-viper/graphdb")
	v.Set("ledger.dsn", "keyring://test-viper/dsn")
	v.Set("server.listen", "127.0.0.1:8000")
	v.Set("ledger.max_conns", 4)

	require.NoError(t, secrets.ResolveViper(v, ks))
	assert.Equal(t, "root", v.GetString("triplestore.password"))
	assert.Equal(t, "postgres://u:p@db/ledger", v.GetString("ledger.dsn"))
	assert.Equal(t, "127.0.0.1:8000", v.GetString("server.listen"))
	assert.Equal(t, 4, v.GetInt("ledger.max_conns"))
}

func TestResolveViper_ReportsEveryFailure(t *testing.T) {
	ks := secrets.NewKeyringStore()

	v := viper.New()
	v.Set("triplestore.password", "keyring://test-viper-fail/a")
	v.Set("ledger.dsn", "keyring://test-viper-fail/b")

	err := secrets.ResolveViper(v, ks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "triplestore.password")
	assert.Contains(t, err.Error(), "ledger.dsn")
	assert.Equal(t, "keyring://test-viper-fail/a", v.GetString("triplestore.password"), "failed keys keep their reference")
}
