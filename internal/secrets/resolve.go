// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package secrets

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"

	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

const scheme = "keyring://"

// IsReference reports whether value is a keyring:// reference.
func IsReference(value string) bool {
	return strings.HasPrefix(value, scheme)
}

// ParseReference splits keyring://service/key. The key may contain slashes.
func ParseReference(ref string) (service, key string, err error) {
	if !IsReference(ref) {
		return "", "", cgerr.Errorf(cgerr.CodeSecretInvalidInput, "not a keyring reference: %q", ref)
	}
	service, key, ok := strings.Cut(strings.TrimPrefix(ref, scheme), "/")
	if !ok || service == "" || key == "" {
		return "", "", cgerr.Errorf(cgerr.CodeSecretInvalidInput, "malformed keyring reference %q, want keyring://service/key", ref)
	}
	return service, key, nil
}

// Reference formats a keyring reference.
func Reference(service, key string) string {
	return scheme + service + "/" + key
}

// Resolve returns the secret behind a keyring reference, or value itself
// when it is not one.
func Resolve(store Store, value string) (string, error) {
	if !IsReference(value) {
		return value, nil
	}
	service, key, err := ParseReference(value)
	if err != nil {
		return "", err
	}
	secret, err := store.Retrieve(service, key)
	if err != nil {
		return "", cgerr.Wrapf(err, cgerr.CodeSecretResolveFailure, "resolving %q", value)
	}
	return secret, nil
}

// ResolveViper replaces every keyring reference among v's string values with
// its secret. Keys that fail to resolve keep their reference and are all
// reported in the returned error.
func ResolveViper(v *viper.Viper, store Store) error {
	var failed []string
	for _, key := range v.AllKeys() {
		raw, ok := v.Get(key).(string)
		if !ok || !IsReference(raw) {
			continue
		}
		secret, err := Resolve(store, raw)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s (%s): %v", key, raw, err))
			continue
		}
		v.Set(key, secret)
	}
	if len(failed) == 0 {
		return nil
	}
	sort.Strings(failed)
	return cgerr.New(cgerr.CodeSecretResolveFailure, "unresolved keyring references: "+strings.Join(failed, "; "))
}
