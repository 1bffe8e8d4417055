// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sort"

	"github.com/zalando/go-keyring"

	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

// indexKey holds a JSON list of key names per service, since the OS keyrings
// cannot enumerate entries.
const indexKey = "::index"

// KeyringStore implements Store over the OS keyring (Keychain, Secret
// Service or Windows Credential Manager).
type KeyringStore struct{}

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func checkAddress(op, service, key string) error {
	if service == "" || key == "" {
		return cgerr.Errorf(cgerr.CodeSecretInvalidInput, "secret %s: service and key are required", op)
	}
	if key == indexKey {
		return cgerr.Errorf(cgerr.CodeSecretInvalidInput, "secret %s: %q is reserved", op, key)
	}
	return nil
}

func (s *KeyringStore) Store(service, key, value string) error {
	if err := checkAddress("store", service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return cgerr.Wrapf(err, cgerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}

	keys, err := s.List(service)
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return nil
	}
	return s.writeIndex(service, append(keys, key))
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if err := checkAddress("retrieve", service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return "", cgerr.Errorf(cgerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	case err != nil:
		return "", cgerr.Wrapf(err, cgerr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkAddress("delete", service, key); err != nil {
		return err
	}
	err := keyring.Delete(service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return cgerr.Errorf(cgerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	case err != nil:
		return cgerr.Wrapf(err, cgerr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}

	keys, err := s.List(service)
	if err != nil {
		return err
	}
	return s.writeIndex(service, slices.DeleteFunc(keys, func(k string) bool { return k == key }))
}

// List returns the stored key names, sorted.
func (s *KeyringStore) List(service string) ([]string, error) {
	raw, err := keyring.Get(service, indexKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, cgerr.Wrapf(err, cgerr.CodeSecretListFailure, "reading key index of %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, cgerr.Wrapf(err, cgerr.CodeSecretListFailure, "decoding key index of %s", service)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *KeyringStore) writeIndex(service string, keys []string) error {
	if len(keys) == 0 {
		if err := keyring.Delete(service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("removing empty key index", "service", service, "error", err)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return cgerr.Wrapf(err, cgerr.CodeSecretListFailure, "encoding key index of %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return cgerr.Wrapf(err, cgerr.CodeSecretListFailure, "writing key index of %s", service)
	}
	return nil
}
