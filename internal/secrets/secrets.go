// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

// Package secrets keeps store credentials out of config files. Values are
// held in the OS keyring and referenced from config as keyring://service/key.
package secrets

// ServiceName is the keyring service compgraph stores its credentials under.
const ServiceName = "compgraph"

// Store is a secret backend addressed by service and key.
type Store interface {
	Store(service, key, value string) error
	// Retrieve returns a secret.not_found error for a missing key.
	Retrieve(service, key string) (string, error)
	Delete(service, key string) error
	// List returns the key names stored under service.
	List(service string) ([]string, error)
}
