// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

// Package secrets resolves provider credentials. Environment variables win
// so containerized deployments need no keyring; interactive installs can
// store keys in the OS keyring instead of a config file.
package secrets

import (
	"errors"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	sageerr "github.com/sageway/sage/pkg/errors"
)

// service is the keyring service name all sage credentials live under.
const service = "sage"

// APIKey resolves the API key for a provider: SAGE_<PROVIDER>_API_KEY from
// the environment first, then the OS keyring (macOS Keychain, Linux
// secret-service, Windows Credential Manager).
func APIKey(providerName string) (string, error) {
	if providerName == "" {
		return "", sageerr.New(sageerr.CodeSecretNotFound, "secret lookup: provider must not be empty")
	}

	envKey := "SAGE_" + strings.ToUpper(providerName) + "_API_KEY"
	if val := os.Getenv(envKey); val != "" {
		return val, nil
	}

	val, err := keyring.Get(service, providerName+"_api_key")
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", sageerr.New(sageerr.CodeSecretNotFound,
				"no api key for provider "+providerName+" (set "+envKey+" or store one with `sage secret set`)",
				sageerr.FieldProvider(providerName))
		}
		return "", sageerr.Wrapf(err, sageerr.CodeSecretStoreFailure,
			"reading keyring entry for %s", providerName)
	}
	return val, nil
}

// SetAPIKey stores a provider API key in the OS keyring.
func SetAPIKey(providerName, value string) error {
	if providerName == "" || value == "" {
		return sageerr.New(sageerr.CodeSecretStoreFailure, "secret store: provider and value must not be empty")
	}
	if err := keyring.Set(service, providerName+"_api_key", value); err != nil {
		return sageerr.Wrapf(err, sageerr.CodeSecretStoreFailure,
			"storing keyring entry for %s", providerName)
	}
	return nil
}

// DeleteAPIKey removes a provider API key from the OS keyring.
func DeleteAPIKey(providerName string) error {
	if err := keyring.Delete(service, providerName+"_api_key"); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return sageerr.New(sageerr.CodeSecretNotFound,
				"no stored api key for provider "+providerName,
				sageerr.FieldProvider(providerName))
		}
		return sageerr.Wrapf(err, sageerr.CodeSecretStoreFailure,
			"deleting keyring entry for %s", providerName)
	}
	return nil
}
