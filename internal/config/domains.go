// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	sageerr "github.com/sageway/sage/pkg/errors"
)

// LoadDomainDir merges per-domain YAML documents from <dataDir>/domains into
// c.Domains. The file stem is the domain name ("cooking.yaml" defines domain
// "cooking"). Domains declared inline in the main config win over files of
// the same name. A missing directory is not an error.
func (c *Config) LoadDomainDir(dataDir string) error {
	dir := filepath.Join(dataDir, "domains")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return sageerr.Wrapf(err, sageerr.CodeConfigLoadReadFailure, "reading domain dir %s", dir)
	}

	if c.Domains == nil {
		c.Domains = make(map[string]DomainConfig)
	}

	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		if _, exists := c.Domains[name]; exists {
			slog.Debug("inline domain config shadows domain file", "domain", name, "file", entry.Name())
			continue
		}

		dc, err := readDomainFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if verrs := dc.Validate(name); len(verrs) > 0 {
			errs = append(errs, verrs...)
			continue
		}
		c.Domains[name] = *dc
	}

	if len(errs) > 0 {
		return sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue, "loading domain dir %s: %w", dir, errors.Join(errs...))
	}
	return nil
}

func readDomainFile(path string) (*DomainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeConfigLoadReadFailure, "reading domain file %s", path)
	}

	var dc DomainConfig
	if err := yaml.Unmarshal(data, &dc); err != nil {
		return nil, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue, "parsing domain file %s: %w", path, err)
	}
	return &dc, nil
}

// Domain returns the configuration for a named domain.
func (c *Config) Domain(name string) (*DomainConfig, error) {
	dc, ok := c.Domains[name]
	if !ok {
		return nil, sageerr.New(sageerr.CodeDomainNotFound, "unknown domain "+name, sageerr.FieldDomain(name))
	}
	return &dc, nil
}
