// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package config

import (
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	sageerr "github.com/sageway/sage/pkg/errors"
)

// Config is the top-level Sage configuration.
type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Storage   StorageConfig             `mapstructure:"storage"`
	Embedding EmbeddingConfig           `mapstructure:"embedding"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Routing   RoutingConfig             `mapstructure:"routing"`
	Domains   map[string]DomainConfig   `mapstructure:"domains"`
}

// ServerConfig controls how the HTTP API listens for connections.
type ServerConfig struct {
	Listen         string   `mapstructure:"listen"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StorageConfig selects the data directory and index backend.
type StorageConfig struct {
	DataDir      string `mapstructure:"data_dir"`
	IndexBackend string `mapstructure:"index_backend"`
}

// EmbeddingConfig selects the embedding backend used by semantic search.
type EmbeddingConfig struct {
	Backend    string `mapstructure:"backend"`
	Dimensions int    `mapstructure:"dimensions"`
}

// ProviderConfig holds credentials and endpoint for an LLM provider.
// An empty APIKey means the key is resolved from the environment or the
// OS keyring at startup.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// RoutingConfig maps domains to "provider/model" references.
type RoutingConfig struct {
	Default   string            `mapstructure:"default"`
	Overrides map[string]string `mapstructure:"overrides"`
}

// DomainConfig defines a single query domain: which persona answers it and
// which context sources feed the prompt.
type DomainConfig struct {
	Persona         string       `mapstructure:"persona" yaml:"persona"`
	Temperature     *float32     `mapstructure:"temperature" yaml:"temperature,omitempty"`
	RoleContext     string       `mapstructure:"role_context" yaml:"role_context,omitempty"`
	PatternsEnabled bool         `mapstructure:"patterns_enabled" yaml:"patterns_enabled"`
	Memory          MemoryConfig `mapstructure:"memory" yaml:"memory"`
	LibraryPath     string       `mapstructure:"library_path" yaml:"library_path,omitempty"`
	WebSearch       bool         `mapstructure:"web_search" yaml:"web_search"`
}

// MemoryConfig controls conversation-memory injection for a domain.
// Mode "all" loads recent history on every query; mode "triggers" loads it
// only when the query contains one of the trigger phrases. An empty trigger
// list in "triggers" mode is accepted and simply never fires.
type MemoryConfig struct {
	Enabled         bool     `mapstructure:"enabled" yaml:"enabled"`
	Mode            string   `mapstructure:"mode" yaml:"mode,omitempty"`
	TriggerPhrases  []string `mapstructure:"trigger_phrases" yaml:"trigger_phrases,omitempty"`
	MaxContextChars int      `mapstructure:"max_context_chars" yaml:"max_context_chars,omitempty"`
}

// SetDefaults installs the default values on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:8585")
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.index_backend", "file")
	v.SetDefault("embedding.backend", "hashing")
	v.SetDefault("embedding.dimensions", 384)
	v.SetDefault("routing.default", "anthropic/claude-haiku-4-5")
}

// SetupEnv binds environment variable overrides (prefix SAGE_).
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("SAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix SAGE_).
func Load(path string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)
	SetupEnv(v)

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, sageerr.Errorf(sageerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates a Config from an already initialized
// viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateRouting()...)
	for name, dc := range c.Domains {
		errs = append(errs, dc.Validate(name)...)
	}

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue, "config: server.listen must not be empty"))
		return errs
	}

	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w",
			c.Server.Listen, err,
		))
		return errs
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be a number, got %q",
			portStr,
		))
	} else if port < 1 || port > 65535 {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be between 1 and 65535, got %d",
			port,
		))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	if c.Storage.DataDir == "" {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue, "config: storage.data_dir must not be empty"))
	}

	validBackends := map[string]bool{"file": true, "sqlite": true}
	if !validBackends[c.Storage.IndexBackend] {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: storage.index_backend must be one of [file, sqlite], got %q",
			c.Storage.IndexBackend,
		))
	}

	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error

	validBackends := map[string]bool{"hashing": true, "openai": true}
	if !validBackends[c.Embedding.Backend] {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: embedding.backend must be one of [hashing, openai], got %q",
			c.Embedding.Backend,
		))
	}

	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: embedding.dimensions must be greater than 0, got %d",
			c.Embedding.Dimensions,
		))
	}

	return errs
}

func (c *Config) validateRouting() []error {
	var errs []error

	errs = append(errs, c.validateModelRef("routing.default", c.Routing.Default)...)
	for domain, ref := range c.Routing.Overrides {
		errs = append(errs, c.validateModelRef("routing.overrides."+domain, ref)...)
	}

	return errs
}

func (c *Config) validateModelRef(field, ref string) []error {
	var errs []error

	if ref == "" {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: %s must not be empty", field))
		return errs
	}
	if !strings.Contains(ref, "/") {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: %s must be in \"provider/model\" format, got %q", field, ref))
		return errs
	}
	// Only cross-reference providers when the providers section exists in
	// config. A nil map means no providers section was configured (defaults
	// only on fresh install), which is valid.
	if c.Providers != nil {
		providerName := providerFromRef(ref)
		if _, ok := c.Providers[providerName]; !ok {
			errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
				"config: %s %q references provider %q which is not configured",
				field, ref, providerName,
			))
		}
	}

	return errs
}

// Validate checks a single domain configuration. The domain name is used
// only for error messages.
func (dc *DomainConfig) Validate(name string) []error {
	var errs []error

	validPersonas := map[string]bool{"poet": true, "librarian": true, "researcher": true, "journal": true}
	if !validPersonas[dc.Persona] {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: domains.%s.persona must be one of [poet, librarian, researcher, journal], got %q",
			name, dc.Persona,
		))
	}

	if dc.Temperature != nil && (*dc.Temperature < 0 || *dc.Temperature > 2) {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: domains.%s.temperature must be between 0 and 2, got %g",
			name, *dc.Temperature,
		))
	}

	if dc.Memory.Enabled {
		validModes := map[string]bool{"all": true, "triggers": true}
		if !validModes[dc.Memory.Mode] {
			errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
				"config: domains.%s.memory.mode must be one of [all, triggers], got %q",
				name, dc.Memory.Mode,
			))
		}
		if dc.Memory.MaxContextChars <= 0 {
			errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
				"config: domains.%s.memory.max_context_chars must be greater than 0 when memory is enabled, got %d",
				name, dc.Memory.MaxContextChars,
			))
		}
	}

	return errs
}

// providerFromRef extracts the provider prefix from a "provider/model" string.
func providerFromRef(ref string) string {
	if idx := strings.Index(ref, "/"); idx > 0 {
		return ref[:idx]
	}
	return ref
}
