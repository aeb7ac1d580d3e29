// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package main

import (
	"log/slog"

	"github.com/spf13/viper"

	"github.com/sageway/sage/internal/archive"
	"github.com/sageway/sage/internal/config"
	"github.com/sageway/sage/internal/embed"
	"github.com/sageway/sage/internal/library"
	"github.com/sageway/sage/internal/pattern"
	"github.com/sageway/sage/internal/persona"
	"github.com/sageway/sage/internal/pipeline"
	"github.com/sageway/sage/internal/provider"
	"github.com/sageway/sage/internal/provider/anthropic"
	"github.com/sageway/sage/internal/provider/google"
	"github.com/sageway/sage/internal/provider/openai"
	"github.com/sageway/sage/internal/secrets"
	"github.com/sageway/sage/internal/websearch"
	sageerr "github.com/sageway/sage/pkg/errors"

	// Registers the sqlite-vec index backend.
	_ "github.com/sageway/sage/internal/index/sqlitevec"
)

// app bundles the wired subsystems behind the CLI commands.
type app struct {
	cfg       *config.Config
	pipeline  *pipeline.Pipeline
	patterns  *pattern.Store
	providers *provider.Registry
}

// buildApp resolves configuration from the global viper and wires every
// subsystem: embedder, pattern store, archive, document library, web search,
// and the provider registry feeding the pipeline.
func buildApp() (*app, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if err := cfg.LoadDomainDir(cfg.Storage.DataDir); err != nil {
		return nil, err
	}
	config.WarnInsecurePermissions(viper.ConfigFileUsed())

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	patterns := pattern.NewStore(pattern.StoreConfig{
		Dir:          cfg.Storage.DataDir,
		IndexBackend: cfg.Storage.IndexBackend,
	}, embedder)

	providers := buildProviders(cfg)

	pipe := pipeline.New(pipeline.Options{
		Config:    cfg,
		Personas:  persona.NewRegistry(),
		Patterns:  patterns,
		Archive:   archive.New(cfg.Storage.DataDir),
		Library:   library.NewSearch(cfg.Storage.IndexBackend, cfg.Storage.DataDir, embedder, 0),
		Web:       websearch.NewDuckDuckGo(""),
		Providers: providers,
	})

	return &app{
		cfg:       cfg,
		pipeline:  pipe,
		patterns:  patterns,
		providers: providers,
	}, nil
}

func (a *app) Close() {
	if err := a.providers.Close(); err != nil {
		slog.Warn("closing providers failed", "error", err)
	}
}

func buildEmbedder(cfg *config.Config) (embed.Embedder, error) {
	switch cfg.Embedding.Backend {
	case "openai":
		key, err := apiKey(cfg, "openai")
		if err != nil {
			return nil, sageerr.Wrapf(err, sageerr.CodeCLISetupFailure,
				"embedding backend openai needs an api key")
		}
		return embed.NewOpenAIEmbedder(key, cfg.Providers["openai"].BaseURL)
	default:
		return embed.NewHashingEmbedder(cfg.Embedding.Dimensions), nil
	}
}

// buildProviders registers every provider whose API key resolves. A missing
// key only disables that provider; queries routed to it surface an LLM error
// rather than failing startup.
func buildProviders(cfg *config.Config) *provider.Registry {
	registry := provider.NewRegistry()

	if key, err := apiKey(cfg, "anthropic"); err == nil {
		p, err := anthropic.New(anthropic.Config{APIKey: key, BaseURL: cfg.Providers["anthropic"].BaseURL})
		if err == nil {
			registry.Register("anthropic", p)
		}
	}
	if key, err := apiKey(cfg, "openai"); err == nil {
		p, err := openai.New(openai.Config{APIKey: key, BaseURL: cfg.Providers["openai"].BaseURL})
		if err == nil {
			registry.Register("openai", p)
		}
	}
	if key, err := apiKey(cfg, "google"); err == nil {
		p, err := google.New(google.Config{APIKey: key})
		if err == nil {
			registry.Register("google", p)
		}
	}

	if err := registry.SetDefault(cfg.Routing.Default); err != nil {
		slog.Warn("default model route unavailable", "ref", cfg.Routing.Default, "error", err)
	}
	for domain, ref := range cfg.Routing.Overrides {
		if err := registry.SetOverride(domain, ref); err != nil {
			slog.Warn("domain model route unavailable", "domain", domain, "ref", ref, "error", err)
		}
	}

	return registry
}

// apiKey resolves a provider key: config file first, then environment or
// OS keyring.
func apiKey(cfg *config.Config, providerName string) (string, error) {
	if pc, ok := cfg.Providers[providerName]; ok && pc.APIKey != "" {
		return pc.APIKey, nil
	}
	return secrets.APIKey(providerName)
}
