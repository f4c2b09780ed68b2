// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the service configuration: embedded YAML defaults,
// overlaid with BRICKQA_* environment variables, validated once, cached
// process-wide.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Defaults
// =============================================================================

//go:embed config.yaml
var defaultConfigYAML []byte

// =============================================================================
// Configuration Types
// =============================================================================

// ServiceConfig is the full service configuration.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type ServiceConfig struct {
	Server   ServerConfig   `yaml:"server" validate:"required"`
	LLM      LLMConfig      `yaml:"llm" validate:"required"`
	Weaviate WeaviateConfig `yaml:"weaviate" validate:"required"`
	Influx   InfluxConfig   `yaml:"influx" validate:"required"`
	SPARQL   SPARQLConfig   `yaml:"sparql" validate:"required"`
	Cache    CacheConfig    `yaml:"cache"`
	Time     TimeConfig     `yaml:"time" validate:"required"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	// ListenAddr is the host:port the HTTP server binds.
	ListenAddr string `yaml:"listen_addr" validate:"required"`

	// RequestTimeoutSeconds bounds one whole question round-trip,
	// model calls included.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" validate:"gt=0"`
}

// LLMConfig configures the chat-model backend.
type LLMConfig struct {
	// BaseURL is the OpenAI-compatible API root.
	BaseURL string `yaml:"base_url" validate:"required,url"`

	// Model is the chat model name.
	Model string `yaml:"model" validate:"required"`

	// APIKey is only read from the environment, never from YAML.
	APIKey string `yaml:"-"`
}

// WeaviateConfig configures vector retrieval.
type WeaviateConfig struct {
	Scheme    string `yaml:"scheme" validate:"required,oneof=http https"`
	Host      string `yaml:"host" validate:"required"`
	ClassName string `yaml:"class_name" validate:"required"`
	TopK      int    `yaml:"top_k" validate:"gt=0"`
}

// InfluxConfig configures the timeseries store.
type InfluxConfig struct {
	URL         string `yaml:"url" validate:"required,url"`
	Org         string `yaml:"org" validate:"required"`
	Bucket      string `yaml:"bucket" validate:"required"`
	Measurement string `yaml:"measurement" validate:"required"`

	// Token is only read from the environment, never from YAML.
	Token string `yaml:"-"`
}

// SPARQLConfig configures the graph endpoint.
type SPARQLConfig struct {
	Endpoint       string `yaml:"endpoint" validate:"required,url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gt=0"`
}

// CacheConfig configures the on-disk retrieval cache. An empty Dir
// disables caching.
type CacheConfig struct {
	Dir string `yaml:"dir"`
}

// TimeConfig pins the building's local timezone for window resolution.
type TimeConfig struct {
	Zone string `yaml:"zone" validate:"required"`
}

// =============================================================================
// Loading
// =============================================================================

var (
	serviceConfigOnce    sync.Once
	cachedServiceConfig  *ServiceConfig
	serviceConfigLoadErr error
	serviceConfigMu      sync.RWMutex
)

// Get returns the cached service configuration, loading it on first call.
//
// Thread Safety: Safe for concurrent use via sync.Once.
func Get() (*ServiceConfig, error) {
	serviceConfigMu.RLock()
	if cachedServiceConfig != nil || serviceConfigLoadErr != nil {
		cfg, err := cachedServiceConfig, serviceConfigLoadErr
		serviceConfigMu.RUnlock()
		return cfg, err
	}
	serviceConfigMu.RUnlock()

	serviceConfigMu.Lock()
	defer serviceConfigMu.Unlock()
	serviceConfigOnce.Do(func() {
		cachedServiceConfig, serviceConfigLoadErr = Load(defaultConfigYAML)
	})
	return cachedServiceConfig, serviceConfigLoadErr
}

// Reset clears the cached config so tests can reload with different data.
//
// Thread Safety: Safe for concurrent use.
func Reset() {
	serviceConfigMu.Lock()
	defer serviceConfigMu.Unlock()
	cachedServiceConfig = nil
	serviceConfigLoadErr = nil
	serviceConfigOnce = sync.Once{}
}

// Load parses YAML bytes, applies environment overrides, and validates.
//
// Outputs:
//
//	*ServiceConfig - The validated configuration. Never nil on success.
//	error - Non-nil if parsing or validation failed.
func Load(data []byte) (*ServiceConfig, error) {
	var cfg ServiceConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides overlays BRICKQA_* environment variables. Secrets
// (API key, Influx token) have no YAML fallback at all.
func applyEnvOverrides(cfg *ServiceConfig) {
	setString(&cfg.Server.ListenAddr, "BRICKQA_LISTEN_ADDR")
	setInt(&cfg.Server.RequestTimeoutSeconds, "BRICKQA_REQUEST_TIMEOUT_SECONDS")

	setString(&cfg.LLM.BaseURL, "BRICKQA_LLM_BASE_URL")
	setString(&cfg.LLM.Model, "BRICKQA_LLM_MODEL")
	cfg.LLM.APIKey = os.Getenv("BRICKQA_LLM_API_KEY")

	setString(&cfg.Weaviate.Scheme, "BRICKQA_WEAVIATE_SCHEME")
	setString(&cfg.Weaviate.Host, "BRICKQA_WEAVIATE_HOST")
	setString(&cfg.Weaviate.ClassName, "BRICKQA_WEAVIATE_CLASS")
	setInt(&cfg.Weaviate.TopK, "BRICKQA_WEAVIATE_TOP_K")

	setString(&cfg.Influx.URL, "BRICKQA_INFLUX_URL")
	setString(&cfg.Influx.Org, "BRICKQA_INFLUX_ORG")
	setString(&cfg.Influx.Bucket, "BRICKQA_INFLUX_BUCKET")
	setString(&cfg.Influx.Measurement, "BRICKQA_INFLUX_MEASUREMENT")
	cfg.Influx.Token = os.Getenv("BRICKQA_INFLUX_TOKEN")

	setString(&cfg.SPARQL.Endpoint, "BRICKQA_SPARQL_ENDPOINT")
	setInt(&cfg.SPARQL.TimeoutSeconds, "BRICKQA_SPARQL_TIMEOUT_SECONDS")

	setString(&cfg.Cache.Dir, "BRICKQA_CACHE_DIR")
	setString(&cfg.Time.Zone, "BRICKQA_TIMEZONE")
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
