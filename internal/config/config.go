// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from an optional config.yaml and
// environment variables. All required values are validated once at startup;
// a missing value is a fatal startup error, never discovered mid-request.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ExtractorConfig holds the extraction service endpoint and credentials.
// One auth mode must be configured: a static API key, or an OAuth2
// client-credentials triple for gateways that front the model behind a
// token endpoint.
type ExtractorConfig struct {
	BaseURL string
	Model   string
	APIKey  string

	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// UsesClientCredentials reports whether the OAuth2 flow is configured.
func (e ExtractorConfig) UsesClientCredentials() bool {
	return e.TokenURL != "" && e.ClientID != "" && e.ClientSecret != ""
}

// SinkConfig holds the audit log sink endpoint and its static key.
type SinkConfig struct {
	URL      string
	SourceID string
	APIKey   string
}

// Config holds all configuration for the intake service.
type Config struct {
	DatabaseURL string
	RedisURL    string

	// ClaimTTL is how long a subject claim is remembered in Redis.
	ClaimTTL time.Duration

	Extractor ExtractorConfig
	Sink      SinkConfig

	Port int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Extractor struct {
		BaseURL      string   `yaml:"base_url"`
		Model        string   `yaml:"model"`
		APIKey       string   `yaml:"api_key"`
		TokenURL     string   `yaml:"token_url"`
		ClientID     string   `yaml:"client_id"`
		ClientSecret string   `yaml:"client_secret"`
		Scopes       []string `yaml:"scopes"`
	} `yaml:"extractor"`
	Sink struct {
		URL      string `yaml:"url"`
		SourceID string `yaml:"source_id"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"sink"`
}

// Load reads configuration from config.yaml (with env var expansion) when
// present, applies environment variable overrides, then validates.
// A .env file in the working directory is honoured for local development.
func Load() (*Config, error) {
	// Best effort — absence of a .env file is the normal production case.
	_ = godotenv.Load()

	var raw rawConfig
	configPath := envOrDefault("CONFIG_PATH", "config.yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		// Expand ${VAR} references in the YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config YAML %s: %w", configPath, err)
		}
	case os.IsNotExist(err):
		// No config file: env-only configuration.
	default:
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	cfg := &Config{
		DatabaseURL: firstNonEmpty(os.Getenv("DATABASE_URL"), raw.Database.URL),
		RedisURL:    firstNonEmpty(os.Getenv("REDIS_URL"), raw.Redis.URL, "redis://localhost:6379/0"),
		ClaimTTL:    envOrDefaultDuration("CLAIM_TTL", 24*time.Hour),
		Extractor: ExtractorConfig{
			BaseURL:      firstNonEmpty(os.Getenv("EXTRACTOR_BASE_URL"), raw.Extractor.BaseURL, "https://api.openai.com/v1"),
			Model:        firstNonEmpty(os.Getenv("EXTRACTOR_MODEL"), raw.Extractor.Model, "gpt-4o"),
			APIKey:       firstNonEmpty(os.Getenv("OPENAI_API_KEY"), raw.Extractor.APIKey),
			TokenURL:     firstNonEmpty(os.Getenv("EXTRACTOR_TOKEN_URL"), raw.Extractor.TokenURL),
			ClientID:     firstNonEmpty(os.Getenv("EXTRACTOR_CLIENT_ID"), raw.Extractor.ClientID),
			ClientSecret: firstNonEmpty(os.Getenv("EXTRACTOR_CLIENT_SECRET"), raw.Extractor.ClientSecret),
			Scopes:       raw.Extractor.Scopes,
		},
		Sink: SinkConfig{
			URL:      firstNonEmpty(os.Getenv("LOG_SINK_URL"), raw.Sink.URL),
			SourceID: firstNonEmpty(os.Getenv("LOG_SINK_SOURCE"), raw.Sink.SourceID),
			APIKey:   firstNonEmpty(os.Getenv("LOG_SINK_API_KEY"), raw.Sink.APIKey),
		},
		Port: envOrDefaultInt("PORT", 8080),
	}

	if scopes := os.Getenv("EXTRACTOR_SCOPES"); scopes != "" {
		cfg.Extractor.Scopes = strings.Fields(scopes)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string

	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Sink.URL == "" {
		missing = append(missing, "LOG_SINK_URL")
	}
	if c.Sink.SourceID == "" {
		missing = append(missing, "LOG_SINK_SOURCE")
	}
	if c.Sink.APIKey == "" {
		missing = append(missing, "LOG_SINK_API_KEY")
	}
	if c.Extractor.APIKey == "" && !c.Extractor.UsesClientCredentials() {
		missing = append(missing, "OPENAI_API_KEY (or EXTRACTOR_TOKEN_URL/CLIENT_ID/CLIENT_SECRET)")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
