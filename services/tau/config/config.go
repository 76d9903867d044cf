// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads tau's YAML configuration with environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full tau configuration tree.
type Config struct {
	Server   Server   `yaml:"server"`
	Prover   Prover   `yaml:"prover"`
	Oracle   Oracle   `yaml:"oracle"`
	Feedback Feedback `yaml:"feedback"`
	Proofs   Proofs   `yaml:"proofs"`
	Logging  Logging  `yaml:"logging"`
	Tracing  Tracing  `yaml:"tracing"`
}

// Server configures the HTTP service.
type Server struct {
	Addr string `yaml:"addr"`
}

// Prover configures the why3 invocation.
type Prover struct {
	Binary  string `yaml:"binary"`
	Prover  string `yaml:"prover"`
	Timeout int    `yaml:"timeout_seconds"`
}

// Oracle configures the LLM backend. The API key is taken from the
// environment only and never from the file.
type Oracle struct {
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	MaxTokens int    `yaml:"max_tokens"`

	// APIKeyEnv names the environment variable holding the key.
	// Default: OPENAI_API_KEY.
	APIKeyEnv string `yaml:"api_key_env"`
}

// Feedback configures the refinement loop.
type Feedback struct {
	MaxRounds          int    `yaml:"max_rounds"`
	BugCheckEveryRound bool   `yaml:"bug_check_every_round"`
	OutputDir          string `yaml:"output_dir"`
}

// Proofs configures the certificate cache.
type Proofs struct {
	Dir    string   `yaml:"dir"`
	MaxAge Duration `yaml:"max_age"`
}

// Duration accepts "90m"/"24h" strings in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("config: duration must be a string like \"24h\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// Logging configures log output.
type Logging struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Tracing configures span export. Exporter is "otlp", "stdout", or "none".
type Tracing struct {
	Exporter     string `yaml:"exporter"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080"},
		Prover: Prover{
			Binary:  "why3",
			Prover:  "Alt-Ergo,2.6.2",
			Timeout: 10,
		},
		Oracle: Oracle{
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Feedback: Feedback{
			MaxRounds: 3,
			OutputDir: "output",
		},
		Proofs: Proofs{
			Dir:    ".tau_proofs",
			MaxAge: Duration(90 * 24 * time.Hour),
		},
		Logging: Logging{Level: "info"},
		Tracing: Tracing{
			Exporter:     "otlp",
			OTLPEndpoint: "localhost:4317",
			OTLPInsecure: true,
		},
	}
}

// Load reads the file at path over the defaults and then applies
// environment overrides. An empty path skips the file; a missing file at an
// explicit path is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// APIKey resolves the oracle key from the configured environment variable.
func (c Config) APIKey() string {
	env := c.Oracle.APIKeyEnv
	if env == "" {
		env = "OPENAI_API_KEY"
	}
	return os.Getenv(env)
}

// applyEnv lets deployments override hot settings without editing the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("TAU_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("TAU_PROVER_BINARY"); v != "" {
		c.Prover.Binary = v
	}
	if v := os.Getenv("TAU_PROVER"); v != "" {
		c.Prover.Prover = v
	}
	if v := os.Getenv("TAU_PROVER_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Prover.Timeout = n
		}
	}
	if v := os.Getenv("TAU_ORACLE_MODEL"); v != "" {
		c.Oracle.Model = v
	}
	if v := os.Getenv("TAU_ORACLE_BASE_URL"); v != "" {
		c.Oracle.BaseURL = v
	}
	if v := os.Getenv("TAU_MAX_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Feedback.MaxRounds = n
		}
	}
	if v := os.Getenv("TAU_PROOFS_DIR"); v != "" {
		c.Proofs.Dir = v
	}
	if v := os.Getenv("TAU_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TAU_TRACE_EXPORTER"); v != "" {
		c.Tracing.Exporter = v
	}
	if v := os.Getenv("TAU_OTLP_ENDPOINT"); v != "" {
		c.Tracing.OTLPEndpoint = v
	}
}

func (c Config) validate() error {
	if c.Prover.Timeout <= 0 {
		return fmt.Errorf("config: prover timeout must be positive, got %d", c.Prover.Timeout)
	}
	if c.Feedback.MaxRounds <= 0 {
		return fmt.Errorf("config: max rounds must be positive, got %d", c.Feedback.MaxRounds)
	}
	if c.Proofs.MaxAge < 0 {
		return fmt.Errorf("config: proof max age must not be negative, got %s", c.Proofs.MaxAge)
	}
	switch c.Tracing.Exporter {
	case "", "none", "stdout", "otlp":
	default:
		return fmt.Errorf("config: unknown trace exporter %q", c.Tracing.Exporter)
	}
	return nil
}
