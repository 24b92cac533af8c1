// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scholar wires the index, tools, generator, and session layers
// into the query coordinator and its HTTP surface.
package scholar

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable for the Scholar service.
//
// Description:
//
//	Loaded from an optional YAML file, then overridden by environment
//	variables. The API key is env-only — it never belongs in a config
//	file that might get committed.
type Config struct {
	// AnthropicAPIKey authenticates provider calls. Env only
	// (ANTHROPIC_API_KEY); required to start.
	AnthropicAPIKey string `yaml:"-"`

	// AnthropicModel is the model used for answer generation.
	AnthropicModel string `yaml:"anthropic_model"`

	// AnthropicBaseURL overrides the provider endpoint, for tests.
	AnthropicBaseURL string `yaml:"anthropic_base_url"`

	// EmbeddingURL is the Ollama /api/embed endpoint.
	EmbeddingURL string `yaml:"embedding_url"`

	// EmbeddingModel is the Ollama embedding model name.
	EmbeddingModel string `yaml:"embedding_model"`

	// ChunkSize is the ingestion chunk size in characters.
	ChunkSize int `yaml:"chunk_size"`

	// ChunkOverlap is the character overlap between adjacent chunks.
	ChunkOverlap int `yaml:"chunk_overlap"`

	// MaxResults caps search results per query.
	MaxResults int `yaml:"max_results"`

	// MaxHistory is the number of retained exchanges per session.
	MaxHistory int `yaml:"max_history"`

	// DataDir is the BadgerDB directory. Empty selects in-memory only.
	DataDir string `yaml:"data_dir"`

	// DocsDir is the course-documents folder loaded at startup and
	// watched afterwards. Empty disables both.
	DocsDir string `yaml:"docs_dir"`

	// ListenAddr is the HTTP bind address.
	ListenAddr string `yaml:"listen_addr"`
}

// DefaultConfig returns the configuration the original deployment ships
// with.
func DefaultConfig() Config {
	return Config{
		AnthropicModel: "claude-sonnet-4-20250514",
		EmbeddingURL:   "http://localhost:11434/api/embed",
		EmbeddingModel: "nomic-embed-text-v2-moe",
		ChunkSize:      800,
		ChunkOverlap:   100,
		MaxResults:     5,
		MaxHistory:     2,
		DataDir:        "./scholar_data",
		DocsDir:        "./docs",
		ListenAddr:     ":8000",
	}
}

// LoadConfig builds the effective configuration: defaults, then the
// YAML file at path (optional, "" skips), then environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	if v := os.Getenv("SCHOLAR_ANTHROPIC_MODEL"); v != "" {
		cfg.AnthropicModel = v
	}
	if v := os.Getenv("SCHOLAR_EMBEDDING_URL"); v != "" {
		cfg.EmbeddingURL = v
	}
	if v := os.Getenv("SCHOLAR_EMBEDDING_MODEL"); v != "" {
		cfg.EmbeddingModel = v
	}
	if v := os.Getenv("SCHOLAR_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("SCHOLAR_DOCS_DIR"); v != "" {
		cfg.DocsDir = v
	}
	if v := os.Getenv("SCHOLAR_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}

	intOverrides := []struct {
		name string
		dst  *int
	}{
		{"SCHOLAR_CHUNK_SIZE", &cfg.ChunkSize},
		{"SCHOLAR_CHUNK_OVERLAP", &cfg.ChunkOverlap},
		{"SCHOLAR_MAX_RESULTS", &cfg.MaxResults},
		{"SCHOLAR_MAX_HISTORY", &cfg.MaxHistory},
	}
	for _, o := range intOverrides {
		v := os.Getenv(o.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parsing %s=%q: %w", o.name, v, err)
		}
		*o.dst = n
	}
	return cfg, nil
}
