// Copyright 2025 Kadir Pekel
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

// Package config loads the intake pipeline's YAML configuration: server
// binding, the Catalog database, Blob Store backend, LLM providers for
// the Analyzer and Summary Engine, and the retrieval-store Indexer.
package config

import "time"

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig              `yaml:"server"`
	Database DatabaseConfig            `yaml:"database"`
	Storage  StorageConfig             `yaml:"storage"`
	LLMs     map[string]*LLMConfig     `yaml:"llms,omitempty"`
	Indexer  IndexerConfig             `yaml:"indexer"`
	Auth     AuthConfig                `yaml:"auth"`
	Intake   IntakeConfig              `yaml:"intake"`
}

// SetDefaults fills every sub-config's defaults.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Database.SetDefaults()
	c.Storage.SetDefaults()
	c.Indexer.SetDefaults()
	c.Intake.SetDefaults()
	for _, llm := range c.LLMs {
		llm.SetDefaults()
	}
}

// ServerConfig configures the Ingress API HTTP/WebSocket listener.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`

	// ReadTimeout bounds an upload request per spec §5 (120s default).
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 120 * time.Second
	}
}

// StorageConfig configures the Blob Store and Cache FS roots.
type StorageConfig struct {
	// Backend selects the Blob Store implementation: "fs" or "s3".
	Backend string `yaml:"backend,omitempty"`

	// WorkspaceRoot is the Cache FS base directory (per-case workspaces
	// live at <WorkspaceRoot>/cases/<case_id>).
	WorkspaceRoot string `yaml:"workspace_root,omitempty"`

	// FSBlobRoot is the Blob Store root when Backend == "fs".
	FSBlobRoot string `yaml:"fs_blob_root,omitempty"`

	// S3Bucket, S3Region configure the Blob Store when Backend == "s3".
	S3Bucket string `yaml:"s3_bucket,omitempty"`
	S3Region string `yaml:"s3_region,omitempty"`

	// MaxUploadBytes caps a single upload (100 MB per spec §5).
	MaxUploadBytes int64 `yaml:"max_upload_bytes,omitempty"`

	// PresignExpiry is the default preview/download URL TTL (3600s).
	PresignExpiry time.Duration `yaml:"presign_expiry,omitempty"`
}

func (c *StorageConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "fs"
	}
	if c.WorkspaceRoot == "" {
		c.WorkspaceRoot = "./.caseflow/workspaces"
	}
	if c.FSBlobRoot == "" {
		c.FSBlobRoot = "./.caseflow/blobs"
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = 100 * 1024 * 1024
	}
	if c.PresignExpiry == 0 {
		c.PresignExpiry = time.Hour
	}
}

// LLMConfig configures one named LLM provider endpoint used by the
// Analyzer and the Summary Engine.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // "anthropic" | "openai"
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
	MaxRetries  int     `yaml:"max_retries,omitempty"`
	RetryDelay  int     `yaml:"retry_delay_seconds,omitempty"`
}

func (c *LLMConfig) SetDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 2
	}
}

// IndexerConfig selects and configures the retrieval-store adapter.
type IndexerConfig struct {
	Provider string `yaml:"provider,omitempty"` // "qdrant" | "chromem"

	QdrantHost string `yaml:"qdrant_host,omitempty"`
	QdrantPort int    `yaml:"qdrant_port,omitempty"`

	ChromemPersistPath string `yaml:"chromem_persist_path,omitempty"`
}

func (c *IndexerConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "chromem"
	}
	if c.QdrantHost == "" {
		c.QdrantHost = "localhost"
	}
	if c.QdrantPort == 0 {
		c.QdrantPort = 6334
	}
}

// AuthConfig configures bearer-token validation at the Ingress edge.
// Issuing credentials is out of scope (see spec.md §1 Non-goals); this
// only validates a token an external auth subsystem already issued.
type AuthConfig struct {
	JWKSURL  string `yaml:"jwks_url,omitempty"`
	Issuer   string `yaml:"issuer,omitempty"`
	Audience string `yaml:"audience,omitempty"`

	// Disabled allows running without auth in local dev/tests.
	Disabled bool `yaml:"disabled,omitempty"`
}

// IntakeConfig tunes the Coordinator and Summary Engine.
type IntakeConfig struct {
	MaxConcurrentDocuments int           `yaml:"max_concurrent_documents,omitempty"`
	SummaryBatchSize       int           `yaml:"summary_batch_size,omitempty"`
	SummaryBatchDelay      time.Duration `yaml:"summary_batch_delay,omitempty"`
	AnalyzerTimeout        time.Duration `yaml:"analyzer_timeout,omitempty"`
	SummaryLLMTimeout      time.Duration `yaml:"summary_llm_timeout,omitempty"`
	ExtractTextCharLimit   int           `yaml:"extract_text_char_limit,omitempty"`
}

func (c *IntakeConfig) SetDefaults() {
	if c.MaxConcurrentDocuments == 0 {
		c.MaxConcurrentDocuments = 8
	}
	if c.SummaryBatchSize == 0 {
		c.SummaryBatchSize = 5
	}
	if c.SummaryBatchDelay == 0 {
		c.SummaryBatchDelay = 2 * time.Second
	}
	if c.AnalyzerTimeout == 0 {
		c.AnalyzerTimeout = 120 * time.Second
	}
	if c.SummaryLLMTimeout == 0 {
		c.SummaryLLMTimeout = 180 * time.Second
	}
	if c.ExtractTextCharLimit == 0 {
		c.ExtractTextCharLimit = 50_000
	}
}
