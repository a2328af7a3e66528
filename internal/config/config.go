// Package config provides configuration loading for thoughtd.
//
// Configuration is read from a YAML file and overridden by THOUGHTD_*
// environment variables, with hardcoded defaults underneath.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete thoughtd configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Store      StoreConfig      `koanf:"store"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	LLM        LLMConfig        `koanf:"llm"`
	NATS       NATSConfig       `koanf:"nats"`
	Spool      SpoolConfig      `koanf:"spool"`
	Agent      AgentConfig      `koanf:"agent"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// StoreConfig holds thought store configuration.
type StoreConfig struct {
	// Path is the SQLite database file. Empty means in-memory.
	Path string `koanf:"path"`
	// VectorBackend selects the vector index: auto, memory or chromem.
	VectorBackend string `koanf:"vector_backend"`
	// ChromemPath persists the chromem index. Empty keeps it in-memory.
	ChromemPath string `koanf:"chromem_path"`
	// EmbeddingDim is the vector width every stored thought must match.
	EmbeddingDim int `koanf:"embedding_dim"`
}

// EmbeddingsConfig holds embedding provider configuration.
type EmbeddingsConfig struct {
	Provider  string `koanf:"provider"`
	Model     string `koanf:"model"`
	BaseURL   string `koanf:"base_url"`
	APIKey    Secret `koanf:"api_key"`
	Dimension int    `koanf:"dimension"`
}

// LLMConfig holds the reflection/agent LLM client configuration.
type LLMConfig struct {
	Provider          string  `koanf:"provider"`
	Model             string  `koanf:"model"`
	BaseURL           string  `koanf:"base_url"`
	APIKey            Secret  `koanf:"api_key"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

// NATSConfig holds event publishing configuration.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
}

// SpoolConfig holds the transcript spool watcher configuration.
type SpoolConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
}

// AgentConfig holds agent loop defaults.
type AgentConfig struct {
	// ReflectEvery triggers a reflection after every Nth agent turn.
	ReflectEvery int `koanf:"reflect_every"`
	// RecallLimit caps how many prior thoughts are injected per turn.
	RecallLimit int `koanf:"recall_limit"`
}

// LoggingConfig holds the logging section. It is mapped onto the logging
// package's own config at startup.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	OTEL   bool   `koanf:"otel"`
}

// TelemetryConfig holds the telemetry section. It is mapped onto the
// telemetry package's own config at startup.
type TelemetryConfig struct {
	Enabled      bool     `koanf:"enabled"`
	Endpoint     string   `koanf:"endpoint"`
	Protocol     string   `koanf:"protocol"`
	Insecure     bool     `koanf:"insecure"`
	SamplingRate float64  `koanf:"sampling_rate"`
	Shutdown     Duration `koanf:"shutdown"`
}

// NewDefaultConfig returns the hardcoded defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Store: StoreConfig{
			VectorBackend: "auto",
			EmbeddingDim:  384,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "hash",
			Model:     "text-embedding-3-small",
			BaseURL:   "https://api.openai.com/v1",
			Dimension: 384,
		},
		LLM: LLMConfig{
			Provider:          "openai",
			Model:             "gpt-4o-mini",
			BaseURL:           "https://api.openai.com/v1",
			RequestsPerSecond: 2,
			Burst:             4,
		},
		NATS: NATSConfig{
			Enabled: false,
			URL:     "nats://127.0.0.1:4222",
		},
		Spool: SpoolConfig{
			Enabled: false,
		},
		Agent: AgentConfig{
			ReflectEvery: 3,
			RecallLimit:  5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			Endpoint:     "localhost:4317",
			Protocol:     "grpc",
			Insecure:     true,
			SamplingRate: 1.0,
			Shutdown:     Duration(5 * time.Second),
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("server shutdown_timeout must be positive")
	}
	switch c.Store.VectorBackend {
	case "auto", "memory", "chromem":
	default:
		return fmt.Errorf("store vector_backend must be auto, memory or chromem, got %q", c.Store.VectorBackend)
	}
	if c.Store.EmbeddingDim <= 0 {
		return fmt.Errorf("store embedding_dim must be positive, got %d", c.Store.EmbeddingDim)
	}
	if c.Embeddings.Dimension < 0 {
		return fmt.Errorf("embeddings dimension cannot be negative, got %d", c.Embeddings.Dimension)
	}
	if c.LLM.RequestsPerSecond <= 0 {
		return errors.New("llm requests_per_second must be positive")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return errors.New("nats url is required when nats is enabled")
	}
	if c.Spool.Enabled && c.Spool.Dir == "" {
		return errors.New("spool dir is required when the spool watcher is enabled")
	}
	if c.Agent.ReflectEvery < 0 {
		return errors.New("agent reflect_every cannot be negative")
	}
	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry endpoint is required when telemetry is enabled")
		}
		if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
			return fmt.Errorf("telemetry sampling_rate must be between 0 and 1, got %f", c.Telemetry.SamplingRate)
		}
	}
	return nil
}
