// Package config loads service configuration from TOML and API keys
// from standard credential locations.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults.
const (
	DefaultListenAddr      = ":8080"
	DefaultKVTimeout       = 10 * time.Second
	DefaultProvider        = "google"
	DefaultModel           = "gemini-2.0-flash"
	DefaultStatsPath       = "memokit.db"
	DefaultSearchDir       = "search"
	DefaultPersonaName     = "megan"
	DefaultMinMessages     = 5
	DefaultExtractInterval = 60 * time.Second
)

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	KV         KVConfig         `toml:"kv"`
	LLM        LLMConfig        `toml:"llm"`
	Stats      StatsConfig      `toml:"stats"`
	Search     SearchConfig     `toml:"search"`
	Extraction ExtractionConfig `toml:"extraction"`
	Persona    PersonaConfig    `toml:"persona"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// KVConfig configures the external key-value service client.
// An empty BaseURL selects the in-process store (dev mode).
type KVConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the configured client timeout.
func (c KVConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultKVTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LLMConfig selects the extraction model.
type LLMConfig struct {
	Provider string `toml:"provider"` // google, openrouter, anthropic
	Model    string `toml:"model"`
	BaseURL  string `toml:"base_url"` // openrouter only
}

// StatsConfig configures the relational store.
type StatsConfig struct {
	Path string `toml:"path"`
}

// SearchConfig configures the memory search index.
type SearchConfig struct {
	Dir string `toml:"dir"`
}

// ExtractionConfig tunes the pipeline gates.
type ExtractionConfig struct {
	MinMessages     int `toml:"min_messages"`
	IntervalSeconds int `toml:"interval_seconds"`
}

// Interval returns the per-conversation extraction interval.
func (c ExtractionConfig) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return DefaultExtractInterval
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

// PersonaConfig names the companion persona.
type PersonaConfig struct {
	Name     string `toml:"name"`
	Fallback string `toml:"fallback"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{ListenAddr: DefaultListenAddr},
		LLM:    LLMConfig{Provider: DefaultProvider, Model: DefaultModel},
		Stats:  StatsConfig{Path: DefaultStatsPath},
		Search: SearchConfig{Dir: DefaultSearchDir},
		Extraction: ExtractionConfig{
			MinMessages:     DefaultMinMessages,
			IntervalSeconds: int(DefaultExtractInterval / time.Second),
		},
		Persona: PersonaConfig{Name: DefaultPersonaName},
	}
}

// StandardPaths returns the config file locations in priority order.
func StandardPaths() []string {
	paths := []string{"memokit.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "memokit", "config.toml"))
	}
	return paths
}

// Load reads the first config file found on the standard paths, or the
// defaults when none exists.
func Load() (*Config, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			cfg, err := LoadFile(path)
			return cfg, path, err
		}
	}
	return Default(), "", nil
}

// LoadFile reads configuration from a specific file. Fields absent from
// the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants the rest of the service assumes.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "google", "openrouter", "openai", "anthropic", "":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model must be set")
	}
	if c.Extraction.MinMessages < 0 {
		return fmt.Errorf("extraction min_messages must be non-negative")
	}
	return nil
}
