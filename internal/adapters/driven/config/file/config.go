// Package file provides TOML-file-based configuration loading.
package file

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full application configuration.
type Config struct {
	Ingestion IngestionConfig `toml:"ingestion"`
	Chunker   ChunkerConfig   `toml:"chunker"`
	Library   LibraryConfig   `toml:"library"`
	Scraper   ScraperConfig   `toml:"scraper"`
	AI        AIConfig        `toml:"ai"`
	Vector    VectorConfig    `toml:"vector"`
	Server    ServerConfig    `toml:"server"`
}

// IngestionConfig carries run-level tunables.
type IngestionConfig struct {
	LockKey          string `toml:"lock_key"`
	LockTTLMinutes   int    `toml:"lock_ttl_minutes"`
	MaxRetries       int    `toml:"max_retries"`
	MinContentLength int    `toml:"min_content_length"`

	// DataDir holds the SQLite state database. Empty selects
	// ~/.ragsync/data.
	DataDir string `toml:"data_dir"`
}

// ChunkerConfig carries the sliding-window parameters.
type ChunkerConfig struct {
	WindowSize       int `toml:"window_size"`
	Overlap          int `toml:"overlap"`
	MinSectionLength int `toml:"min_section_length"`
}

// LibraryConfig configures the document library client.
type LibraryConfig struct {
	BaseURL      string   `toml:"base_url"`
	TokenURL     string   `toml:"token_url"`
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	Scopes       []string `toml:"scopes"`
	URLListName  string   `toml:"url_list_name"`
}

// ScraperConfig configures the external page scraper.
type ScraperConfig struct {
	TimeoutSeconds int     `toml:"timeout_seconds"`
	RateLimit      float64 `toml:"rate_limit"`
	UserAgent      string  `toml:"user_agent"`
}

// AIConfig configures the text normaliser.
type AIConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
	Model   string `toml:"model"`
}

// VectorConfig configures the vector store client.
type VectorConfig struct {
	Endpoint  string `toml:"endpoint"`
	Token     string `toml:"token"`
	Namespace string `toml:"namespace"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// Default returns a configuration with every tunable at its default.
// Connection settings (URLs, credentials) have no defaults and must come
// from the file or environment.
func Default() Config {
	return Config{
		Ingestion: IngestionConfig{
			LockKey:          "rag_ingestion",
			LockTTLMinutes:   60,
			MaxRetries:       3,
			MinContentLength: 100,
		},
		Chunker: ChunkerConfig{
			WindowSize:       25000,
			Overlap:          8000,
			MinSectionLength: 30,
		},
		Scraper: ScraperConfig{
			TimeoutSeconds: 30,
			RateLimit:      2,
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
	}
}

// DefaultPath is the configuration file location used when none is given:
// ~/.ragsync/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".ragsync", "config.toml"), nil
}

// Load reads the TOML file at path, layered over the defaults. A missing
// file is not an error: the defaults stand alone.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return cfg, err
		}
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}
