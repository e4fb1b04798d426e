package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBackendURL  = "http://127.0.0.1:8766"
	DefaultHTTPTimeout = 30 * time.Second
)

// Config carries every path and endpoint the engine needs, resolved and
// validated up front so adapters can trust them.
type Config struct {
	DataDir     string
	BackendURL  string
	HTTPTimeout time.Duration

	DBPath     string
	SlotPath   string
	DecksDir   string
	LogPath    string
	PluginsDir string
}

type fileConfig struct {
	BackendURL         string `yaml:"backend_url"`
	HTTPTimeoutSeconds int    `yaml:"http_timeout_seconds"`
}

// New resolves a Config rooted at dataDir, applying overrides from
// <dataDir>/config.yaml when that file exists.
func New(dataDir string) (Config, error) {
	if dataDir == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	cfg := Config{
		DataDir:     dataDir,
		BackendURL:  DefaultBackendURL,
		HTTPTimeout: DefaultHTTPTimeout,
	}
	if err := cfg.applyFile(filepath.Join(dataDir, "config.yaml")); err != nil {
		return Config{}, err
	}
	cfg.DBPath = filepath.Join(dataDir, "deckhand.db")
	cfg.SlotPath = filepath.Join(dataDir, "active_generation.json")
	cfg.DecksDir = filepath.Join(dataDir, "decks")
	cfg.LogPath = filepath.Join(dataDir, "logs", "deckhand.log")
	cfg.PluginsDir = filepath.Join(dataDir, "plugins")
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if fc.BackendURL != "" {
		c.BackendURL = fc.BackendURL
	}
	if fc.HTTPTimeoutSeconds > 0 {
		c.HTTPTimeout = time.Duration(fc.HTTPTimeoutSeconds) * time.Second
	}
	return nil
}
