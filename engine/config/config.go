// Package config loads the engine's tuning knobs from a YAML file. Every
// knob has a working default; the file only overrides memory/latency
// trade-offs and never changes rendering behavior.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fieldstone/isomap/engine/iso"
)

// Config holds all engine configuration.
type Config struct {
	Renderer RendererConfig `yaml:"renderer"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// RendererConfig holds cache and render-queue settings.
type RendererConfig struct {
	// ChunkWindow is the tile edge length of one chunk.
	ChunkWindow int `yaml:"chunk_window"`
	// ZoomBudgets is the per-zoom-level chunk cache capacity, index 0 =
	// smallest tiles. Lower levels see more, smaller chunks at once and
	// get the larger budgets.
	ZoomBudgets []int `yaml:"zoom_budgets"`
	// TextureCacheSize bounds the per-tile texture cache.
	TextureCacheSize int `yaml:"texture_cache_size"`
	// RenderBatch is the number of chunk populations in flight at once.
	RenderBatch int `yaml:"render_batch"`
}

// ServerConfig holds asset-server settings.
type ServerConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from a YAML file and fills in defaults for
// anything the file leaves unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Renderer.ChunkWindow == 0 {
		c.Renderer.ChunkWindow = 32
	}
	if len(c.Renderer.ZoomBudgets) == 0 {
		c.Renderer.ZoomBudgets = []int{128, 96, 64, 48}
	}
	if len(c.Renderer.ZoomBudgets) != iso.NumZooms {
		return fmt.Errorf("config: zoom_budgets needs %d entries, got %d",
			iso.NumZooms, len(c.Renderer.ZoomBudgets))
	}
	if c.Renderer.TextureCacheSize == 0 {
		c.Renderer.TextureCacheSize = 256
	}
	if c.Renderer.RenderBatch == 0 {
		c.Renderer.RenderBatch = 6
	}
	if c.Server.TimeoutSeconds == 0 {
		c.Server.TimeoutSeconds = 10
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	return nil
}
