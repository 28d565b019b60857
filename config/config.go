// Package config loads the server configuration from a TOML file, with
// working defaults when no file exists.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Listen      string  `toml:"listen"`
	DataDir     string  `toml:"data_dir"`
	Storage     string  `toml:"storage"` // "json" or "sqlite"
	DetectorURL string  `toml:"detector_url"`
	LogLevel    string  `toml:"log_level"`
	Capture     Capture `toml:"capture"`
}

// Capture configures the optional shared-memory frame source.
type Capture struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
	Name    string `toml:"name"`
	Owner   string `toml:"owner"`
}

func Default() *Config {
	return &Config{
		Listen:      ":8080",
		DataDir:     "./data",
		Storage:     "json",
		DetectorURL: "http://127.0.0.1:8500/detect",
		LogLevel:    "info",
		Capture: Capture{
			Dir:  "/dev/shm",
			Name: "video_frame",
		},
	}
}

// Load reads path and overlays it on the defaults. A missing file is not
// an error; the defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage {
	case "json", "sqlite":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage)
	}
	if c.Capture.Enabled && c.Capture.Name == "" {
		return fmt.Errorf("config: capture enabled without a frame name")
	}
	return nil
}

// PeoplePath is the identity store location for the selected backend.
func (c *Config) PeoplePath() string {
	if c.Storage == "sqlite" {
		return filepath.Join(c.DataDir, "people.db")
	}
	return filepath.Join(c.DataDir, "people.json")
}

// FacesDir is where enrollment crops are written.
func (c *Config) FacesDir() string {
	return filepath.Join(c.DataDir, "faces")
}

// Level maps the configured log level onto slog.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
