package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    Server    `yaml:"server"`
	Minecraft Minecraft `yaml:"minecraft"`
	Registry  Registry  `yaml:"registry"`
	Updater   Updater   `yaml:"updater"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Log       Log       `yaml:"log"`
}

type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type Minecraft struct {
	RootPath       string `yaml:"root_path"`
	Version        string `yaml:"version"`         // empty: detect from server files
	Loader         string `yaml:"loader"`          // fallback when detection finds nothing
	PropertiesPath string `yaml:"properties_path"` // empty: <root_path>/server.properties
	StateFile      string `yaml:"state_file"`
	BackupState    bool   `yaml:"backup_state"`
}

type Registry struct {
	BaseURL         string  `yaml:"base_url"`
	UserAgent       string  `yaml:"user_agent"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
	RPS             float64 `yaml:"rps"`
	Burst           int     `yaml:"burst"`
}

// CacheTTL returns the response cache lifetime
func (r Registry) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLSeconds) * time.Second
}

// Timeout returns the bound on a single registry call
func (r Registry) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

type Updater struct {
	Enabled       bool `yaml:"enabled"`
	IntervalHours int  `yaml:"interval_hours"`
	PauseSeconds  int  `yaml:"pause_seconds"` // pause between mods in one batch
}

// Pause returns the delay between two mods within one batch
func (u Updater) Pause() time.Duration {
	return time.Duration(u.PauseSeconds) * time.Second
}

type RateLimit struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

type Log struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Filename   string `yaml:"filename"`    // log file path
	MaxSize    int    `yaml:"max_size"`    // megabytes
	MaxBackups int    `yaml:"max_backups"` // number of backups
	MaxAge     int    `yaml:"max_age"`     // days
	Compress   bool   `yaml:"compress"`    // compress rotated files
}

// Load loads the configuration from the default config file
func Load() (*Config, error) {
	return LoadFromFile("config/config.yaml")
}

// LoadFromFile loads the configuration from the specified file
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := ensureDirs(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with defaults applied
func Default() *Config {
	return &Config{
		Server: Server{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Minecraft: Minecraft{
			RootPath:    "/home/mc/server",
			Loader:      "fabric",
			StateFile:   "mod_manager_state.json",
			BackupState: true,
		},
		Registry: Registry{
			BaseURL:         "https://api.modrinth.com/v2",
			UserAgent:       "modserver/1.0.0 (github.com/craftops/modserver)",
			CacheTTLSeconds: 300,
			TimeoutSeconds:  30,
			RPS:             4,
			Burst:           8,
		},
		Updater: Updater{
			Enabled:       true,
			IntervalHours: 2,
			PauseSeconds:  1,
		},
		RateLimit: RateLimit{
			RPS:   10,
			Burst: 20,
		},
		Log: Log{
			Level:      "info",
			Filename:   "logs/modserver.log",
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     30,
		},
	}
}

// ModsPath returns the server's mods directory
func (c *Config) ModsPath() string {
	return filepath.Join(c.Minecraft.RootPath, "mods")
}

// StatePath returns the path of the persisted ledger file
func (c *Config) StatePath() string {
	return filepath.Join(c.Minecraft.RootPath, c.Minecraft.StateFile)
}

// DataPath returns the directory holding the audit database
func (c *Config) DataPath() string {
	return filepath.Join(c.Minecraft.RootPath, "data")
}

// PropertiesPath returns the path of server.properties
func (c *Config) PropertiesPath() string {
	if c.Minecraft.PropertiesPath != "" {
		return c.Minecraft.PropertiesPath
	}
	return filepath.Join(c.Minecraft.RootPath, "server.properties")
}

// ensureDirs creates necessary directories if they don't exist
func ensureDirs(cfg *Config) error {
	dirs := []string{
		cfg.ModsPath(),
		cfg.DataPath(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
