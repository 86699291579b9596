package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Remote library API
	API APIConfig `mapstructure:"api" json:"api"`

	// OAuth client and token persistence
	Auth AuthConfig `mapstructure:"auth" json:"auth"`

	// Local mirror and index locations
	Storage StorageConfig `mapstructure:"storage" json:"storage"`

	// Sync behavior
	Sync SyncConfig `mapstructure:"sync" json:"sync"`

	// Logging
	Log LogConfig `mapstructure:"log" json:"log"`
}

// APIConfig for server communication.
type APIConfig struct {
	BaseURL    string        `mapstructure:"base_url" json:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout" json:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" json:"max_retries"`
	UserAgent  string        `mapstructure:"user_agent" json:"user_agent"`
	PageSize   int           `mapstructure:"page_size" json:"page_size"`
}

// AuthConfig for the OAuth installed-app flow.
type AuthConfig struct {
	// Client secrets JSON downloaded from the provider console
	ClientSecretsFile string `mapstructure:"client_secrets_file" json:"client_secrets_file"`

	// Token persistence
	TokenFile string `mapstructure:"token_file" json:"token_file"`
}

// StorageConfig for local file paths.
type StorageConfig struct {
	DataDir     string `mapstructure:"data_dir" json:"data_dir"`           // Base directory for all data
	DBPath      string `mapstructure:"db_path" json:"db_path"`             // Item index database
	DBTemplate  string `mapstructure:"db_template" json:"db_template"`     // Pre-provisioned database copied on first run
	ImagesDir   string `mapstructure:"images_dir" json:"images_dir"`       // <images_dir>/<year>/<filename>
	VideosDir   string `mapstructure:"videos_dir" json:"videos_dir"`       // <videos_dir>/<year>/<filename>
	MaxFileSize int64  `mapstructure:"max_file_size" json:"max_file_size"` // Max payload size in bytes
}

// SyncConfig for synchronization behavior.
type SyncConfig struct {
	ChunkSize         int           `mapstructure:"chunk_size" json:"chunk_size"`                 // Payload copy buffer
	ReconcileCooldown time.Duration `mapstructure:"reconcile_cooldown" json:"reconcile_cooldown"` // Minimum time between reconciliation passes
	ReconcileWindow   time.Duration `mapstructure:"reconcile_window" json:"reconcile_window"`     // Only recheck items created within this window (0 = all)
	RetryDelay        time.Duration `mapstructure:"retry_delay" json:"retry_delay"`               // Initial HTTP retry delay
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level      string `mapstructure:"level" json:"level"`             // debug, info, warn, error
	Format     string `mapstructure:"format" json:"format"`           // text, json
	File       string `mapstructure:"file" json:"file"`               // Log file path (empty = stdout)
	MaxSize    int    `mapstructure:"max_size" json:"max_size"`       // Max log file size in MB
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"` // Max number of old logs
	MaxAge     int    `mapstructure:"max_age" json:"max_age"`         // Max age in days
	Color      bool   `mapstructure:"color" json:"color"`             // Enable colored output
}

// Day is the unit the cooldown and window settings are usually expressed in.
const Day = 24 * time.Hour

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	cfg := baseConfig()
	cfg.ResolvePaths()
	return cfg
}

// baseConfig holds the defaults before data_dir relative paths are derived.
func baseConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    "https://photoslibrary.googleapis.com/v1/",
			Timeout:    60 * time.Second,
			MaxRetries: 3,
			UserAgent:  "photosync/1.0",
			PageSize:   100,
		},
		Storage: StorageConfig{
			DataDir:     ".photosync",
			MaxFileSize: 16 * 1024 * 1024 * 1024, // 16GB
		},
		Sync: SyncConfig{
			ChunkSize:         8 * 1024,
			ReconcileCooldown: 7 * Day,
			ReconcileWindow:   365 * Day,
			RetryDelay:        time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			File:       "",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Color:      true,
		},
	}
}

// ResolvePaths fills unset paths relative to the data directory and expands "~/".
func (c *Config) ResolvePaths() {
	c.Storage.DataDir = expandHome(c.Storage.DataDir)

	defaults := []struct {
		target *string
		name   string
	}{
		{&c.Storage.DBPath, "photosync.db"},
		{&c.Storage.ImagesDir, "images"},
		{&c.Storage.VideosDir, "videos"},
		{&c.Auth.ClientSecretsFile, "client_secret.json"},
		{&c.Auth.TokenFile, "token.json"},
	}
	for _, d := range defaults {
		if *d.target == "" {
			*d.target = filepath.Join(c.Storage.DataDir, d.name)
		}
		*d.target = expandHome(*d.target)
	}

	c.Storage.DBTemplate = expandHome(c.Storage.DBTemplate)
	c.Log.File = expandHome(c.Log.File)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, path[2:])
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}

	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}

	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries cannot be negative")
	}

	if c.API.PageSize <= 0 || c.API.PageSize > 100 {
		return errors.New("api.page_size must be between 1 and 100")
	}

	if c.Storage.DBPath == "" {
		return errors.New("storage.db_path is required")
	}

	if c.Storage.ImagesDir == "" || c.Storage.VideosDir == "" {
		return errors.New("storage.images_dir and storage.videos_dir are required")
	}

	if c.Storage.MaxFileSize <= 0 {
		return errors.New("storage.max_file_size must be positive")
	}

	if c.Sync.ChunkSize <= 0 {
		return errors.New("sync.chunk_size must be positive")
	}

	if c.Sync.ReconcileCooldown < 0 {
		return errors.New("sync.reconcile_cooldown cannot be negative")
	}

	if c.Sync.ReconcileWindow < 0 {
		return errors.New("sync.reconcile_window cannot be negative")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDir,
		filepath.Dir(c.Storage.DBPath),
		c.Storage.ImagesDir,
		c.Storage.VideosDir,
	}

	if c.Auth.TokenFile != "" {
		dirs = append(dirs, filepath.Dir(c.Auth.TokenFile))
	}

	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
