package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	envPrefix  string
	v          *viper.Viper
}

// NewLoader creates a config loader. An empty path searches the default locations.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		envPrefix:  "PHOTOSYNC",
		v:          viper.New(),
	}
}

// Load reads configuration from file and environment.
func (l *Loader) Load() (*Config, error) {
	l.registerDefaults(baseConfig())

	// Environment overrides: PHOTOSYNC_LOG_LEVEL -> log.level
	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configPath != "" {
		l.v.SetConfigFile(l.configPath)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else {
		l.v.SetConfigName("photosync")
		for _, path := range l.defaultPaths() {
			l.v.AddConfigPath(path)
		}
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("load config file %s: %w", l.v.ConfigFileUsed(), err)
			}
			// No config file is fine, defaults and env apply
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	cfg.ResolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ConfigFileUsed reports the file that was read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// defaultPaths returns default config file locations.
func (l *Loader) defaultPaths() []string {
	paths := []string{"."}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(homeDir, ".config", "photosync"),
			filepath.Join(homeDir, ".photosync"),
		)
	}

	return paths
}

// registerDefaults makes every key known to viper so env overrides reach Unmarshal.
// Paths derived from data_dir are registered empty and resolved after loading.
func (l *Loader) registerDefaults(d *Config) {
	defaults := map[string]interface{}{
		"api.base_url":    d.API.BaseURL,
		"api.timeout":     d.API.Timeout,
		"api.max_retries": d.API.MaxRetries,
		"api.user_agent":  d.API.UserAgent,
		"api.page_size":   d.API.PageSize,

		"auth.client_secrets_file": "",
		"auth.token_file":          "",

		"storage.data_dir":      d.Storage.DataDir,
		"storage.db_path":       "",
		"storage.db_template":   "",
		"storage.images_dir":    "",
		"storage.videos_dir":    "",
		"storage.max_file_size": d.Storage.MaxFileSize,

		"sync.chunk_size":         d.Sync.ChunkSize,
		"sync.reconcile_cooldown": d.Sync.ReconcileCooldown,
		"sync.reconcile_window":   d.Sync.ReconcileWindow,
		"sync.retry_delay":        d.Sync.RetryDelay,

		"log.level":       d.Log.Level,
		"log.format":      d.Log.Format,
		"log.file":        d.Log.File,
		"log.max_size":    d.Log.MaxSize,
		"log.max_backups": d.Log.MaxBackups,
		"log.max_age":     d.Log.MaxAge,
		"log.color":       d.Log.Color,
	}

	for key, value := range defaults {
		l.v.SetDefault(key, value)
	}
}

// SaveExample writes an example config file.
func SaveExample(path string) error {
	v := viper.New()
	cfg := DefaultConfig()

	v.Set("api.base_url", cfg.API.BaseURL)
	v.Set("api.timeout", cfg.API.Timeout.String())
	v.Set("api.page_size", cfg.API.PageSize)
	v.Set("auth.client_secrets_file", cfg.Auth.ClientSecretsFile)
	v.Set("auth.token_file", cfg.Auth.TokenFile)
	v.Set("storage.data_dir", cfg.Storage.DataDir)
	v.Set("storage.images_dir", cfg.Storage.ImagesDir)
	v.Set("storage.videos_dir", cfg.Storage.VideosDir)
	v.Set("sync.reconcile_cooldown", cfg.Sync.ReconcileCooldown.String())
	v.Set("sync.reconcile_window", cfg.Sync.ReconcileWindow.String())
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}
