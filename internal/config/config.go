package config

import (
	"fmt"
	"strings"

	"github.com/htsget-drs-server/internal/domain"
	"github.com/spf13/viper"
)

// Manager loads and validates service configuration using Viper.
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from file, environment and defaults.
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/htsget-server/")

	viper.SetEnvPrefix("HTSGET")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars cover everything.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values.
func (m *Manager) setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 3000)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "120s")
	viper.SetDefault("server.idle_timeout", "120s")

	viper.SetDefault("database.path", "./data/files.db")

	viper.SetDefault("htsget.url", "http://localhost:3000")
	viper.SetDefault("htsget.chunk_size", 10000)
	viper.SetDefault("htsget.bucket_size", 1000000)

	viper.SetDefault("indexing.path", "./data/indexing")

	viper.SetDefault("auth.test_key", "")
	viper.SetDefault("auth.opa_url", "http://localhost:8181")
	viper.SetDefault("auth.opa_secret", "")
	viper.SetDefault("auth.vault_url", "http://localhost:8200")
	viper.SetDefault("auth.vault_s3_token", "")
	viper.SetDefault("auth.timeout", "10s")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("debug_mode", false)
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration.
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetHtsgetConfig returns htsget planner configuration.
func (m *Manager) GetHtsgetConfig() *domain.HtsgetConfig {
	return &m.config.Htsget
}

// Validate validates the configuration.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if config.Htsget.ChunkSize <= 0 {
		return fmt.Errorf("invalid htsget chunk size: %d", config.Htsget.ChunkSize)
	}
	if config.Htsget.BucketSize <= 0 {
		return fmt.Errorf("invalid htsget bucket size: %d", config.Htsget.BucketSize)
	}
	if config.Indexing.Path == "" {
		return fmt.Errorf("indexing queue path is required")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// IsDebug returns true when verbose logging was requested.
func (m *Manager) IsDebug() bool {
	return m.config.Debug || strings.ToLower(m.config.Logging.Level) == "debug"
}
