package domain

import "time"

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Htsget   HtsgetConfig   `mapstructure:"htsget"`
	Indexing IndexingConfig `mapstructure:"indexing"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Debug    bool           `mapstructure:"debug_mode"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds catalog store settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// HtsgetConfig holds ticket planner settings. ChunkSize is the per-slice
// record cap; BucketSize is the width in bp of one position bucket.
type HtsgetConfig struct {
	URL        string `mapstructure:"url"`
	ChunkSize  int64  `mapstructure:"chunk_size"`
	BucketSize int64  `mapstructure:"bucket_size"`
}

// IndexingConfig holds the touch-file queue settings.
type IndexingConfig struct {
	Path string `mapstructure:"path"`
}

// AuthConfig holds policy point and credential issuer endpoints plus the
// shared-secret test key.
type AuthConfig struct {
	TestKey      string        `mapstructure:"test_key"`
	OpaURL       string        `mapstructure:"opa_url"`
	OpaSecret    string        `mapstructure:"opa_secret"`
	VaultURL     string        `mapstructure:"vault_url"`
	VaultS3Token string        `mapstructure:"vault_s3_token"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
