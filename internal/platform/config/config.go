// Package config loads process configuration from SOLIDCORE_* environment
// variables.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Storage drivers accepted by SOLIDCORE_STORAGE_DRIVER.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Log formats. LogAuto picks console output when stderr is a terminal.
const (
	LogJSON    = "json"
	LogConsole = "console"
	LogAuto    = "auto"
)

// Config is the full process configuration.
type Config struct {
	StorageDriver   string `env:"SOLIDCORE_STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath      string `env:"SOLIDCORE_SQLITE_PATH" envDefault:"solidcore.db"`
	PostgresDSN     string `env:"SOLIDCORE_POSTGRES_DSN"`
	ArchiveEncoding string `env:"SOLIDCORE_ARCHIVE_ENCODING" envDefault:"json"`
	MaxStates       int    `env:"SOLIDCORE_MAX_STATES" envDefault:"0"`
	LogLevel        string `env:"SOLIDCORE_LOG_LEVEL" envDefault:"info"`
	LogFormat       string `env:"SOLIDCORE_LOG_FORMAT" envDefault:"json"`
	AttribPolicy    string `env:"SOLIDCORE_ATTRIB_POLICY"`
	Blob            Blob
}

// Blob configures the export target.
type Blob struct {
	Driver      string `env:"SOLIDCORE_BLOB_DRIVER" envDefault:"fs"`
	FSRoot      string `env:"SOLIDCORE_BLOB_FS_ROOT" envDefault:"./exports"`
	S3Bucket    string `env:"SOLIDCORE_BLOB_S3_BUCKET"`
	S3Region    string `env:"SOLIDCORE_BLOB_S3_REGION" envDefault:"us-east-1"`
	S3Endpoint  string `env:"SOLIDCORE_BLOB_S3_ENDPOINT"`
	S3Prefix    string `env:"SOLIDCORE_BLOB_S3_PREFIX"`
	S3PathStyle bool   `env:"SOLIDCORE_BLOB_S3_PATH_STYLE"`
	// Static credentials for MinIO and similar; empty uses the AWS chain.
	S3AccessKeyID     string `env:"SOLIDCORE_BLOB_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"SOLIDCORE_BLOB_S3_SECRET_ACCESS_KEY"`
}

// Load parses the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFrom parses vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks enumerated values and driver prerequisites.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageMemory, StorageSQLite, StoragePostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	switch strings.ToLower(c.ArchiveEncoding) {
	case "json", "cbor":
	default:
		return fmt.Errorf("unknown archive encoding %q", c.ArchiveEncoding)
	}
	switch c.LogFormat {
	case LogJSON, LogConsole, LogAuto:
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.MaxStates < 0 {
		return fmt.Errorf("max states must not be negative: %d", c.MaxStates)
	}
	switch c.Blob.Driver {
	case "fs", "memory":
	case "s3":
		if c.Blob.S3Bucket == "" {
			return fmt.Errorf("SOLIDCORE_BLOB_S3_BUCKET required for s3 blob driver")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	return nil
}
