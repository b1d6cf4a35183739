// Package config loads runtime settings from KITTYCORE_* environment
// variables.
package config

import (
	"fmt"

	"kittycore/internal/blob"
	"kittycore/internal/core"
	"kittycore/pkg/domain"

	"github.com/caarlos0/env/v11"
)

// BlobDriverNone disables the event archive.
const BlobDriverNone = "none"

// Config is the full runtime configuration.
type Config struct {
	StorageDriver      string         `env:"KITTYCORE_STORAGE_DRIVER"      envDefault:"sqlite"`
	SQLitePath         string         `env:"KITTYCORE_SQLITE_PATH"         envDefault:"kittycore.db"`
	PostgresDSN        string         `env:"KITTYCORE_POSTGRES_DSN"`
	ExistentialDeposit domain.Balance `env:"KITTYCORE_EXISTENTIAL_DEPOSIT" envDefault:"1"`
	RandomSeed         string         `env:"KITTYCORE_RANDOM_SEED"`
	GenesisFile        string         `env:"KITTYCORE_GENESIS_FILE"`
	MetricsFile        string         `env:"KITTYCORE_METRICS_FILE"`
	LogLevel           string         `env:"KITTYCORE_LOG_LEVEL"           envDefault:"info"`
	LogFormat          string         `env:"KITTYCORE_LOG_FORMAT"          envDefault:"text"`
	Blob               BlobConfig
}

// BlobConfig selects the event archive backend.
type BlobConfig struct {
	Driver            string `env:"KITTYCORE_BLOB_DRIVER"               envDefault:"none"`
	FSRoot            string `env:"KITTYCORE_BLOB_FS_ROOT"              envDefault:"./blobdata"`
	S3Bucket          string `env:"KITTYCORE_BLOB_S3_BUCKET"`
	S3Region          string `env:"KITTYCORE_BLOB_S3_REGION"`
	S3Endpoint        string `env:"KITTYCORE_BLOB_S3_ENDPOINT"`
	S3PathStyle       bool   `env:"KITTYCORE_BLOB_S3_PATH_STYLE"`
	S3AccessKeyID     string `env:"KITTYCORE_BLOB_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"KITTYCORE_BLOB_S3_SECRET_ACCESS_KEY"`
	S3SessionToken    string `env:"KITTYCORE_BLOB_S3_SESSION_TOKEN"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks driver names and required fields.
func (c Config) Validate() error {
	switch core.StorageDriver(c.StorageDriver) {
	case core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("KITTYCORE_POSTGRES_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	switch c.Blob.Driver {
	case BlobDriverNone, string(blob.DriverFilesystem), string(blob.DriverMemory):
	case string(blob.DriverS3):
		if c.Blob.S3Bucket == "" {
			return fmt.Errorf("KITTYCORE_BLOB_S3_BUCKET is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	return nil
}

// Storage maps the settings onto the persistent store configuration.
func (c Config) Storage() core.StorageConfig {
	return core.StorageConfig{
		Driver:             core.StorageDriver(c.StorageDriver),
		SQLitePath:         c.SQLitePath,
		PostgresDSN:        c.PostgresDSN,
		ExistentialDeposit: c.ExistentialDeposit,
	}
}

// ArchiveEnabled reports whether events should be archived.
func (c Config) ArchiveEnabled() bool {
	return c.Blob.Driver != "" && c.Blob.Driver != BlobDriverNone
}

// BlobStore maps the settings onto the blob configuration.
func (c Config) BlobStore() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.Blob.Driver),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:          c.Blob.S3Bucket,
			Region:          c.Blob.S3Region,
			Endpoint:        c.Blob.S3Endpoint,
			PathStyle:       c.Blob.S3PathStyle,
			AccessKeyID:     c.Blob.S3AccessKeyID,
			SecretAccessKey: c.Blob.S3SecretAccessKey,
			SessionToken:    c.Blob.S3SessionToken,
		},
	}
}
