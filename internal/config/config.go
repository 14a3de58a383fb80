// Package config loads slideapp settings from .env files, SLIDEAPP_*
// environment variables and an optional YAML file, in that order of
// precedence over the built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"slideapp/internal/blob"
)

// EnvPrefix is prepended to every key when read from the environment.
const EnvPrefix = "SLIDEAPP"

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// ErrUnknownDriver is returned for unsupported storage or blob drivers.
var ErrUnknownDriver = errors.New("config: unknown driver")

// Config is the resolved application configuration.
type Config struct {
	StorageDriver string
	SQLitePath    string
	PostgresDSN   string

	BlobDriver      string
	BlobFSRoot      string
	BlobS3Bucket    string
	BlobS3Region    string
	BlobS3Endpoint  string
	BlobS3PathStyle bool

	LogLevel  string
	LogFormat string

	PrimaryCatalog    string
	SecondaryCatalog  string
	DefaultWidth      int
	Channels          []string
	PrimaryVolumeUL   float64
	SecondaryVolumeUL float64

	MetricsAddr string

	// ConfigFile is the YAML file that was read, if any.
	ConfigFile string
}

var defaults = map[string]any{
	"storage_driver":      StorageSQLite,
	"sqlite_path":         "slideapp.db",
	"blob_driver":         string(blob.DriverFilesystem),
	"blob_fs_root":        "./exports",
	"blob_s3_region":      "us-east-1",
	"log_level":           "info",
	"log_format":          "json",
	"default_width":       3,
	"channels":            "A488,Cy3,A647",
	"primary_volume_ul":   200.0,
	"secondary_volume_ul": 200.0,
	"metrics_addr":        ":9464",
}

// Options controls where Load looks.
type Options struct {
	// ConfigFile is an explicit YAML file; empty searches ./slideapp.yaml.
	ConfigFile string
	// EnvFiles are loaded into the process environment first; missing files
	// are ignored. Nil means .env then .env.local.
	EnvFiles []string
}

// Load resolves configuration.
func Load(opts Options) (*Config, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env", ".env.local"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName("slideapp")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		StorageDriver:     strings.ToLower(v.GetString("storage_driver")),
		SQLitePath:        v.GetString("sqlite_path"),
		PostgresDSN:       v.GetString("postgres_dsn"),
		BlobDriver:        strings.ToLower(v.GetString("blob_driver")),
		BlobFSRoot:        v.GetString("blob_fs_root"),
		BlobS3Bucket:      v.GetString("blob_s3_bucket"),
		BlobS3Region:      v.GetString("blob_s3_region"),
		BlobS3Endpoint:    v.GetString("blob_s3_endpoint"),
		BlobS3PathStyle:   v.GetBool("blob_s3_path_style"),
		LogLevel:          v.GetString("log_level"),
		LogFormat:         v.GetString("log_format"),
		PrimaryCatalog:    v.GetString("primary_catalog"),
		SecondaryCatalog:  v.GetString("secondary_catalog"),
		DefaultWidth:      v.GetInt("default_width"),
		Channels:          splitList(v.Get("channels")),
		PrimaryVolumeUL:   v.GetFloat64("primary_volume_ul"),
		SecondaryVolumeUL: v.GetFloat64("secondary_volume_ul"),
		MetricsAddr:       v.GetString("metrics_addr"),
		ConfigFile:        v.ConfigFileUsed(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks driver names and numeric settings.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageMemory, StorageSQLite, StoragePostgres:
	default:
		return fmt.Errorf("%w: storage %q", ErrUnknownDriver, c.StorageDriver)
	}
	switch blob.Driver(c.BlobDriver) {
	case blob.DriverFilesystem, blob.DriverMemory, blob.DriverS3:
	default:
		return fmt.Errorf("%w: blob %q", ErrUnknownDriver, c.BlobDriver)
	}
	if c.DefaultWidth <= 0 {
		return fmt.Errorf("config: default_width must be positive, got %d", c.DefaultWidth)
	}
	if c.PrimaryVolumeUL < 0 || c.SecondaryVolumeUL < 0 {
		return errors.New("config: volumes must not be negative")
	}
	if len(c.Channels) == 0 {
		return errors.New("config: at least one channel required")
	}
	return nil
}

// Blob returns the blob store settings.
func (c *Config) Blob() blob.Config {
	return blob.Config{
		Driver:      c.BlobDriver,
		FSRoot:      c.BlobFSRoot,
		S3Bucket:    c.BlobS3Bucket,
		S3Region:    c.BlobS3Region,
		S3Endpoint:  c.BlobS3Endpoint,
		S3PathStyle: c.BlobS3PathStyle,
	}
}

// splitList accepts a YAML list or a comma separated string.
func splitList(raw any) []string {
	var parts []string
	switch val := raw.(type) {
	case string:
		parts = strings.Split(val, ",")
	case []string:
		parts = val
	case []any:
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
		}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
