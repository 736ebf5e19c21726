package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bstardust/photokit/pkg/imageio"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	LogLevel    string       `mapstructure:"log_level"`
	Timezone    string       `mapstructure:"timezone"`
	ColorSpace  string       `mapstructure:"color_space"`
	JPEGQuality int          `mapstructure:"jpeg_quality"`
	Concurrency int          `mapstructure:"concurrency"`
	Backup      BackupConfig `mapstructure:"backup"`
}

// BackupConfig controls where pre-edit snapshots are kept
type BackupConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	JournalPath string   `mapstructure:"journal_path"`
	S3          S3Config `mapstructure:"s3"`
}

// S3Config represents S3 connection configuration
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Prefix    string `mapstructure:"prefix"`
}

// New creates a new configuration with default values
func New() *Config {
	return &Config{
		LogLevel:    "info",
		Timezone:    "Local",
		ColorSpace:  string(imageio.SRGB),
		JPEGQuality: imageio.DefaultQuality,
		Concurrency: 4,
		Backup: BackupConfig{
			Enabled: true,
			S3: S3Config{
				Region: "us-east-1",
				UseSSL: true,
				Prefix: "photokit-backups",
			},
		},
	}
}

// Load reads configuration from path, or from photokit.{yaml,json,toml} in
// the working directory or ~/.config/photokit when path is empty. PHOTOKIT_*
// environment variables override file values, e.g. PHOTOKIT_BACKUP_S3_BUCKET.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, New())

	v.SetEnvPrefix("PHOTOKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("photokit")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "photokit"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("timezone", d.Timezone)
	v.SetDefault("color_space", d.ColorSpace)
	v.SetDefault("jpeg_quality", d.JPEGQuality)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("backup.enabled", d.Backup.Enabled)
	v.SetDefault("backup.journal_path", d.Backup.JournalPath)
	v.SetDefault("backup.s3.endpoint", d.Backup.S3.Endpoint)
	v.SetDefault("backup.s3.region", d.Backup.S3.Region)
	v.SetDefault("backup.s3.bucket", d.Backup.S3.Bucket)
	v.SetDefault("backup.s3.access_key", d.Backup.S3.AccessKey)
	v.SetDefault("backup.s3.secret_key", d.Backup.S3.SecretKey)
	v.SetDefault("backup.s3.use_ssl", d.Backup.S3.UseSSL)
	v.SetDefault("backup.s3.prefix", d.Backup.S3.Prefix)
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be between 1 and 100, got %d", c.JPEGQuality)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if _, err := imageio.ParseColorSpace(c.ColorSpace); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone. Empty, "Local" and "auto" select the system
// zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" || c.ZoneFromGPS() {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ZoneFromGPS reports whether capture times are read in the zone of the
// photo's GPS position ("timezone: auto").
func (c *Config) ZoneFromGPS() bool {
	return strings.EqualFold(c.Timezone, "auto")
}

// UseS3 reports whether snapshots go to a bucket instead of the journal file.
func (c *Config) UseS3() bool {
	return c.Backup.S3.Bucket != ""
}
