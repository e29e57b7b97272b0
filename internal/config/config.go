// Package config loads service configuration from defaults, an optional
// YAML file and INVENTORYBOT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aeranixia/Inventory-Bot/internal/clock"
)

// EnvPrefix prefixes every environment override, e.g.
// INVENTORYBOT_SERVER_ADDRESS.
const EnvPrefix = "INVENTORYBOT"

// Config holds all service configuration.
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Auth        AuthConfig     `mapstructure:"auth"`
	Clock       ClockConfig    `mapstructure:"clock"`
	Jobs        JobsConfig     `mapstructure:"jobs"`
	Backup      BackupConfig   `mapstructure:"backup"`
	Images      ImagesConfig   `mapstructure:"images"`
	Notify      NotifyConfig   `mapstructure:"notify"`
	S3          S3Config       `mapstructure:"s3"`
	Metrics     MetricsConfig  `mapstructure:"metrics"`
	Log         LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	// JWTSecret overrides the secret stored in the database.
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type ClockConfig struct {
	UTCOffsetHours int `mapstructure:"utc_offset_hours"`
}

type JobsConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	BackupTime   string        `mapstructure:"backup_time"`
	ArchiveTime  string        `mapstructure:"archive_time"`
}

type BackupConfig struct {
	Dir              string `mapstructure:"dir"`
	KeepDays         int    `mapstructure:"keep_days"`
	UploadLimitBytes int64  `mapstructure:"upload_limit_bytes"`
}

type ImagesConfig struct {
	Dir         string        `mapstructure:"dir"`
	WaitTimeout time.Duration `mapstructure:"wait_timeout"`
}

type NotifyConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RatePerSec float64       `mapstructure:"rate_per_sec"`
}

type S3Config struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

// New returns a viper instance with defaults and environment binding, ready
// for flags to be bound before Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file (or inventorybot.yaml from the working directory when
// file is empty) into v and returns the validated configuration. A missing
// default file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("inventorybot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.address", "127.0.0.1:8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "150s")

	v.SetDefault("database.path", "./data/inventory.db")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "168h")

	v.SetDefault("clock.utc_offset_hours", clock.DefaultOffsetHours)

	v.SetDefault("jobs.tick_interval", "1m")
	v.SetDefault("jobs.backup_time", "18:40")
	v.SetDefault("jobs.archive_time", "18:50")

	v.SetDefault("backup.dir", "./data/backups")
	v.SetDefault("backup.keep_days", 60)
	v.SetDefault("backup.upload_limit_bytes", 8<<20)

	v.SetDefault("images.dir", "./data/images")
	v.SetDefault("images.wait_timeout", "120s")

	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.timeout", "30s")
	v.SetDefault("notify.rate_per_sec", 2.0)

	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.prefix", "inventorybot/")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("log.path", "")
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Clock.UTCOffsetHours < -12 || c.Clock.UTCOffsetHours > 14 {
		return fmt.Errorf("clock.utc_offset_hours %d is out of range", c.Clock.UTCOffsetHours)
	}
	if _, _, err := clock.ParseTimeOfDay(c.Jobs.BackupTime); err != nil {
		return fmt.Errorf("jobs.backup_time: %w", err)
	}
	if _, _, err := clock.ParseTimeOfDay(c.Jobs.ArchiveTime); err != nil {
		return fmt.Errorf("jobs.archive_time: %w", err)
	}
	if c.Backup.KeepDays < 1 {
		return errors.New("backup.keep_days must be at least 1")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		return errors.New("s3.bucket is required when s3 is enabled")
	}
	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("log.format %q must be auto, text or json", c.Log.Format)
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
