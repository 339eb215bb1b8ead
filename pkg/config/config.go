// Package config loads the layered configuration for the multipart
// planner and the s3fs-mpctl CLI: a YAML config file over built-in
// defaults, with S3FS_* environment variables overriding keys the file
// sets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/soitun/s3fs-fuse/internal/bytesize"
	"github.com/soitun/s3fs-fuse/internal/logger"
)

// Config is the complete static configuration of the planner/CLI.
type Config struct {
	Remote    RemoteConfig    `mapstructure:"remote" yaml:"remote"`
	Multipart MultipartConfig `mapstructure:"multipart" yaml:"multipart"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// RemoteConfig configures the S3-compatible remote object store.
type RemoteConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket" validate:"required"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	UsePathStyle    bool   `mapstructure:"use_path_style" yaml:"use_path_style"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
}

// MultipartConfig configures the planner's size and concurrency policy.
type MultipartConfig struct {
	// PartSize is M, the configured multipart granularity. Accepts
	// human-readable sizes ("10MiB") via bytesize.ByteSize.
	PartSize bytesize.ByteSize `mapstructure:"part_size" yaml:"part_size"`

	// MinPartSize and MaxPartSize default to the canonical S3 limits
	// (5MiB / 5GiB). They are loaded and saved with the configuration, but
	// the CLI's planners use multipart.MinPartSize and
	// multipart.MaxPartSize and do not read these fields.
	MinPartSize bytesize.ByteSize `mapstructure:"min_part_size" yaml:"min_part_size"`
	MaxPartSize bytesize.ByteSize `mapstructure:"max_part_size" yaml:"max_part_size"`

	// UseCopy enables server-side UploadPartCopy for untouched regions of
	// a previously uploaded object version.
	UseCopy bool `mapstructure:"use_copy" yaml:"use_copy"`

	// Workers is the size of the process-global worker pool.
	Workers int `mapstructure:"workers" yaml:"workers"`

	// QueueSize bounds the worker pool's internal request queue.
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig holds the Prometheus metrics settings. It is loaded and
// saved with the configuration; no command in this module starts a metrics
// server from it.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// Default returns a Config with the canonical S3 multipart bounds and a
// 10MiB part size, matching the Planner's documented default.
func Default() *Config {
	return &Config{
		Multipart: MultipartConfig{
			PartSize:    10 * bytesize.MiB,
			MinPartSize: 5 * bytesize.MiB,
			MaxPartSize: 5 * bytesize.GiB,
			UseCopy:     true,
			Workers:     4,
			QueueSize:   1024,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: false, Addr: ":9090"},
	}
}

// Load loads configuration from file, environment, and defaults.
//
// Precedence (highest to lowest): environment variables (S3FS_*),
// configuration file, defaults. Environment variables override only keys
// that the config file sets; when no config file is found, Load returns
// Default() unchanged and does not consult the environment. Load applies
// no CLI flags.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return Default(), nil
	}

	cfg := Default()
	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("S3FS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("s3fs-mpctl")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ApplyLogging initializes the global logger from cfg.
func ApplyLogging(cfg LoggingConfig) error {
	return logger.Init(logger.Config{
		Level:  logger.ParseLevel(cfg.Level),
		Format: logger.ParseFormat(cfg.Format),
	})
}
