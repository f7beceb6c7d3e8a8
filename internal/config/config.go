// Package config loads scrapevault's configuration from a YAML file
// (with env/flag overrides) using viper, with defaults applied before
// the file is read so every field has a sane value even with no config
// file present.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Download DownloadConfig `mapstructure:"download"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CrawlConfig controls CrawlPool behavior.
type CrawlConfig struct {
	MaxDepth         int  `mapstructure:"max_depth"`
	Workers          int  `mapstructure:"workers"`
	AdaptiveEnabled  bool `mapstructure:"adaptive_enabled"`
	AdaptiveInterval int  `mapstructure:"adaptive_interval_seconds"`
	AllowCrossDomain bool `mapstructure:"allow_cross_domain"`
	QueueCapacity    int  `mapstructure:"queue_capacity"`
}

// DownloadConfig controls DownloadPool behavior.
type DownloadConfig struct {
	Workers          int     `mapstructure:"workers"`
	MaxRetries       int     `mapstructure:"max_retries"`
	RetryBaseSeconds float64 `mapstructure:"retry_base_seconds"`
	MinFreeBytes     int64   `mapstructure:"min_free_bytes"`
	ReserveBytes     int64   `mapstructure:"reserve_bytes"`
	ChunkBytes       int     `mapstructure:"chunk_bytes"`
	CacheSkewBytes   int64   `mapstructure:"cache_skew_bytes"`
}

// FetchConfig controls FetchClient behavior.
type FetchConfig struct {
	RequestTimeoutSeconds  int     `mapstructure:"request_timeout_seconds"`
	HeadTimeoutSeconds     int     `mapstructure:"head_timeout_seconds"`
	DownloadTimeoutSeconds int     `mapstructure:"download_timeout_seconds"`
	MaxRetries             int     `mapstructure:"max_retries"`
	RetryBaseSeconds       float64 `mapstructure:"retry_base_seconds"`
	RotateUserAgent        bool    `mapstructure:"rotate_user_agent"`
	ProxyURL               string  `mapstructure:"proxy_url"`
}

// CatalogConfig points at the durable SQLite store.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig controls log level, directory and rotation.
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures lumberjack log rotation.
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// Load reads configPath (or searches ./configs, ., and ~/.scrapevault
// when empty), applies defaults, and unmarshals into a Config.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".scrapevault"))
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.max_depth", 3)
	v.SetDefault("crawl.workers", 5)
	v.SetDefault("crawl.adaptive_enabled", true)
	v.SetDefault("crawl.adaptive_interval_seconds", 2)
	v.SetDefault("crawl.allow_cross_domain", false)
	v.SetDefault("crawl.queue_capacity", 4096)

	v.SetDefault("download.workers", 5)
	v.SetDefault("download.max_retries", 3)
	v.SetDefault("download.retry_base_seconds", 2.0)
	v.SetDefault("download.min_free_bytes", 10*1024*1024)
	v.SetDefault("download.reserve_bytes", 50*1024*1024)
	v.SetDefault("download.chunk_bytes", 8*1024)
	v.SetDefault("download.cache_skew_bytes", 100)

	v.SetDefault("fetch.request_timeout_seconds", 10)
	v.SetDefault("fetch.head_timeout_seconds", 5)
	v.SetDefault("fetch.download_timeout_seconds", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.retry_base_seconds", 0.5)
	v.SetDefault("fetch.rotate_user_agent", true)

	v.SetDefault("catalog.path", "scrapevault.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)
}
