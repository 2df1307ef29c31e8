// This file defines the configuration structure for the application.
package config

import (
	// use Viper for loading the config.yml file.
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port     int `mapstructure:"port"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Storage struct {
		Path    string `mapstructure:"path"`
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"storage"`
	Admin struct {
		TokenHash string `mapstructure:"token_hash"`
	} `mapstructure:"admin"`
	Ingest IngestConfig `mapstructure:"ingest"`
}

// IngestConfig is the tuning surface for the ingestion pipeline. Retry and
// backoff policy is configuration, not a hard-coded constant, so it can be
// tuned per deployment.
type IngestConfig struct {
	Workers              int           `mapstructure:"workers"`
	ImageWorkers         int           `mapstructure:"image_workers"`
	DefaultCheckInterval int           `mapstructure:"default_check_interval"` // minutes
	FetchTimeout         time.Duration `mapstructure:"fetch_timeout"`
	MaxRetries           int           `mapstructure:"max_retries"`
	RetryBaseDelay       time.Duration `mapstructure:"retry_base_delay"`
	MaxResponseBytes     int64         `mapstructure:"max_response_bytes"`
	RateLimitRPS         float64       `mapstructure:"rate_limit_rps"`
	UserAgent            string        `mapstructure:"user_agent"`
	MaxImageWidth        int           `mapstructure:"max_image_width"`
	JPEGQuality          int           `mapstructure:"jpeg_quality"`
}

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct.
func Load() (*Config, error) {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or "yaml"
	viper.AddConfigPath(".")      // looking for config in the current directory

	// --- Environment Variable Overrides ---
	// This tells Viper to look for environment variables with a "MANGROVE_"
	// prefix. e.g., MANGROVE_DATABASE_PATH overrides the `database.path` key.
	viper.SetEnvPrefix("MANGROVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("port", 8080)
	viper.SetDefault("database.path", "./mangrove.db")
	viper.SetDefault("storage.path", "./storage")
	viper.SetDefault("storage.base_url", "/static")
	viper.SetDefault("admin.token_hash", "")
	viper.SetDefault("ingest.workers", 4)
	viper.SetDefault("ingest.image_workers", 4)
	viper.SetDefault("ingest.default_check_interval", 360)
	viper.SetDefault("ingest.fetch_timeout", "30s")
	viper.SetDefault("ingest.max_retries", 3)
	viper.SetDefault("ingest.retry_base_delay", "500ms")
	viper.SetDefault("ingest.max_response_bytes", 20*1024*1024)
	viper.SetDefault("ingest.rate_limit_rps", 2.0)
	viper.SetDefault("ingest.user_agent", "Mozilla/5.0 (compatible; mangrove/1.0)")
	viper.SetDefault("ingest.max_image_width", 1200)
	viper.SetDefault("ingest.jpeg_quality", 80)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error and use defaults
		} else {
			// Config file was found but another error was produced
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
