// This file defines the configuration structure for the application.
package config

import (
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
	Library struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"library"`
	Bundles struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"bundles"`
	Catalog struct {
		TimeoutSeconds int `mapstructure:"timeout_seconds"`
	} `mapstructure:"catalog"`
	Download struct {
		TimeoutSeconds int `mapstructure:"timeout_seconds"`
		Workers        int `mapstructure:"workers"`
	} `mapstructure:"download"`
	// LoanSweepInterval is how often, in minutes, expired loans are swept.
	// Zero disables the sweep.
	LoanSweepInterval int `mapstructure:"loan_sweep_interval"`
	DRM               struct {
		Vendor string `mapstructure:"vendor"`
	} `mapstructure:"drm"`
}

// CatalogTimeout bounds feed and loan round-trips.
func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Catalog.TimeoutSeconds) * time.Second
}

// DownloadTimeout bounds content downloads and DRM fulfillment.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Download.TimeoutSeconds) * time.Second
}

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AddConfigPath(".")

	// Environment variables with a "LECTERN_" prefix override file values.
	// e.g., LECTERN_DATABASE_PATH will override the `database.path` key.
	viper.SetEnvPrefix("LECTERN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("port", 8080)
	viper.SetDefault("database.path", "./lectern.db")
	viper.SetDefault("library.path", "./library")
	viper.SetDefault("bundles.path", "./bundles")
	viper.SetDefault("catalog.timeout_seconds", 60)
	viper.SetDefault("download.timeout_seconds", 180)
	viper.SetDefault("download.workers", 4)
	viper.SetDefault("loan_sweep_interval", 30)
	viper.SetDefault("drm.vendor", "")

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
