// Package config loads application configuration from a config file or
// environment variables via viper.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Feed     FeedConfig     `mapstructure:"feed"`
}

// ServerConfig defines the HTTP listener settings.
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig defines the PostgreSQL connection settings. An empty URL
// selects the in-memory store.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig defines the optional read-through cache. An empty URL
// disables caching.
type RedisConfig struct {
	URL      string        `mapstructure:"url"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// FeedConfig defines the upstream market-data connection.
type FeedConfig struct {
	URL        string `mapstructure:"url"`
	Instrument string `mapstructure:"instrument"`
}

// Load reads configuration from config.yaml in the given path, overridden
// by environment variables (SERVER_PORT, DATABASE_URL, REDIS_URL,
// FEED_URL, ...). A missing config file is not an error; defaults and
// environment cover the common deployment.
func Load(path string) (Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.shutdown_timeout", 5*time.Second)
	viper.SetDefault("redis.cache_ttl", 30*time.Second)
	viper.SetDefault("feed.instrument", "GOLD")

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
