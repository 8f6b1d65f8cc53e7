// Package config loads and holds the server configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Conf holds the settings loaded at startup.
var Conf Config

// Config mirrors the config.yaml layout. Environment variables override
// file values (SANCTUM_SERVER_PORT, SANCTUM_JWT_SECRET, ...).
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	JWT    JWTConfig    `mapstructure:"jwt"`
	Log    LogConfig    `mapstructure:"log"`
	Reply  ReplyConfig  `mapstructure:"reply"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug or release
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Type       string `mapstructure:"type"`       // "sqlite" or "postgres"
	Connection string `mapstructure:"connection"` // file path or DSN
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	ExpireDays int    `mapstructure:"expire_days"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ReplyConfig points at the reply service endpoints.
type ReplyConfig struct {
	PrimaryURL  string `mapstructure:"primary_url"`
	FallbackURL string `mapstructure:"fallback_url"`
	Provider    string `mapstructure:"provider"` // "http" (default) or "gemini"
	GeminiModel string `mapstructure:"gemini_model"`
}

// Load reads the config file into Conf and applies defaults.
func Load(configPath string) error {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// Every key needs a default so viper knows it exists; env overrides
	// only apply to known keys.
	viper.SetDefault("server.port", "3001")
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("store.type", "sqlite")
	viper.SetDefault("store.connection", "sanctum.sqlite")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("jwt.expire_days", 30)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output_path", "")
	viper.SetDefault("reply.provider", "http")
	viper.SetDefault("reply.primary_url", "")
	viper.SetDefault("reply.fallback_url", "")
	viper.SetDefault("reply.gemini_model", "")

	viper.SetEnvPrefix("SANCTUM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine when env vars carry the settings.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}
