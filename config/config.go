package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string `mapstructure:"ENVIRONMENT"`
	Port        int    `mapstructure:"PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	Version     string `mapstructure:"VERSION"`
	RateLimit   int    `mapstructure:"RATE_LIMIT"`

	// CORS Configuration
	AllowedOrigins []string `mapstructure:"ALLOWED_ORIGINS"`

	// Logging
	LogLevel      string `mapstructure:"LOG_LEVEL"`
	LogFile       string `mapstructure:"LOG_FILE"`
	LogMaxSizeMB  int    `mapstructure:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `mapstructure:"LOG_MAX_BACKUPS"`
	LogMaxAgeDays int    `mapstructure:"LOG_MAX_AGE_DAYS"`

	// Board trees
	UpdateBuffer   int    `mapstructure:"UPDATE_BUFFER"`
	EnsureSchema   bool   `mapstructure:"ENSURE_SCHEMA"`
	MigrationsPath string `mapstructure:"MIGRATIONS_PATH"`

	// Attachment Storage
	AttachmentStorageBucket   string `mapstructure:"ATTACHMENT_STORAGE_BUCKET"`
	AttachmentStorageRegion   string `mapstructure:"ATTACHMENT_STORAGE_REGION"`
	AttachmentStorageEndpoint string `mapstructure:"ATTACHMENT_STORAGE_ENDPOINT"`
	AttachmentStorageKey      string `mapstructure:"ATTACHMENT_STORAGE_KEY"`
	AttachmentStorageSecret   string `mapstructure:"ATTACHMENT_STORAGE_SECRET"`
}

var envKeys = []string{
	"DATABASE_URL",
	"JWT_SECRET",
	"LOG_LEVEL",
	"LOG_FILE",
	"ATTACHMENT_STORAGE_BUCKET",
	"ATTACHMENT_STORAGE_REGION",
	"ATTACHMENT_STORAGE_ENDPOINT",
	"ATTACHMENT_STORAGE_KEY",
	"ATTACHMENT_STORAGE_SECRET",
}

// LoadConfig loads the configuration from an optional .env file, environment
// variables and config files
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	v.AddConfigPath(configPath)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Set default values
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("PORT", 8080)
	v.SetDefault("ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	v.SetDefault("VERSION", "1.0.0")
	v.SetDefault("RATE_LIMIT", 100) // requests per minute per IP
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 3)
	v.SetDefault("LOG_MAX_AGE_DAYS", 28)
	v.SetDefault("UPDATE_BUFFER", 16)
	v.SetDefault("ENSURE_SCHEMA", true)
	v.SetDefault("MIGRATIONS_PATH", "migrations")

	// Read environment variables
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AttachmentsEnabled reports whether attachment storage is configured
func (c *Config) AttachmentsEnabled() bool {
	return c.AttachmentStorageBucket != ""
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Port <= 0 || c.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.RateLimit <= 0 {
		result = multierror.Append(result, fmt.Errorf("RATE_LIMIT must be positive, got %d", c.RateLimit))
	}
	if c.UpdateBuffer <= 0 {
		result = multierror.Append(result, fmt.Errorf("UPDATE_BUFFER must be positive, got %d", c.UpdateBuffer))
	}
	if c.IsProduction() && c.JWTSecret == "" {
		result = multierror.Append(result, errors.New("JWT_SECRET must be set in production"))
	}
	if c.IsProduction() && c.DatabaseURL == "" {
		result = multierror.Append(result, errors.New("DATABASE_URL must be set in production"))
	}
	if c.AttachmentStorageBucket != "" && c.AttachmentStorageRegion == "" {
		result = multierror.Append(result, errors.New("ATTACHMENT_STORAGE_REGION is required with ATTACHMENT_STORAGE_BUCKET"))
	}

	return result.ErrorOrNil()
}
