// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the storefront client
type Config struct {
	App     AppConfig
	API     APIConfig
	Media   MediaConfig
	Session SessionConfig
	Logging LoggingConfig
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string
	Version     string
	Environment string
	Debug       bool
}

// APIConfig contains remote commerce API configuration
type APIConfig struct {
	// BaseURL is the root of the commerce API, e.g. http://localhost:8000/api.
	// When empty the demo binary starts an embedded in-process service instead.
	BaseURL        string
	RequestTimeout time.Duration
}

// MediaConfig contains media URL resolution configuration
type MediaConfig struct {
	// BaseURL is prefixed to relative image paths returned by the API.
	BaseURL string
}

// SessionConfig contains session and token configuration.
// The secret is only used by the embedded service double to sign tokens;
// the client itself never verifies signatures.
type SessionConfig struct {
	TokenSecret       string
	AccessTokenExpiry time.Duration
	LoginPath         string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	config := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Storefront Client"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
			Debug:       getEnvAsBool("APP_DEBUG", true),
		},
		API: APIConfig{
			BaseURL:        getEnv("COMMERCE_API_URL", ""),
			RequestTimeout: getEnvAsDuration("COMMERCE_API_TIMEOUT", 15*time.Second),
		},
		Media: MediaConfig{
			BaseURL: getEnv("MEDIA_BASE_URL", "http://localhost:8000"),
		},
		Session: SessionConfig{
			TokenSecret:       getEnv("SESSION_TOKEN_SECRET", "local-development-secret-do-not-use-in-prod"),
			AccessTokenExpiry: getEnvAsDuration("SESSION_TOKEN_EXPIRY", 24*time.Hour),
			LoginPath:         getEnv("SESSION_LOGIN_PATH", "/login"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "debug"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("COMMERCE_API_TIMEOUT must be positive")
	}

	if c.Session.TokenSecret == "" {
		return fmt.Errorf("SESSION_TOKEN_SECRET is required")
	}

	if c.Session.LoginPath == "" {
		return fmt.Errorf("SESSION_LOGIN_PATH is required")
	}

	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
