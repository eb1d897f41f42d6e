package config

import (
	"fmt"
	"os"

	"stock-search-service/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.Cache.MaxSize == 0 {
		c.Cache.MaxSize = 1000
	}
	if c.Cache.CacheTTLSeconds == 0 {
		c.Cache.CacheTTLSeconds = 300
	}
	if c.Redis.CacheTTLSeconds == 0 {
		c.Redis.CacheTTLSeconds = 900
	}
	if c.Storage.CacheTTLSeconds == 0 {
		c.Storage.CacheTTLSeconds = 3600
	}
	if c.Limiter.MaxRequests == 0 {
		c.Limiter.MaxRequests = 60
	}
	if c.Limiter.WindowSeconds == 0 {
		c.Limiter.WindowSeconds = 60
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 5
	}
	if c.Breaker.RecoveryTimeoutSeconds == 0 {
		c.Breaker.RecoveryTimeoutSeconds = 30
	}
	if c.Provider.Name == "" {
		c.Provider.Name = "yahoo_finance"
	}
	if c.Provider.SearchURL == "" {
		c.Provider.SearchURL = "https://query1.finance.yahoo.com/v1/finance/search"
	}
	if c.Provider.TimeoutSeconds == 0 {
		c.Provider.TimeoutSeconds = 10
	}
	if c.Provider.ClosedMarketTTLFactor == 0 {
		c.Provider.ClosedMarketTTLFactor = 4
	}
	if c.Scoring.PopularityWeight == 0 {
		c.Scoring.PopularityWeight = 0.0005
	}
	if c.Warmup.TopN == 0 {
		c.Warmup.TopN = 50
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	if c.Storage.DBType == "" {
		return fmt.Errorf("database type cannot be empty")
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		return fmt.Errorf("database path cannot be empty for sqlite")
	}
	if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
		return fmt.Errorf("connection string cannot be empty for postgres")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address cannot be empty when redis is enabled")
	}

	if c.Cache.MaxSize < 0 {
		return fmt.Errorf("memory cache size cannot be negative")
	}
	if c.Limiter.MaxRequests <= 0 || c.Limiter.WindowSeconds <= 0 {
		return fmt.Errorf("rate limiter window must be positive")
	}
	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("circuit breaker failure threshold must be positive")
	}

	return nil
}
