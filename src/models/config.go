package models

// MConfig Structure
type MConfig struct {
	Name     string          `yaml:"name"`
	Host     string          `yaml:"host"`
	Port     int             `yaml:"port"`
	LogLevel string          `yaml:"log_level"`
	Storage  MStorageConfig  `yaml:"storage"`
	Redis    MRedisConfig    `yaml:"redis"`
	Cache    MCacheConfig    `yaml:"memory_cache"`
	Limiter  MLimiterConfig  `yaml:"rate_limiter"`
	Breaker  MBreakerConfig  `yaml:"circuit_breaker"`
	Provider MProviderConfig `yaml:"provider"`
	Scoring  MScoringConfig  `yaml:"relevance"`
	Warmup   MWarmupConfig   `yaml:"warmup"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	CacheTTLSeconds    int    `yaml:"cache_ttl_seconds"`
}

type MRedisConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Addr            string `yaml:"addr"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

type MCacheConfig struct {
	MaxSize         int `yaml:"max_size"`
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

type MLimiterConfig struct {
	MaxRequests   int `yaml:"max_requests"`
	WindowSeconds int `yaml:"window_seconds"`
}

type MBreakerConfig struct {
	FailureThreshold       int `yaml:"failure_threshold"`
	RecoveryTimeoutSeconds int `yaml:"recovery_timeout_seconds"`
}

type MProviderConfig struct {
	Name           string `yaml:"name"`
	SearchURL      string `yaml:"search_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
	// TTL multiplier applied to write-backs while the symbol's exchange
	// is closed (quotes cannot move off-hours).
	ClosedMarketTTLFactor int `yaml:"closed_market_ttl_factor"`
}

type MScoringConfig struct {
	// Weight of the popularity tiebreaker inside a primary match tier.
	// Must stay small enough that it never overrides a higher tier.
	PopularityWeight float64 `yaml:"popularity_weight"`
}

type MWarmupConfig struct {
	Enabled bool `yaml:"enabled"`
	TopN    int  `yaml:"top_n"`
}
