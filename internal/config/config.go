package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Broker         BrokerConfig
	Logging        LoggingConfig
	Resolver       ResolverConfig
	Attribution    AttributionConfig
	Heuristic      HeuristicConfig
	Registry       RegistryConfig
	CircuitBreaker CircuitBreakerConfig
	Tracing        TracingConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig
	Redis         RedisConfig
	MongoDB       MongoDBConfig
	RunMigrations bool `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers       []string    `mapstructure:"brokers"`
	GroupID       string      `mapstructure:"group_id"`
	EventsTopic   string      `mapstructure:"events_topic"`
	CommandsTopic string      `mapstructure:"commands_topic"`
	DLQTopic      string      `mapstructure:"dlq_topic"`
	Retry         RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ResolverConfig bounds the redirect-chain crawler.
type ResolverConfig struct {
	MaxHops           int           `mapstructure:"max_hops"`
	HopTimeout        time.Duration `mapstructure:"hop_timeout"`
	ChainBudget       time.Duration `mapstructure:"chain_budget"`
	UserAgent         string        `mapstructure:"user_agent"`
	InsecureTLS       bool          `mapstructure:"insecure_tls"`
	PerHostRPS        float64       `mapstructure:"per_host_rps"`
	PerHostBurst      int           `mapstructure:"per_host_burst"`
	CacheTTLSeconds   int           `mapstructure:"cache_ttl_seconds"`
	MaxBodyScanBytes  int64         `mapstructure:"max_body_scan_bytes"`
}

type AttributionConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	Concurrency   int           `mapstructure:"concurrency"`
	BatchDeadline time.Duration `mapstructure:"batch_deadline"`
	UnwrapLinks   bool          `mapstructure:"unwrap_links"`
	Interval      time.Duration `mapstructure:"interval"`
}

// HeuristicConfig drives the data-broker newsletter matcher. The link
// threshold is hand-tuned and deliberately configuration, not a constant.
type HeuristicConfig struct {
	MinLinks        int               `mapstructure:"min_links"`
	BrandingDomains []string          `mapstructure:"branding_domains"`
	SenderEntities  map[string]string `mapstructure:"sender_entities"`
}

type RegistryConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}
