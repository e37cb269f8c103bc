package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"creditgate/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	ClickHouse    ClickHouseConfig
	Kafka         KafkaConfig
	Providers     ProviderConfig
	Meter         MeterConfig
	Auth          AuthConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"creditgate"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	Port     int    `envconfig:"APP_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig is only needed when distributed provider rate limiting is
// enabled; a single-instance deployment runs with local limiters.
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

// ClickHouseConfig configures the optional usage analytics mirror.
type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"creditgate"`
}

func (c ClickHouseConfig) Enabled() bool {
	return c.Host != ""
}

// KafkaConfig configures the optional usage event stream.
type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	Topic   string   `envconfig:"KAFKA_USAGE_TOPIC" default:"creditgate.usage"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// ProviderConfig holds upstream LLM provider credentials and limits.
type ProviderConfig struct {
	AnthropicKey string `envconfig:"ANTHROPIC_API_KEY"`
	OpenAIKey    string `envconfig:"OPENAI_API_KEY"`
	GeminiKey    string `envconfig:"GEMINI_API_KEY"`

	RequestTimeout    int  `envconfig:"PROVIDER_REQUEST_TIMEOUT_SECONDS" default:"60"`
	RateLimitPerMin   int  `envconfig:"PROVIDER_RATE_LIMIT_PER_MINUTE" default:"60"`
	RateLimitBurst    int  `envconfig:"PROVIDER_RATE_LIMIT_BURST" default:"10"`
	RateLimitEnabled  bool `envconfig:"PROVIDER_RATE_LIMIT_ENABLED" default:"true"`
	DistributedLimits bool `envconfig:"PROVIDER_RATE_LIMIT_DISTRIBUTED" default:"false"`
}

// MeterConfig tunes the credit accounting engine.
type MeterConfig struct {
	// HardQuota serializes check-then-log per user via a postgres advisory
	// lock, turning the soft limit into a hard quota. Off by default.
	HardQuota bool `envconfig:"METER_HARD_QUOTA" default:"false"`
}

// AuthConfig configures bearer-token authentication on the API. When no
// secret is set the API trusts the X-User-ID header, which is only
// acceptable behind a gateway that strips client-controlled headers.
type AuthConfig struct {
	JWTSecret string `envconfig:"AUTH_JWT_SECRET"`
	Issuer    string `envconfig:"AUTH_JWT_ISSUER" default:"creditgate"`
}

func (c AuthConfig) Enabled() bool {
	return c.JWTSecret != ""
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables.
// It first tries to load a .env file (useful for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
