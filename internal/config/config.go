package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/telhawk-systems/etl-central-square/internal/normalizer"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Ingestion  IngestionConfig  `mapstructure:"ingestion"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Submit     SubmitConfig     `mapstructure:"submit"`
	Dedup      DedupConfig      `mapstructure:"dedup"`
	DLQ        DLQConfig        `mapstructure:"dlq"`
	Upstream   UpstreamConfig   `mapstructure:"upstream"`
	Connector  ConnectorConfig  `mapstructure:"connector"`
	Normalizer NormalizerConfig `mapstructure:"normalizer"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type IngestionConfig struct {
	MaxBodySize       int64         `mapstructure:"max_body_size"`
	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type NATSConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Token    string `mapstructure:"token"`
}

// SubmitConfig selects and configures the downstream submission channel.
type SubmitConfig struct {
	// Backend is one of "http", "nats" or "log".
	Backend       string        `mapstructure:"backend"`
	URL           string        `mapstructure:"url"`
	Connection    string        `mapstructure:"connection"`
	Layer         string        `mapstructure:"layer"`
	Token         string        `mapstructure:"token"`
	SigningSecret string        `mapstructure:"signing_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type DedupConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type DLQConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// UpstreamConfig points pull mode at a Central Square export endpoint. An
// empty URL disables fetching.
type UpstreamConfig struct {
	URL          string        `mapstructure:"url"`
	APIKey       string        `mapstructure:"api_key"`
	APIKeyHeader string        `mapstructure:"api_key_header"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// ConnectorConfig controls where the connector environment comes from.
type ConnectorConfig struct {
	// EnvSource is "static" (Environment below) or "api" (the ETL API named
	// in Submit).
	EnvSource   string         `mapstructure:"env_source"`
	Environment map[string]any `mapstructure:"environment"`
}

type NormalizerConfig struct {
	Mapping normalizer.Mapping `mapstructure:"mapping"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("ingestion.max_body_size", 1048576)
	v.SetDefault("ingestion.rate_limit_enabled", false)
	v.SetDefault("ingestion.rate_limit_requests", 600)
	v.SetDefault("ingestion.rate_limit_window", "1m")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("submit.backend", "http")
	v.SetDefault("submit.url", "http://localhost:5001")
	v.SetDefault("submit.connection", "")
	v.SetDefault("submit.layer", "")
	v.SetDefault("submit.token", "")
	v.SetDefault("submit.signing_secret", "")
	v.SetDefault("submit.timeout", "15s")
	v.SetDefault("dedup.enabled", false)
	v.SetDefault("dedup.ttl", "24h")
	v.SetDefault("dlq.enabled", false)
	v.SetDefault("upstream.url", "")
	v.SetDefault("upstream.api_key", "")
	v.SetDefault("upstream.api_key_header", "X-API-Key")
	v.SetDefault("upstream.timeout", "30s")
	v.SetDefault("connector.env_source", "static")
	v.SetDefault("connector.environment.debug", false)
	for _, field := range []string{"records", "id", "time", "latitude", "longitude", "callsign", "type", "remarks"} {
		v.SetDefault("normalizer.mapping."+field, "")
	}

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/etl-central-square")
	}

	// Environment variables override, e.g. ETL_SUBMIT_LAYER
	v.SetEnvPrefix("ETL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Connector.Environment = connectorEnvironment(v)

	return &cfg, nil
}

// connectorEnvironment restores the upper-case field names the connector
// schema uses (viper lower-cases keys) and coerces boolean strings, which is
// how environment variable overrides arrive.
func connectorEnvironment(v *viper.Viper) map[string]any {
	const prefix = "connector.environment."
	env := make(map[string]any)
	for _, key := range v.AllKeys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		val := v.Get(key)
		if s, ok := val.(string); ok {
			if b, err := strconv.ParseBool(s); err == nil {
				val = b
			}
		}
		env[strings.ToUpper(strings.TrimPrefix(key, prefix))] = val
	}
	return env
}
