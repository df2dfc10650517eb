package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Fetcher   FetcherConfig
	Metadata  MetadataConfig
	Queue     QueueConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// FetcherConfig points at the external fetch executor service
type FetcherConfig struct {
	BaseURL string
}

// MetadataConfig points at the resource metadata service
type MetadataConfig struct {
	BaseURL string
	Timeout int // seconds
}

type QueueConfig struct {
	PassDelayMs int
}

type CacheConfig struct {
	TTLSeconds     int
	AwaitTimeoutMs int
}

type RateLimitConfig struct {
	EnqueuePerHour int
	MetadataPerMin int
}

// PassDelay is the pause between execution-loop passes while jobs remain
func (c QueueConfig) PassDelay() time.Duration {
	return time.Duration(c.PassDelayMs) * time.Millisecond
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

func (c CacheConfig) AwaitTimeout() time.Duration {
	return time.Duration(c.AwaitTimeoutMs) * time.Millisecond
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("fetcher.base_url", "FETCHER_BASE_URL")
	_ = viper.BindEnv("metadata.base_url", "METADATA_BASE_URL")
	_ = viper.BindEnv("metadata.timeout", "METADATA_TIMEOUT")
	_ = viper.BindEnv("queue.pass_delay_ms", "QUEUE_PASS_DELAY_MS")
	_ = viper.BindEnv("cache.ttl_seconds", "CACHE_TTL_SECONDS")
	_ = viper.BindEnv("cache.await_timeout_ms", "CACHE_AWAIT_TIMEOUT_MS")
	_ = viper.BindEnv("ratelimit.enqueue_per_hour", "RATELIMIT_ENQUEUE_PER_HOUR")
	_ = viper.BindEnv("ratelimit.metadata_per_min", "RATELIMIT_METADATA_PER_MIN")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("metadata.timeout", 30)
	viper.SetDefault("queue.pass_delay_ms", 500)
	viper.SetDefault("cache.ttl_seconds", 300)
	viper.SetDefault("cache.await_timeout_ms", 10000)
	viper.SetDefault("ratelimit.enqueue_per_hour", 50)
	viper.SetDefault("ratelimit.metadata_per_min", 60)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Fetcher: FetcherConfig{
			BaseURL: viper.GetString("fetcher.base_url"),
		},
		Metadata: MetadataConfig{
			BaseURL: viper.GetString("metadata.base_url"),
			Timeout: viper.GetInt("metadata.timeout"),
		},
		Queue: QueueConfig{
			PassDelayMs: viper.GetInt("queue.pass_delay_ms"),
		},
		Cache: CacheConfig{
			TTLSeconds:     viper.GetInt("cache.ttl_seconds"),
			AwaitTimeoutMs: viper.GetInt("cache.await_timeout_ms"),
		},
		RateLimit: RateLimitConfig{
			EnqueuePerHour: viper.GetInt("ratelimit.enqueue_per_hour"),
			MetadataPerMin: viper.GetInt("ratelimit.metadata_per_min"),
		},
	}

	return cfg, nil
}
