package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPPort string `mapstructure:"HTTP_PORT"`
	GRPCPort string `mapstructure:"GRPC_PORT"`

	StoreDriver    string `mapstructure:"STORE_DRIVER"`
	DBHost         string `mapstructure:"POSTGRES_HOST"`
	DBPort         int    `mapstructure:"POSTGRES_PORT"`
	DBUser         string `mapstructure:"POSTGRES_USER"`
	DBPassword     string `mapstructure:"POSTGRES_PASSWORD"`
	DBName         string `mapstructure:"POSTGRES_DB"`
	SQLitePath     string `mapstructure:"SQLITE_PATH"`
	MigrationsPath string `mapstructure:"MIGRATIONS_PATH"`

	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	CartCacheTTL  time.Duration `mapstructure:"CART_CACHE_TTL"`

	KafkaBrokers        string        `mapstructure:"KAFKA_BROKERS"`
	OutboxTopic         string        `mapstructure:"OUTBOX_TOPIC"`
	OutboxPollInterval  time.Duration `mapstructure:"OUTBOX_POLL_INTERVAL"`
	OutboxBatchSize     int           `mapstructure:"OUTBOX_BATCH_SIZE"`
	JWTSecret           string        `mapstructure:"JWT_SECRET"`
	RequestTimeout      time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ShutdownTimeout     time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	CheckoutMaxAttempts int           `mapstructure:"CHECKOUT_MAX_ATTEMPTS"`
	HealthCheckInterval time.Duration `mapstructure:"HEALTH_CHECK_INTERVAL"`
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
	LogFormat           string        `mapstructure:"LOG_FORMAT"`
}

var defaults = map[string]any{
	"HTTP_PORT":             "8080",
	"GRPC_PORT":             "50051",
	"STORE_DRIVER":          "postgres",
	"POSTGRES_HOST":         "localhost",
	"POSTGRES_PORT":         5432,
	"POSTGRES_USER":         "postgres",
	"POSTGRES_PASSWORD":     "postgres",
	"POSTGRES_DB":           "storefront",
	"SQLITE_PATH":           "storefront.db",
	"MIGRATIONS_PATH":       "./internal/repository/migrations",
	"REDIS_ADDR":            "",
	"REDIS_PASSWORD":        "",
	"CART_CACHE_TTL":        "5m",
	"KAFKA_BROKERS":         "",
	"OUTBOX_TOPIC":          "storefront.orders",
	"OUTBOX_POLL_INTERVAL":  "2s",
	"OUTBOX_BATCH_SIZE":     100,
	"JWT_SECRET":            "",
	"REQUEST_TIMEOUT":       "10s",
	"SHUTDOWN_TIMEOUT":      "15s",
	"CHECKOUT_MAX_ATTEMPTS": 3,
	"HEALTH_CHECK_INTERVAL": "5s",
	"LOG_LEVEL":             "info",
	"LOG_FORMAT":            "json",
}

// Load reads configuration from the environment, optionally layered over a
// .env style file. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be postgres or sqlite, got %q", c.StoreDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.CheckoutMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("CHECKOUT_MAX_ATTEMPTS must be positive, got %d", c.CheckoutMaxAttempts))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// Brokers splits the comma separated broker list. An empty list disables
// event publishing.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
