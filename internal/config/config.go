package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"
)

// Service identity constants
const (
	InventoryServiceName  = "inventory-service"
	PaymentServiceName    = "payment-service"
	StandaloneServiceName = "saga-standalone"
	ServiceVersion        = "0.2.0"
)

// PaymentHTTPAddr is the payment service's default listen address. The
// shared HTTP_ADDR default belongs to inventory, which payment calls.
const PaymentHTTPAddr = ":8001"

// Stream topics and consumer identities
const (
	OrderPlacedTopic     = "order_placed"
	RefundRequestedTopic = "refund_requested"

	InventoryGroup    = "inventory-group"
	InventoryConsumer = "inventory-consumer"
	PaymentGroup      = "payment-group"
	PaymentConsumer   = "payment-consumer"
)

// Kafka producer tuning
const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaBatchSize    = 100
)

// OpenTelemetry export constants
const (
	LogsPath      = "/otlp/v1/logs"
	TracesPath    = "/otlp/v1/traces"
	MetricsPath   = "/otlp/v1/metrics"
	ExportTimeout = 30 * time.Second
	MaxQueueSize  = 2048
)

// Backend names accepted by STREAM_BACKEND and STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendKafka    = "kafka"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds environment-specific configuration.
type Config struct {
	ServiceName string `env:"-"`

	HTTPAddr       string   `env:"HTTP_ADDR" envDefault:":8000"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	StreamBackend string `env:"STREAM_BACKEND" envDefault:"redis"`
	StoreBackend  string `env:"STORE_BACKEND" envDefault:"redis"`

	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	SQLitePath   string   `env:"SQLITE_PATH" envDefault:"data/saga.db"`
	PostgresURL  string   `env:"DATABASE_URL"`

	InventoryServiceURL string        `env:"INVENTORY_SERVICE_URL" envDefault:"http://localhost:8000"`
	InventoryTimeout    time.Duration `env:"INVENTORY_TIMEOUT" envDefault:"5s"`

	ConsumerBlockTimeout time.Duration `env:"CONSUMER_BLOCK_TIMEOUT" envDefault:"1s"`
	ConsumerBackoff      time.Duration `env:"CONSUMER_BACKOFF" envDefault:"5s"`
	ConsumerMaxBackoff   time.Duration `env:"CONSUMER_MAX_BACKOFF" envDefault:"0s"`
	ConsumerRetryDelay   time.Duration `env:"CONSUMER_RETRY_DELAY" envDefault:"1s"`
	ConsumerReclaimIdle  time.Duration `env:"CONSUMER_RECLAIM_IDLE" envDefault:"0s"`

	PaymentCompletionDelay time.Duration `env:"PAYMENT_COMPLETION_DELAY" envDefault:"2s"`
	LegacyStockWrite       bool          `env:"LEGACY_STOCK_WRITE" envDefault:"false"`

	OtelEndpoint   string `env:"OTEL_ENDPOINT"`
	OtelAuthHeader string `env:"OTEL_AUTH_HEADER"`
	OtelInsecure   bool   `env:"OTEL_INSECURE" envDefault:"false"`

	LogLevel        zapcore.Level `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// LoadConfig loads configuration from environment variables with defaults.
func LoadConfig(serviceName string) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.ServiceName = serviceName
	cfg.applyServiceDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig loads environment defaults and lets command-line flags
// override the most commonly changed values.
func ParseConfig(serviceName string, fs *flag.FlagSet, args []string) (*Config, error) {
	if fs == nil {
		return nil, errors.New("flag parser is required")
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.ServiceName = serviceName
	cfg.applyServiceDefaults()

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.StreamBackend, "stream", cfg.StreamBackend, "Event stream backend (memory, redis, kafka)")
	fs.StringVar(&cfg.StoreBackend, "store", cfg.StoreBackend, "Record store backend (memory, redis, sqlite, postgres)")
	fs.StringVar(&cfg.InventoryServiceURL, "inventory-url", cfg.InventoryServiceURL, "Inventory service base URL")
	fs.DurationVar(&cfg.PaymentCompletionDelay, "payment-delay", cfg.PaymentCompletionDelay, "Delay before a pending order is completed")
	fs.TextVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyServiceDefaults gives each binary its own listen port and makes the
// standalone binary self-contained, unless the values are set explicitly.
func (c *Config) applyServiceDefaults() {
	if c.ServiceName == PaymentServiceName {
		if _, ok := os.LookupEnv("HTTP_ADDR"); !ok {
			c.HTTPAddr = PaymentHTTPAddr
		}
	}
	if c.ServiceName != StandaloneServiceName {
		return
	}
	if _, ok := os.LookupEnv("STREAM_BACKEND"); !ok {
		c.StreamBackend = BackendMemory
	}
	if _, ok := os.LookupEnv("STORE_BACKEND"); !ok {
		c.StoreBackend = BackendMemory
	}
}

// Validate rejects unsupported backends and unusable durations.
func (c *Config) Validate() error {
	c.StreamBackend = strings.ToLower(strings.TrimSpace(c.StreamBackend))
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))

	switch c.StreamBackend {
	case BackendMemory, BackendRedis, BackendKafka:
	default:
		return fmt.Errorf("unsupported stream backend %q", c.StreamBackend)
	}
	switch c.StoreBackend {
	case BackendMemory, BackendRedis, BackendSQLite, BackendPostgres:
	default:
		return fmt.Errorf("unsupported store backend %q", c.StoreBackend)
	}
	if c.StoreBackend == BackendPostgres && strings.TrimSpace(c.PostgresURL) == "" {
		return errors.New("DATABASE_URL is required for the postgres store")
	}
	if c.StreamBackend == BackendKafka && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS cannot be empty")
	}
	if c.ConsumerBlockTimeout <= 0 {
		return errors.New("CONSUMER_BLOCK_TIMEOUT must be positive")
	}
	if c.ConsumerBackoff <= 0 {
		return errors.New("CONSUMER_BACKOFF must be positive")
	}
	if c.ConsumerRetryDelay < 0 || c.ConsumerReclaimIdle < 0 || c.ConsumerMaxBackoff < 0 {
		return errors.New("consumer durations cannot be negative")
	}
	if c.PaymentCompletionDelay <= 0 {
		return errors.New("PAYMENT_COMPLETION_DELAY must be positive")
	}
	return nil
}

// RedisAddr returns the host:port address of the Redis server.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}
