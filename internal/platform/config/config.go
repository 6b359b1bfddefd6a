package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string `yaml:"serviceName" envconfig:"SERVICE_NAME"`
	HTTPPort    string `yaml:"httpPort"    envconfig:"HTTP_PORT"`
	Debug       bool   `yaml:"debug"       envconfig:"DEBUG"`

	DatabaseDriver  string        `yaml:"databaseDriver"  envconfig:"DATABASE_DRIVER"`
	PostgresDSN     string        `yaml:"postgresDsn"     envconfig:"POSTGRES_DSN"`
	SQLitePath      string        `yaml:"sqlitePath"      envconfig:"SQLITE_PATH"`
	DatabaseTracing bool          `yaml:"databaseTracing" envconfig:"DATABASE_TRACING"`
	AutoMigrate     bool          `yaml:"autoMigrate"     envconfig:"AUTO_MIGRATE"`
	LockTimeout     time.Duration `yaml:"lockTimeout"     envconfig:"LOCK_TIMEOUT"`

	KafkaBrokers       []string      `yaml:"kafkaBrokers"       envconfig:"KAFKA_BROKERS"`
	OutboxBatchSize    int           `yaml:"outboxBatchSize"    envconfig:"OUTBOX_BATCH_SIZE"`
	OutboxPollInterval time.Duration `yaml:"outboxPollInterval" envconfig:"OUTBOX_POLL_INTERVAL"`

	CORSAllowedOrigins []string `yaml:"corsAllowedOrigins" envconfig:"CORS_ALLOWED_ORIGINS"`

	EnableAuditConsumer bool   `yaml:"enableAuditConsumer" envconfig:"ENABLE_AUDIT_CONSUMER"`
	AuditConsumerGroup  string `yaml:"auditConsumerGroup"  envconfig:"AUDIT_CONSUMER_GROUP"`

	// WorkerMetricsPort serves /metrics from the worker process when set.
	WorkerMetricsPort string `yaml:"workerMetricsPort" envconfig:"WORKER_METRICS_PORT"`
}

func defaults() Config {
	return Config{
		ServiceName:         "urna",
		HTTPPort:            "8080",
		DatabaseDriver:      DriverPostgres,
		SQLitePath:          "urna.sqlite",
		AutoMigrate:         true,
		LockTimeout:         3 * time.Second,
		KafkaBrokers:        []string{"localhost:9092"},
		OutboxBatchSize:     100,
		OutboxPollInterval:  time.Second,
		CORSAllowedOrigins:  []string{"*"},
		EnableAuditConsumer: true,
	}
}

// Load reads the optional YAML file, then applies environment overrides.
// Variables are accepted with or without the URNA_ prefix.
func Load(configFile string) (Config, error) {
	cfg := defaults()
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return Config{}, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process("urna", &cfg); err != nil {
		return Config{}, fmt.Errorf("error processing environment: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.DatabaseDriver = strings.ToLower(strings.TrimSpace(c.DatabaseDriver))
	c.KafkaBrokers = compact(c.KafkaBrokers)
	c.CORSAllowedOrigins = compact(c.CORSAllowedOrigins)
}

func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("postgres dsn is required when database driver is postgres")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return errors.New("sqlite path is required when database driver is sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.DatabaseDriver)
	}
	if c.LockTimeout < 0 {
		return errors.New("lock timeout must not be negative")
	}
	if c.OutboxBatchSize <= 0 {
		return errors.New("outbox batch size must be positive")
	}
	if c.OutboxPollInterval <= 0 {
		return errors.New("outbox poll interval must be positive")
	}
	return nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}
