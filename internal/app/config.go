package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
	StorageDriverBolt     = "bolt"
)

// Config описывает настройки запуска сервиса.
// Списки (CORS, Kafka brokers) хранятся строками через запятую, чтобы Config оставался сравнимым.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	GRPCAddr    string `yaml:"grpc_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	StorageDriver       string `yaml:"storage_driver"`
	PostgresDSN         string `yaml:"postgres_dsn"`
	PostgresAutoMigrate bool   `yaml:"postgres_auto_migrate"`
	BoltPath            string `yaml:"bolt_path"`
	SeedSampleData      bool   `yaml:"seed_sample_data"`

	CORSAllowedOrigins string `yaml:"cors_allowed_origins"`

	KafkaBrokers       string        `yaml:"kafka_brokers"`
	KafkaTopic         string        `yaml:"kafka_topic"`
	OutboxPollInterval time.Duration `yaml:"outbox_poll_interval"`
	OutboxBatchSize    int           `yaml:"outbox_batch_size"`
	OutboxMaxAttempts  int           `yaml:"outbox_max_attempts"`
	OutboxRetryDelay   time.Duration `yaml:"outbox_retry_delay"`
	OutboxMaxPending   int           `yaml:"outbox_max_pending"`

	IdempotencyTTL              time.Duration `yaml:"idempotency_ttl"`
	IdempotencyCleanupInterval  time.Duration `yaml:"idempotency_cleanup_interval"`
	IdempotencyCleanupBatchSize int           `yaml:"idempotency_cleanup_batch_size"`

	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// DefaultConfig возвращает настройки для локального запуска: in-memory хранилище и демо-каталог.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":5000",
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		BoltPath:            "pos.db",
		SeedSampleData:      true,

		CORSAllowedOrigins: "http://localhost:5173,http://localhost:5174",

		KafkaTopic:         "pos.sales.events",
		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   100 * time.Millisecond,
		OutboxMaxPending:   1000,

		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,

		ServiceName: "pos-service",
		LogLevel:    "info",
	}
}

// LoadConfigFile накладывает значения из YAML-файла на base.
// Ключи, отсутствующие в файле, сохраняют значения base.
func LoadConfigFile(path string, base Config) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config file: %w", err)
	}

	cfg := base
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return base, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// AllowedOrigins возвращает CORS allow-list без пустых элементов.
func (c Config) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// KafkaBrokerList возвращает адреса брокеров без пробелов и пустых элементов.
func (c Config) KafkaBrokerList() []string {
	return splitList(c.KafkaBrokers)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
