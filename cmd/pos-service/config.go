package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/app"
)

const (
	envConfigFile = "POS_CONFIG_FILE"

	envHTTPAddr    = "POS_HTTP_ADDR"
	envGRPCAddr    = "POS_GRPC_ADDR"
	envMetricsAddr = "POS_METRICS_ADDR"
	// envPort нужен для PaaS, которые выдают только номер порта.
	envPort = "PORT"

	envStorageDriver       = "POS_STORAGE_DRIVER"
	envPostgresDSN         = "POS_POSTGRES_DSN"
	envPostgresAutoMigrate = "POS_POSTGRES_AUTO_MIGRATE"
	envBoltPath            = "POS_BOLT_PATH"
	envSeedSampleData      = "POS_SEED_SAMPLE_DATA"

	envCORSAllowedOrigins = "POS_CORS_ALLOWED_ORIGINS"
	envFrontendURL        = "FRONTEND_URL"

	envKafkaBrokers       = "POS_KAFKA_BROKERS"
	envKafkaTopic         = "POS_KAFKA_TOPIC"
	envOutboxPollInterval = "POS_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize    = "POS_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts  = "POS_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay   = "POS_OUTBOX_RETRY_DELAY"
	envOutboxMaxPending   = "POS_OUTBOX_MAX_PENDING"

	envIdempotencyTTL              = "POS_IDEMPOTENCY_TTL"
	envIdempotencyCleanupInterval  = "POS_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "POS_IDEMPOTENCY_CLEANUP_BATCH_SIZE"

	envOTLPEndpoint = "POS_OTLP_ENDPOINT"
	envServiceName  = "POS_SERVICE_NAME"
	envLogLevel     = "POS_LOG_LEVEL"
	envLogFile      = "POS_LOG_FILE"
)

type envLookup func(string) (string, bool)

// readConfigFromEnv собирает конфигурацию из окружения.
// Некорректные значения не роняют запуск: остаётся значение по умолчанию, а в warnings попадает причина.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	if path, ok := nonEmpty(lookup, envConfigFile); ok {
		fileCfg, err := app.LoadConfigFile(path, cfg)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envConfigFile, err))
		} else {
			cfg = fileCfg
		}
	}

	if v, ok := nonEmpty(lookup, envPort); ok {
		if port, err := parseInt(v, func(p int) bool { return p > 0 && p <= 65535 }, "must be in 1..65535"); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envPort, err))
		} else {
			cfg.HTTPAddr = ":" + strconv.Itoa(port)
		}
	}

	setString(lookup, envHTTPAddr, &cfg.HTTPAddr)
	setString(lookup, envGRPCAddr, &cfg.GRPCAddr)
	setString(lookup, envMetricsAddr, &cfg.MetricsAddr)

	if v, ok := nonEmpty(lookup, envStorageDriver); ok {
		cfg.StorageDriver = strings.ToLower(v)
	}
	setString(lookup, envPostgresDSN, &cfg.PostgresDSN)
	setString(lookup, envBoltPath, &cfg.BoltPath)
	warnings = setBool(lookup, envPostgresAutoMigrate, &cfg.PostgresAutoMigrate, warnings)
	warnings = setBool(lookup, envSeedSampleData, &cfg.SeedSampleData, warnings)

	setString(lookup, envCORSAllowedOrigins, &cfg.CORSAllowedOrigins)
	if v, ok := nonEmpty(lookup, envFrontendURL); ok {
		if cfg.CORSAllowedOrigins == "" {
			cfg.CORSAllowedOrigins = v
		} else {
			cfg.CORSAllowedOrigins += "," + v
		}
	}

	setString(lookup, envKafkaBrokers, &cfg.KafkaBrokers)
	setString(lookup, envKafkaTopic, &cfg.KafkaTopic)

	positive := func(v int) bool { return v > 0 }
	nonNegative := func(v int) bool { return v >= 0 }
	positiveDuration := func(v time.Duration) bool { return v > 0 }
	nonNegativeDuration := func(v time.Duration) bool { return v >= 0 }

	warnings = setDuration(lookup, envOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0", warnings)
	warnings = setInt(lookup, envOutboxBatchSize, &cfg.OutboxBatchSize, positive, "must be > 0", warnings)
	warnings = setInt(lookup, envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positive, "must be > 0", warnings)
	warnings = setDuration(lookup, envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegativeDuration, "must be >= 0", warnings)
	warnings = setInt(lookup, envOutboxMaxPending, &cfg.OutboxMaxPending, nonNegative, "must be >= 0", warnings)

	warnings = setDuration(lookup, envIdempotencyTTL, &cfg.IdempotencyTTL, positiveDuration, "must be > 0", warnings)
	warnings = setDuration(lookup, envIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval, positiveDuration, "must be > 0", warnings)
	warnings = setInt(lookup, envIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize, positive, "must be > 0", warnings)

	setString(lookup, envOTLPEndpoint, &cfg.OTLPEndpoint)
	setString(lookup, envServiceName, &cfg.ServiceName)
	setString(lookup, envLogLevel, &cfg.LogLevel)
	setString(lookup, envLogFile, &cfg.LogFile)

	return cfg, warnings
}

func nonEmpty(lookup envLookup, key string) (string, bool) {
	raw, ok := lookup(key)
	if !ok {
		return "", false
	}
	value := strings.TrimSpace(raw)
	return value, value != ""
}

func setString(lookup envLookup, key string, dst *string) {
	if v, ok := nonEmpty(lookup, key); ok {
		*dst = v
	}
}

func setBool(lookup envLookup, key string, dst *bool, warnings []string) []string {
	v, ok := nonEmpty(lookup, key)
	if !ok {
		return warnings
	}
	parsed, err := parseBool(v)
	if err != nil {
		return append(warnings, fmt.Sprintf("%s: %v", key, err))
	}
	*dst = parsed
	return warnings
}

func setInt(lookup envLookup, key string, dst *int, valid func(int) bool, rule string, warnings []string) []string {
	v, ok := nonEmpty(lookup, key)
	if !ok {
		return warnings
	}
	parsed, err := parseInt(v, valid, rule)
	if err != nil {
		return append(warnings, fmt.Sprintf("%s: %v", key, err))
	}
	*dst = parsed
	return warnings
}

func setDuration(lookup envLookup, key string, dst *time.Duration, valid func(time.Duration) bool, rule string, warnings []string) []string {
	v, ok := nonEmpty(lookup, key)
	if !ok {
		return warnings
	}
	parsed, err := parseDuration(v, valid, rule)
	if err != nil {
		return append(warnings, fmt.Sprintf("%s: %v", key, err))
	}
	*dst = parsed
	return warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q", raw)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("value %d %s", value, rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q", raw)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("value %s %s", value, rule)
	}
	return value, nil
}
