package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	StorageDriver  string
	DatabaseURL    string
	MaxDBConns     int32
	RedisURL       string
	ProfileGRPCURL string

	KafkaBrokers       []string
	KafkaConsumerGroup string
	// KafkaTopics overrides the topic an outbox event type is published to.
	KafkaTopics map[string]string

	JWTSecret      string
	JWTIssuer      string
	WebhookSecrets map[string]string

	OutboxPollInterval   time.Duration
	OutboxBatchSize      int
	OutboxMaxRetries     int
	ConsumerPollInterval time.Duration
	SweepInterval        time.Duration
	SweepBatchSize       int

	DefaultCurrency string
	IdempotencyTTL  time.Duration
	PolicyCacheTTL  time.Duration
	AutoAcceptAfter time.Duration
}

type configFile struct {
	Service struct {
		ID              string `yaml:"id"`
		HTTPPort        int    `yaml:"http_port"`
		GRPCPort        int    `yaml:"grpc_port"`
		DefaultCurrency string `yaml:"default_currency"`
	} `yaml:"service"`
	Dependencies struct {
		StorageDriver      string            `yaml:"storage_driver"`
		PostgresURL        string            `yaml:"postgres_url"`
		MaxDBConns         int32             `yaml:"max_db_conns"`
		RedisURL           string            `yaml:"redis_url"`
		ProfileGRPCURL     string            `yaml:"profile_grpc_url"`
		KafkaBrokers       []string          `yaml:"kafka_brokers"`
		KafkaConsumerGroup string            `yaml:"kafka_consumer_group"`
		KafkaTopics        map[string]string `yaml:"kafka_topics"`
	} `yaml:"dependencies"`
	Security struct {
		JWTIssuer      string            `yaml:"jwt_issuer"`
		WebhookSecrets map[string]string `yaml:"webhook_secrets"`
	} `yaml:"security"`
	Ledger struct {
		IdempotencyTTLHours  int `yaml:"idempotency_ttl_hours"`
		PolicyCacheSeconds   int `yaml:"policy_cache_seconds"`
		AutoAcceptHours      int `yaml:"auto_accept_hours"`
		OutboxPollSeconds    int `yaml:"outbox_poll_seconds"`
		OutboxBatchSize      int `yaml:"outbox_batch_size"`
		OutboxMaxRetries     int `yaml:"outbox_max_retries"`
		ConsumerPollSeconds  int `yaml:"consumer_poll_seconds"`
		SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
		SweepBatchSize       int `yaml:"sweep_batch_size"`
	} `yaml:"ledger"`
}

// LoadConfig layers defaults, the yaml file at path (optional) and the
// environment, in that order. A .env file in the working directory is loaded
// first and never overrides variables already set.
func LoadConfig(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ServiceID:            "marketplace-ledger",
		HTTPPort:             8080,
		GRPCPort:             9090,
		StorageDriver:        StorageDriverPostgres,
		MaxDBConns:           20,
		KafkaConsumerGroup:   "marketplace-ledger",
		KafkaTopics:          map[string]string{},
		WebhookSecrets:       map[string]string{},
		OutboxPollInterval:   2 * time.Second,
		OutboxBatchSize:      100,
		OutboxMaxRetries:     10,
		ConsumerPollInterval: 2 * time.Second,
		SweepInterval:        5 * time.Minute,
		SweepBatchSize:       100,
		DefaultCurrency:      "ZAR",
		IdempotencyTTL:       7 * 24 * time.Hour,
		PolicyCacheTTL:       5 * time.Minute,
		AutoAcceptAfter:      72 * time.Hour,
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		applyFile(&cfg, f)
	case !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg.StorageDriver = strings.ToLower(envOrDefault("STORAGE_DRIVER", cfg.StorageDriver))
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.ProfileGRPCURL = envOrDefault("PROFILE_GRPC_URL", cfg.ProfileGRPCURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaConsumerGroup = envOrDefault("KAFKA_CONSUMER_GROUP", cfg.KafkaConsumerGroup)
	cfg.JWTSecret = envOrDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = envOrDefault("JWT_ISSUER", cfg.JWTIssuer)
	cfg.DefaultCurrency = strings.ToUpper(envOrDefault("DEFAULT_CURRENCY", cfg.DefaultCurrency))
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)
	cfg.ConsumerPollInterval = time.Duration(envInt("CONSUMER_POLL_SECONDS", int(cfg.ConsumerPollInterval.Seconds()))) * time.Second
	cfg.SweepInterval = time.Duration(envInt("SWEEP_INTERVAL_SECONDS", int(cfg.SweepInterval.Seconds()))) * time.Second
	cfg.SweepBatchSize = envInt("SWEEP_BATCH_SIZE", cfg.SweepBatchSize)
	cfg.IdempotencyTTL = time.Duration(envInt("IDEMPOTENCY_TTL_HOURS", int(cfg.IdempotencyTTL.Hours()))) * time.Hour
	cfg.PolicyCacheTTL = time.Duration(envInt("POLICY_CACHE_SECONDS", int(cfg.PolicyCacheTTL.Seconds()))) * time.Second
	cfg.AutoAcceptAfter = time.Duration(envInt("AUTO_ACCEPT_HOURS", int(cfg.AutoAcceptAfter.Hours()))) * time.Hour
	for gateway, secret := range envPrefixed("WEBHOOK_SECRET_") {
		cfg.WebhookSecrets[gateway] = secret
	}

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
		}
	case StorageDriverMemory:
	default:
		return Config{}, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("missing JWT_SECRET")
	}
	return cfg, nil
}

func applyFile(cfg *Config, f configFile) {
	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	if f.Service.DefaultCurrency != "" {
		cfg.DefaultCurrency = strings.ToUpper(f.Service.DefaultCurrency)
	}
	deps := f.Dependencies
	if deps.StorageDriver != "" {
		cfg.StorageDriver = deps.StorageDriver
	}
	if deps.PostgresURL != "" {
		cfg.DatabaseURL = deps.PostgresURL
	}
	if deps.MaxDBConns > 0 {
		cfg.MaxDBConns = deps.MaxDBConns
	}
	if deps.RedisURL != "" {
		cfg.RedisURL = deps.RedisURL
	}
	if deps.ProfileGRPCURL != "" {
		cfg.ProfileGRPCURL = deps.ProfileGRPCURL
	}
	if len(deps.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = trimNonEmpty(deps.KafkaBrokers)
	}
	if deps.KafkaConsumerGroup != "" {
		cfg.KafkaConsumerGroup = deps.KafkaConsumerGroup
	}
	for eventType, topic := range deps.KafkaTopics {
		if strings.TrimSpace(topic) != "" {
			cfg.KafkaTopics[eventType] = strings.TrimSpace(topic)
		}
	}
	if f.Security.JWTIssuer != "" {
		cfg.JWTIssuer = f.Security.JWTIssuer
	}
	for gateway, secret := range f.Security.WebhookSecrets {
		cfg.WebhookSecrets[strings.ToLower(gateway)] = secret
	}

	l := f.Ledger
	if l.IdempotencyTTLHours > 0 {
		cfg.IdempotencyTTL = time.Duration(l.IdempotencyTTLHours) * time.Hour
	}
	if l.PolicyCacheSeconds > 0 {
		cfg.PolicyCacheTTL = time.Duration(l.PolicyCacheSeconds) * time.Second
	}
	if l.AutoAcceptHours > 0 {
		cfg.AutoAcceptAfter = time.Duration(l.AutoAcceptHours) * time.Hour
	}
	if l.OutboxPollSeconds > 0 {
		cfg.OutboxPollInterval = time.Duration(l.OutboxPollSeconds) * time.Second
	}
	if l.OutboxBatchSize > 0 {
		cfg.OutboxBatchSize = l.OutboxBatchSize
	}
	if l.OutboxMaxRetries > 0 {
		cfg.OutboxMaxRetries = l.OutboxMaxRetries
	}
	if l.ConsumerPollSeconds > 0 {
		cfg.ConsumerPollInterval = time.Duration(l.ConsumerPollSeconds) * time.Second
	}
	if l.SweepIntervalSeconds > 0 {
		cfg.SweepInterval = time.Duration(l.SweepIntervalSeconds) * time.Second
	}
	if l.SweepBatchSize > 0 {
		cfg.SweepBatchSize = l.SweepBatchSize
	}
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	items := strings.Split(raw, ",")
	return trimNonEmpty(items)
}

// envPrefixed collects PREFIX_NAME=value pairs keyed by lower-cased NAME.
func envPrefixed(prefix string) map[string]string {
	out := map[string]string{}
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) || value == "" {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, prefix))
		if key != "" {
			out[key] = value
		}
	}
	return out
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
