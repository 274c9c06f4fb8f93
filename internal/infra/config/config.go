package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env                 string
	HTTPAddr            string
	StorageMode         string
	MongoURI            string
	MongoDB             string
	KafkaBrokers        []string
	KafkaTopicPrefix    string
	IdempotencyTTL      time.Duration
	OutboxPollInterval  time.Duration
	RetryBackoff        []time.Duration
	PaymentsMode        string
	PaymentsGatewayURL  string
	PaymentsAPIKey      string
	PaymentsTimeout     time.Duration
	WebhookSecret       string
	ApprovalWindow      time.Duration
	OrphanGrace         time.Duration
	ApprovalSweepSpec   string
	ReconcileSweepSpec  string
	CompletionSweepSpec string
	FixturesPath        string
}

// Load parses configuration from the current environment. A .env file in
// the working directory is applied first when present.
func Load() (Config, error) {
	_ = godotenv.Load()
	cfg := Config{
		Env:                 getEnv("APP_ENV", "dev"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		StorageMode:         strings.ToLower(getEnv("STORAGE_MODE", "memory")),
		MongoURI:            os.Getenv("MONGO_URI"),
		MongoDB:             getEnv("MONGO_DB", "driveshare"),
		KafkaTopicPrefix:    getEnv("KAFKA_TOPIC_PREFIX", ""),
		PaymentsMode:        strings.ToLower(getEnv("PAYMENTS_MODE", "fake")),
		PaymentsGatewayURL:  getEnv("PAYMENTS_GATEWAY_URL", "http://localhost:8100"),
		PaymentsAPIKey:      os.Getenv("PAYMENTS_API_KEY"),
		WebhookSecret:       os.Getenv("WEBHOOK_SECRET"),
		ApprovalSweepSpec:   getEnv("APPROVAL_SWEEP_SPEC", "@every 1m"),
		ReconcileSweepSpec:  getEnv("RECONCILE_SWEEP_SPEC", "@every 5m"),
		CompletionSweepSpec: getEnv("COMPLETION_SWEEP_SPEC", "@every 1h"),
		FixturesPath:        getEnv("FIXTURES_PATH", ""),
	}
	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	idempotencyTTL, err := parseDurationEnv("IDEMP_TTL", 168*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.IdempotencyTTL = idempotencyTTL

	poll, err := parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	cfg.OutboxPollInterval = poll

	paymentsTimeout, err := parseDurationEnv("PAYMENTS_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.PaymentsTimeout = paymentsTimeout

	approvalWindow, err := parseDurationEnv("APPROVAL_WINDOW", 24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.ApprovalWindow = approvalWindow

	orphanGrace, err := parseDurationEnv("ORPHAN_GRACE", 15*time.Minute)
	if err != nil {
		return Config{}, err
	}
	cfg.OrphanGrace = orphanGrace

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	switch cfg.StorageMode {
	case "memory":
	case "mongo":
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("MONGO_URI is required when STORAGE_MODE=mongo")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORAGE_MODE %q", cfg.StorageMode)
	}
	switch cfg.PaymentsMode {
	case "fake":
	case "http":
		if cfg.PaymentsGatewayURL == "" {
			return Config{}, fmt.Errorf("PAYMENTS_GATEWAY_URL is required when PAYMENTS_MODE=http")
		}
	default:
		return Config{}, fmt.Errorf("unknown PAYMENTS_MODE %q", cfg.PaymentsMode)
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}
