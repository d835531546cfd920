package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ServiceName    = "salespoint-inventory"
	ServiceVersion = "0.1.0"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	DBDriver          string
	DatabaseDSN       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	AutoMigrate       bool

	RedisAddr      string
	IdempotencyTTL time.Duration

	KafkaBrokers        string
	KafkaLifecycleTopic string
	KafkaReportTopic    string
	KafkaGroupID        string
	ConsumerWorkers     int

	OtelEndpoint   string
	LogLevel       string
	AllowedOrigins []string
	ExemptProducts []string
}

// Load reads the environment, after merging a .env file when one exists.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var errs []error
	cfg := &Config{
		HTTPAddr:            GetEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:            GetEnv("GRPC_ADDR", ":50051"),
		DBDriver:            strings.ToLower(GetEnv("DB_DRIVER", "mysql")),
		DatabaseDSN:         GetEnv("DATABASE_DSN", "root:password@tcp(localhost:3306)/salespoint?parseTime=true"),
		DBMaxOpenConns:      getInt("DB_MAX_OPEN_CONNS", 100, &errs),
		DBMaxIdleConns:      getInt("DB_MAX_IDLE_CONNS", 20, &errs),
		DBConnMaxLifetime:   time.Duration(getInt("DB_CONN_MAX_LIFETIME_SECONDS", 300, &errs)) * time.Second,
		AutoMigrate:         getBool("AUTO_MIGRATE", true, &errs),
		RedisAddr:           GetEnv("REDIS_ADDR", ""),
		IdempotencyTTL:      getDuration("IDEMPOTENCY_TTL", 24*time.Hour, &errs),
		KafkaBrokers:        GetEnv("KAFKA_BROKERS", ""),
		KafkaLifecycleTopic: GetEnv("KAFKA_LIFECYCLE_TOPIC", "order-lifecycle"),
		KafkaReportTopic:    GetEnv("KAFKA_REPORT_TOPIC", "completion-reports"),
		KafkaGroupID:        GetEnv("KAFKA_GROUP_ID", "salespoint-inventory"),
		ConsumerWorkers:     getInt("CONSUMER_WORKERS", 4, &errs),
		OtelEndpoint:        GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		LogLevel:            GetEnv("LOG_LEVEL", "info"),
		AllowedOrigins:      splitList(GetEnv("ALLOWED_ORIGINS", "*")),
		ExemptProducts:      splitList(GetEnv("EXEMPT_PRODUCTS", "")),
	}

	switch cfg.DBDriver {
	case "mysql", "postgres":
		if cfg.DatabaseDSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required for DB_DRIVER "+cfg.DBDriver))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be mysql, postgres or memory, got %q", cfg.DBDriver))
	}
	if cfg.ConsumerWorkers <= 0 {
		errs = append(errs, fmt.Errorf("CONSUMER_WORKERS must be positive, got %d", cfg.ConsumerWorkers))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// GetEnv retrieves an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int, errs *[]error) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool, errs *[]error) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

// getDuration accepts Go durations ("90s", "24h") or plain seconds.
func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func splitList(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
