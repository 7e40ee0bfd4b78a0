package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"callback-queue-service/internal/db"
	"callback-queue-service/internal/domain/callback"
	"callback-queue-service/internal/pkg/jwt"
	"callback-queue-service/internal/repository/memory"
)

type StoreBackend string

const (
	StoreMemory   StoreBackend = "memory"
	StoreRedis    StoreBackend = "redis"
	StorePostgres StoreBackend = "postgres"
)

type AppConfig struct {
	// Server
	HTTPAddr       string
	Env            string
	AllowedOrigins []string

	// Storage
	StoreBackend       StoreBackend
	Postgres           db.PostgresConfig
	Redis              db.RedisConfig
	RedisKeyPrefix     string
	StoreWriteAttempts int
	StoreWriteBackoff  time.Duration

	// Event fan-out; Kafka is off when no brokers are set
	KafkaBrokers []string
	KafkaTopic   string

	// JWT
	JWT jwt.Config

	// Queue
	Policy               callback.RetryPolicy
	PolicyFile           string
	MinutesPerPosition   int
	TickInterval         time.Duration
	NotificationTTL      time.Duration
	AutoPromoteScheduled bool

	// Agents known at startup when no shared directory is configured
	StaticAgents []memory.Agent
}

// Load loads environment variables into AppConfig.
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8000"),
		Env:            getEnv("APP_ENV", "development"),
		AllowedOrigins: getEnvSlice("WS_ALLOWED_ORIGINS", nil),

		StoreBackend: StoreBackend(strings.ToLower(getEnv("STORE_BACKEND", string(StoreMemory)))),
		Postgres: db.PostgresConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: int32(getEnvInt("DATABASE_MAX_CONNS", 10)),
		},
		Redis: db.RedisConfig{
			ClusterMode: getEnvBool("REDIS_CLUSTER", false),
			Addresses:   getEnvSlice("REDIS_ADDR", []string{"localhost:6379"}),
			Password:    getEnv("REDIS_PASS", ""),
			DB:          getEnvInt("REDIS_DB", 0),
			PoolSize:    getEnvInt("REDIS_POOL_SIZE", 10),
		},
		RedisKeyPrefix:     getEnv("REDIS_KEY_PREFIX", "callbacks"),
		StoreWriteAttempts: getEnvInt("STORE_WRITE_ATTEMPTS", 3),
		StoreWriteBackoff:  getEnvDuration("STORE_WRITE_BACKOFF", 200*time.Millisecond),

		KafkaBrokers: getEnvSlice("KAFKA_BROKERS", nil),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "callback-events"),

		JWT: jwt.Config{
			PubPath:  getEnv("JWT_PUBLIC_KEY_PATH", "/app/secrets/jwt_public.pem"),
			Issuer:   getEnv("JWT_ISSUER", ""),
			Audience: getEnv("JWT_AUDIENCE", ""),
		},

		Policy: callback.RetryPolicy{
			Version:              callback.CurrentPolicyVersion,
			MaxRetries:           getEnvInt("CALLBACK_MAX_RETRIES", 3),
			RetryIntervalMinutes: getEnvInt("CALLBACK_RETRY_INTERVAL_MINUTES", 5),
		},
		PolicyFile:           getEnv("CALLBACK_POLICY_FILE", ""),
		MinutesPerPosition:   getEnvInt("CALLBACK_DEFAULT_WAIT_MINUTES", 5),
		TickInterval:         getEnvDuration("CALLBACK_TICK_INTERVAL", time.Minute),
		NotificationTTL:      getEnvDuration("CALLBACK_NOTIFICATION_TTL", 5*time.Minute),
		AutoPromoteScheduled: getEnvBool("CALLBACK_AUTO_PROMOTE_SCHEDULED", false),
	}

	agents, err := ParseStaticAgents(getEnv("STATIC_AGENTS", ""))
	if err != nil {
		return cfg, err
	}
	cfg.StaticAgents = agents

	return cfg, cfg.Validate()
}

func (c AppConfig) Validate() error {
	switch c.StoreBackend {
	case StoreMemory, StoreRedis:
	case StorePostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if err := ValidatePolicy(c.Policy); err != nil {
		return err
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("CALLBACK_TICK_INTERVAL must be positive")
	}
	if c.StoreWriteAttempts < 1 {
		return fmt.Errorf("STORE_WRITE_ATTEMPTS must be at least 1")
	}
	return nil
}

func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// ParseStaticAgents reads "id:name[:available],..." entries. Agents are
// available unless the third field says otherwise.
func ParseStaticAgents(raw string) ([]memory.Agent, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var agents []memory.Agent
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid STATIC_AGENTS entry %q", entry)
		}

		available := true
		if len(parts) == 3 {
			v, err := strconv.ParseBool(parts[2])
			if err != nil {
				return nil, fmt.Errorf("invalid availability in STATIC_AGENTS entry %q: %w", entry, err)
			}
			available = v
		}
		agents = append(agents, memory.Agent{ID: parts[0], Name: parts[1], Available: available})
	}
	return agents, nil
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		return out
	}
	return defaultValue
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
