// Package config builds runtime configuration from environment variables so
// main stays lean. Empty optional values (database, redis, kafka) switch the
// corresponding component to its in-memory implementation.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything cmd/server needs to wire the service.
type Config struct {
	Addr            string
	DatabaseURL     string
	Redis           RedisConfig
	Kafka           KafkaConfig
	JWTSigningKey   string
	JWTIssuer       string
	JWTAudience     string
	ShutdownTimeout time.Duration
}

// RedisConfig holds connection settings for the issuance lock store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds settings for the audit event sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:          envOr("GATEPASS_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("GATEPASS_DATABASE_URL"),
		JWTSigningKey: os.Getenv("GATEPASS_JWT_SIGNING_KEY"),
		JWTIssuer:     envOr("GATEPASS_JWT_ISSUER", "gatepass"),
		JWTAudience:   envOr("GATEPASS_JWT_AUDIENCE", "gatepass-api"),
		Redis: RedisConfig{
			URL:          os.Getenv("GATEPASS_REDIS_URL"),
			PoolSize:     envIntOr("GATEPASS_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("GATEPASS_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDurationOr("GATEPASS_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("GATEPASS_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("GATEPASS_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Topic: envOr("GATEPASS_KAFKA_TOPIC", "gatepass.audit"),
		},
		ShutdownTimeout: envDurationOr("GATEPASS_SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if cfg.JWTSigningKey == "" {
		// Development default; must be overridden in production.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}

	if brokers := os.Getenv("GATEPASS_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
