package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP
	HTTPPort string

	// Postgres
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int32

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Remote telemetry API
	RemoteBaseURL string
	RemoteTimeout time.Duration

	// Poll cadence
	AwakeInterval  time.Duration
	AsleepInterval time.Duration
	DefaultBackoff time.Duration

	// Significance thresholds
	HeartbeatInterval time.Duration
	BatteryDeltaPct   float64
	MovementMeters    float64

	// Pipeline channels
	DBChannelSize     int
	StateChannelSize  int
	HealthChannelSize int

	// MQTT push ingest (disabled when broker URL is empty)
	MQTTBrokerURL string
	MQTTClientID  string

	// Auth
	AuthCacheTTLSeconds int
	ValidAPIKeys        []string

	LogLevel string
}

func Load() *Config {
	_ = godotenv.Load(".env")

	return &Config{
		HTTPPort:            getEnv("HTTP_PORT", "8002"),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnv("DB_PORT", "5432"),
		DBUser:              getEnv("DB_USER", "rivianmate"),
		DBPassword:          getEnv("DB_PASSWORD", "rivianmate"),
		DBName:              getEnv("DB_NAME", "rivianmate"),
		DBMaxConns:          int32(getEnvInt("DB_MAX_CONNS", 15)),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		RemoteBaseURL:       getEnv("REMOTE_BASE_URL", "https://rivian.com/api/gql/gateway"),
		RemoteTimeout:       getEnvDuration("REMOTE_TIMEOUT", 30*time.Second),
		AwakeInterval:       getEnvDuration("POLL_AWAKE_INTERVAL", 30*time.Second),
		AsleepInterval:      getEnvDuration("POLL_ASLEEP_INTERVAL", 15*time.Minute),
		DefaultBackoff:      getEnvDuration("POLL_DEFAULT_BACKOFF", 15*time.Minute),
		HeartbeatInterval:   getEnvDuration("PERSIST_HEARTBEAT", time.Hour),
		BatteryDeltaPct:     getEnvFloat("PERSIST_BATTERY_DELTA_PCT", 0.5),
		MovementMeters:      getEnvFloat("PERSIST_MOVEMENT_METERS", 50),
		DBChannelSize:       getEnvInt("DB_CHANNEL_SIZE", 1000),
		StateChannelSize:    getEnvInt("STATE_CHANNEL_SIZE", 5000),
		HealthChannelSize:   getEnvInt("HEALTH_CHANNEL_SIZE", 1000),
		MQTTBrokerURL:       getEnv("MQTT_BROKER_URL", ""),
		MQTTClientID:        getEnv("MQTT_CLIENT_ID", "rivianmate-collector"),
		AuthCacheTTLSeconds: getEnvInt("AUTH_CACHE_TTL_SECONDS", 300),
		ValidAPIKeys:        strings.Split(getEnv("VALID_API_KEYS", ""), ","),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
