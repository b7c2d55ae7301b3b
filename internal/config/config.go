// internal/config/config.go

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backend selectors
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Storage     StorageConfig
	Database    DatabaseConfig
	NATS        NATSConfig
	Redis       RedisConfig
	Presence    PresenceConfig
	Proximity   ProximityConfig
	Alert       AlertConfig
	Feed        FeedConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// StorageConfig selects the store implementations
type StorageConfig struct {
	// Backend is "memory" or "postgres".
	Backend string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	SSLMode      string
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
	RelayEnabled   bool
	SubjectPrefix  string
}

// RedisConfig holds the optional presence cache configuration. An empty
// Addr disables the cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// PresenceConfig holds location publication configuration
type PresenceConfig struct {
	PublishInterval    time.Duration
	NearbyRadiusMeters float64
}

// ProximityConfig holds proximity matching configuration
type ProximityConfig struct {
	// SignalRadiusMeters is the implicit "nearby" radius applied to
	// distress signals, which carry no radius of their own.
	SignalRadiusMeters float64
}

// AlertConfig holds safety alert configuration
type AlertConfig struct {
	DefaultRadiusMeters float64
}

// FeedConfig holds change-feed bus configuration
type FeedConfig struct {
	SubscriberBuffer int
}

// Load loads configuration from environment variables
func Load() (Config, error) {
	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Storage: StorageConfig{
			Backend: getEnv("STORE_BACKEND", BackendMemory),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Database:     getEnv("DB_NAME", "aegis"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
		},
		NATS: NATSConfig{
			URL:            getEnv("NATS_URL", "nats://localhost:4222"),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
			RelayEnabled:   getEnvAsBool("NATS_RELAY_ENABLED", false),
			SubjectPrefix:  getEnv("NATS_SUBJECT_PREFIX", "feed"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			CacheTTL: getEnvAsDuration("REDIS_CACHE_TTL", 30*time.Second),
		},
		Presence: PresenceConfig{
			PublishInterval:    getEnvAsDuration("PRESENCE_PUBLISH_INTERVAL", 15*time.Second),
			NearbyRadiusMeters: getEnvAsFloat("PRESENCE_NEARBY_RADIUS_M", 1000.0),
		},
		Proximity: ProximityConfig{
			SignalRadiusMeters: getEnvAsFloat("PROXIMITY_SIGNAL_RADIUS_M", 100.0),
		},
		Alert: AlertConfig{
			DefaultRadiusMeters: getEnvAsFloat("ALERT_DEFAULT_RADIUS_M", 500.0),
		},
		Feed: FeedConfig{
			SubscriberBuffer: getEnvAsInt("FEED_SUBSCRIBER_BUFFER", 256),
		},
	}

	return config, validate(config)
}

// validate checks if config is valid
func validate(config Config) error {
	if config.Storage.Backend != BackendMemory && config.Storage.Backend != BackendPostgres {
		return fmt.Errorf("unknown storage backend %q", config.Storage.Backend)
	}
	if config.Presence.PublishInterval <= 0 {
		return fmt.Errorf("presence publish interval must be positive")
	}
	if config.Proximity.SignalRadiusMeters <= 0 {
		return fmt.Errorf("signal proximity radius must be positive")
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
