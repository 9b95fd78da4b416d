// Package config provides centralized default values for OpenPulse
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		if err := godotenv.Load(); err == nil {
			log.Println("Loading configuration overrides from .env file...")
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Relational store (sites + active sessions)
	DBDriver                 string
	DBDataSource             string
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int

	// ClickHouse (analytical store)
	ClickHouseAddr        string
	ClickHouseDatabase    string
	ClickHouseUser        string
	ClickHousePassword    string
	ClickHouseDialTimeout time.Duration

	// Event queue
	QueueBatchSize     int
	QueueFlushInterval time.Duration
	QueueMaxDepth      int
	FlushMaxRetries    int
	FlushRetryBaseWait time.Duration

	// Session retention
	SessionIdleTTL        time.Duration
	SessionReaperInterval time.Duration

	// Observability
	SlowQueryThreshold time.Duration
	SlowOpThreshold    time.Duration
	LogDirectory       string
	LogToFile          bool
	LogVerbose         bool

	// CORS
	AllowedOrigins []string
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Relational store
	DBDriver = getEnvString("DB_DRIVER", "sqlite3")
	DBDataSource = getEnvString("DB_DATA_SOURCE", "openpulse.db")
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)

	// ClickHouse
	ClickHouseAddr = getEnvString("CLICKHOUSE_ADDR", "localhost:9000")
	ClickHouseDatabase = getEnvString("CLICKHOUSE_DB", "openpulse")
	ClickHouseUser = getEnvString("CLICKHOUSE_USER", "default")
	ClickHousePassword = getEnvString("CLICKHOUSE_PASSWORD", "")
	ClickHouseDialTimeout = getEnvDuration("CLICKHOUSE_DIAL_TIMEOUT", 10*time.Second)

	// Event queue
	QueueBatchSize = getEnvInt("QUEUE_BATCH_SIZE", 5)
	QueueFlushInterval = getEnvDuration("QUEUE_FLUSH_INTERVAL", 10*time.Second)
	QueueMaxDepth = getEnvInt("QUEUE_MAX_DEPTH", 10000)
	FlushMaxRetries = getEnvInt("FLUSH_MAX_RETRIES", 3)
	FlushRetryBaseWait = getEnvDuration("FLUSH_RETRY_BASE_WAIT", 250*time.Millisecond)

	// Session retention
	SessionIdleTTL = time.Duration(getEnvInt("SESSION_IDLE_TTL_MINUTES", 30)) * time.Minute
	SessionReaperInterval = time.Duration(getEnvInt("SESSION_REAPER_INTERVAL_MINUTES", 5)) * time.Minute

	// Observability
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 100*time.Millisecond)
	SlowOpThreshold = getEnvDuration("SLOW_OP_THRESHOLD", 500*time.Millisecond)
	LogDirectory = getEnvString("LOG_DIRECTORY", "logs")
	LogToFile = getEnvBool("LOG_TO_FILE", false)
	LogVerbose = getEnvBool("LOG_VERBOSE", false)

	// The tracking endpoint is embedded on arbitrary customer sites, so
	// origins default to permissive and can be narrowed per deployment.
	if origins := getEnvString("ALLOWED_ORIGINS", ""); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				AllowedOrigins = append(AllowedOrigins, o)
			}
		}
	}
}
