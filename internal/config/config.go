package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Storage   StorageConfig
	Realtime  RealtimeConfig
	Stats     StatsConfig
	Telemetry TelemetryConfig
}

type AppConfig struct {
	Port                string
	Environment         string
	LogFilePath         string
	RealtimeLogFilePath string
	CorsAllowedOrigins  string
	NatsURL             string // empty disables presence event publication
	AuthSecret          string // empty disables auth signature verification
}

type StorageConfig struct {
	Type           string // "redis", "badger" or "memory"
	RedisURL       string
	BadgerPath     string // empty runs badger in memory
	MaxRetries     int
	RetryBaseDelay time.Duration
	ScanCount      int64
}

type RealtimeConfig struct {
	Path              string
	HeartbeatInterval time.Duration
	SendBuffer        int
	MaxMessageSize    int64
	WriteWait         time.Duration
	RateLimit         float64 // inbound frames per second per session, 0 disables
	RateBurst         int
}

type StatsConfig struct {
	CacheTTL   time.Duration
	EventTopic string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:                getEnv("APP_PORT", "3000"),
			Environment:         getEnv("GO_ENV", "development"),
			LogFilePath:         getEnv("LOG_FILE_PATH", "logs/app.log"),
			RealtimeLogFilePath: getEnv("REALTIME_LOG_FILE_PATH", "logs/realtime.log"),
			CorsAllowedOrigins:  getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			NatsURL:             getEnv("NATS_URL", ""),
			AuthSecret:          getEnv("AUTH_SECRET", ""),
		},
		Storage: StorageConfig{
			Type:           getEnv("STORAGE_TYPE", "memory"),
			RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379"),
			BadgerPath:     getEnv("BADGER_PATH", ""),
			MaxRetries:     getEnvAsInt("KV_MAX_RETRIES", 3),
			RetryBaseDelay: getEnvAsDuration("KV_RETRY_BASE_DELAY", time.Second),
			ScanCount:      int64(getEnvAsInt("KV_SCAN_COUNT", 100)),
		},
		Realtime: RealtimeConfig{
			Path:              getEnv("WS_PATH", "/ws"),
			HeartbeatInterval: getEnvAsDuration("WS_HEARTBEAT_INTERVAL", 30*time.Second),
			SendBuffer:        getEnvAsInt("WS_SEND_BUFFER", 256),
			MaxMessageSize:    int64(getEnvAsInt("WS_MAX_MESSAGE_SIZE", 64*1024)),
			WriteWait:         getEnvAsDuration("WS_WRITE_WAIT", 10*time.Second),
			RateLimit:         getEnvAsFloat("WS_RATE_LIMIT", 20),
			RateBurst:         getEnvAsInt("WS_RATE_BURST", 40),
		},
		Stats: StatsConfig{
			CacheTTL:   getEnvAsDuration("STATS_CACHE_TTL", 30*time.Minute),
			EventTopic: getEnv("PLAY_EVENT_TOPIC", "play_recorded"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("30s") or a bare number of milliseconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if d, err := time.ParseDuration(strValue); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
