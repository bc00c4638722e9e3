package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	DBMaxConns    int    `env:"DB_MAX_CONNS" envDefault:"10"`
	// RespondersFile - JSON со справочником ответчиков для STORAGE_DRIVER=memory
	RespondersFile string `env:"RESPONDERS_FILE"`
	HTTPPort       string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis Config
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Webhook Config (SMS/push шлюз для оповещения контактов)
	WebhookURL        string        `env:"WEBHOOK_URL"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	WebhookMaxRetries int           `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
	WebhookBaseDelay  time.Duration `env:"WEBHOOK_BASE_DELAY" envDefault:"1s"`

	// Auth Config
	JWTSecret string `env:"JWT_SECRET"`
	// API Keys для административных маршрутов
	APIKeys []string `env:"API_KEYS"`

	// Dispatch Config
	IdempotencyWindow        time.Duration `env:"IDEMPOTENCY_WINDOW" envDefault:"60s"`
	LocatorRadiusKm          float64       `env:"LOCATOR_RADIUS_KM" envDefault:"50"`
	LocatorLimit             int           `env:"LOCATOR_LIMIT" envDefault:"5"`
	ResponderRefreshInterval time.Duration `env:"RESPONDER_REFRESH_INTERVAL" envDefault:"5m"`
	DispatchRetryAttempts    int           `env:"DISPATCH_RETRY_ATTEMPTS" envDefault:"3"`
	DispatchRetryBaseDelay   time.Duration `env:"DISPATCH_RETRY_BASE_DELAY" envDefault:"100ms"`
	DispatchTimeout          time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"10s"`
	FanoutTimeout            time.Duration `env:"FANOUT_TIMEOUT" envDefault:"15s"`

	// Realtime Config
	OutboxSize       int           `env:"OUTBOX_SIZE" envDefault:"64"`
	ReplayBufferSize int           `env:"REPLAY_BUFFER_SIZE" envDefault:"100"`
	ReplayBufferTTL  time.Duration `env:"REPLAY_BUFFER_TTL" envDefault:"60s"`
	WSPingInterval   time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`

	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"100"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		StorageDriver:            getEnv("STORAGE_DRIVER", StorageDriverPostgres),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		DBMaxConns:               getEnvAsInt("DB_MAX_CONNS", 10),
		RespondersFile:           os.Getenv("RESPONDERS_FILE"),
		HTTPPort:                 getEnv("HTTP_PORT", "8080"),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		RedisAddr:                getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:                os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  getEnvAsInt("REDIS_DB", 0),
		WebhookURL:               os.Getenv("WEBHOOK_URL"),
		WebhookSecret:            os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeout:           getEnvAsDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		WebhookMaxRetries:        getEnvAsInt("WEBHOOK_MAX_RETRIES", 3),
		WebhookBaseDelay:         getEnvAsDuration("WEBHOOK_BASE_DELAY", time.Second),
		JWTSecret:                os.Getenv("JWT_SECRET"),
		IdempotencyWindow:        getEnvAsDuration("IDEMPOTENCY_WINDOW", 60*time.Second),
		LocatorRadiusKm:          getEnvAsFloat("LOCATOR_RADIUS_KM", 50),
		LocatorLimit:             getEnvAsInt("LOCATOR_LIMIT", 5),
		ResponderRefreshInterval: getEnvAsDuration("RESPONDER_REFRESH_INTERVAL", 5*time.Minute),
		DispatchRetryAttempts:    getEnvAsInt("DISPATCH_RETRY_ATTEMPTS", 3),
		DispatchRetryBaseDelay:   getEnvAsDuration("DISPATCH_RETRY_BASE_DELAY", 100*time.Millisecond),
		DispatchTimeout:          getEnvAsDuration("DISPATCH_TIMEOUT", 10*time.Second),
		FanoutTimeout:            getEnvAsDuration("FANOUT_TIMEOUT", 15*time.Second),
		OutboxSize:               getEnvAsInt("OUTBOX_SIZE", 64),
		ReplayBufferSize:         getEnvAsInt("REPLAY_BUFFER_SIZE", 100),
		ReplayBufferTTL:          getEnvAsDuration("REPLAY_BUFFER_TTL", 60*time.Second),
		WSPingInterval:           getEnvAsDuration("WS_PING_INTERVAL", 30*time.Second),
		RateLimitPerMinute:       getEnvAsInt("RATE_LIMIT_PER_MINUTE", 100),
		ShutdownTimeout:          getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	// Загрузка API ключей
	apiKeysStr := os.Getenv("API_KEYS")
	if apiKeysStr != "" {
		cfg.APIKeys = strings.Split(apiKeysStr, ",")
		for i, key := range cfg.APIKeys {
			cfg.APIKeys[i] = strings.TrimSpace(key)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if c.LocatorRadiusKm <= 0 {
		return fmt.Errorf("LOCATOR_RADIUS_KM must be positive")
	}
	if c.OutboxSize < 1 || c.ReplayBufferSize < 1 {
		return fmt.Errorf("OUTBOX_SIZE and REPLAY_BUFFER_SIZE must be positive")
	}
	// тикер обновления паникует на неположительном интервале
	if c.ResponderRefreshInterval <= 0 {
		return fmt.Errorf("RESPONDER_REFRESH_INTERVAL must be positive")
	}
	if c.FanoutTimeout <= 0 {
		return fmt.Errorf("FANOUT_TIMEOUT must be positive")
	}
	return nil
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
