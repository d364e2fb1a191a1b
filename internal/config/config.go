package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis Config
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Image Storage Config (Google Cloud Storage)
	GCSBucket     string `env:"GCS_BUCKET"`
	GCSUploadPath string `env:"GCS_UPLOAD_PATH" envDefault:"uploads/"`

	// Classifier Config (внешний сервис детекции опасностей)
	ClassifierURL     string        `env:"CLASSIFIER_URL"`
	ClassifierTimeout time.Duration `env:"CLASSIFIER_TIMEOUT" envDefault:"10s"`

	// Geocoder Config (Nominatim)
	NominatimURL       string        `env:"NOMINATIM_URL" envDefault:"https://nominatim.openstreetmap.org"`
	NominatimUserAgent string        `env:"NOMINATIM_USER_AGENT" envDefault:"hazard_reporting_system_v1"`
	GeocodeTimeout     time.Duration `env:"GEOCODE_TIMEOUT" envDefault:"5s"`

	// Audit Sink Config
	AuditSinkURL    string        `env:"AUDIT_SINK_URL"`
	AuditSecret     string        `env:"AUDIT_SECRET"`
	AuditTimeout    time.Duration `env:"AUDIT_TIMEOUT" envDefault:"5s"`
	AuditMaxRetries int           `env:"AUDIT_MAX_RETRIES" envDefault:"3"`
	AuditBaseDelay  time.Duration `env:"AUDIT_BASE_DELAY" envDefault:"1s"`

	// API Keys for authentication
	APIKeys []string `env:"API_KEYS"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvAsInt("REDIS_DB", 0),
		GCSBucket:          os.Getenv("GCS_BUCKET"),
		GCSUploadPath:      getEnv("GCS_UPLOAD_PATH", "uploads/"),
		ClassifierURL:      os.Getenv("CLASSIFIER_URL"),
		ClassifierTimeout:  getEnvAsDuration("CLASSIFIER_TIMEOUT", 10*time.Second),
		NominatimURL:       getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent: getEnv("NOMINATIM_USER_AGENT", "hazard_reporting_system_v1"),
		GeocodeTimeout:     getEnvAsDuration("GEOCODE_TIMEOUT", 5*time.Second),
		AuditSinkURL:       os.Getenv("AUDIT_SINK_URL"),
		AuditSecret:        os.Getenv("AUDIT_SECRET"),
		AuditTimeout:       getEnvAsDuration("AUDIT_TIMEOUT", 5*time.Second),
		AuditMaxRetries:    getEnvAsInt("AUDIT_MAX_RETRIES", 3),
		AuditBaseDelay:     getEnvAsDuration("AUDIT_BASE_DELAY", time.Second),
	}

	// Загрузка API ключей
	apiKeysStr := os.Getenv("API_KEYS")
	if apiKeysStr != "" {
		cfg.APIKeys = strings.Split(apiKeysStr, ",")
		for i, key := range cfg.APIKeys {
			cfg.APIKeys[i] = strings.TrimSpace(key)
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	return cfg, nil
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

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
