package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPPort string `yaml:"http_port"`
	LogLevel string `yaml:"log_level"`

	// Провайдер погоды (OpenWeatherMap)
	APIKey          string        `yaml:"openweather_api_key"`
	ProviderBaseURL string        `yaml:"openweather_base_url"`
	ProviderTimeout time.Duration `yaml:"-"`

	// Redis: пустой адрес - кэш выключен
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	CacheTTL      time.Duration `yaml:"-"`

	// Postgres: пустой DSN - история выключена
	DBDSN string `yaml:"db_dsn"`

	// Kafka: пустой список брокеров - события выключены
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
	KafkaGroup   string   `yaml:"kafka_group"`

	CollectorCities   []string      `yaml:"collector_cities"`
	CollectorInterval time.Duration `yaml:"-"`

	// Значения из YAML в секундах, переводятся в Duration в Load
	ProviderTimeoutSeconds   int `yaml:"provider_timeout_seconds"`
	CacheTTLSeconds          int `yaml:"cache_ttl_seconds"`
	CollectorIntervalSeconds int `yaml:"collector_interval_seconds"`
}

func defaults() *Config {
	return &Config{
		HTTPPort:                 "8080",
		LogLevel:                 "info",
		ProviderBaseURL:          "https://api.openweathermap.org",
		KafkaTopic:               "weather_data",
		KafkaGroup:               "weather_aggregator_group",
		CollectorCities:          []string{"Moscow", "London", "New York", "Berlin", "Tokyo"},
		CacheTTLSeconds:          300,
		CollectorIntervalSeconds: 60,
	}
}

// Load собирает конфигурацию: дефолты -> YAML (если задан CONFIG_FILE) -> переменные окружения
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.APIKey = getEnv("OPENWEATHER_API_KEY", cfg.APIKey)
	cfg.ProviderBaseURL = strings.TrimRight(getEnv("OPENWEATHER_BASE_URL", cfg.ProviderBaseURL), "/")
	cfg.ProviderTimeoutSeconds = getEnvInt("PROVIDER_TIMEOUT_SECONDS", cfg.ProviderTimeoutSeconds)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvInt("REDIS_DB", cfg.RedisDB)
	cfg.CacheTTLSeconds = getEnvInt("CACHE_TTL_SECONDS", cfg.CacheTTLSeconds)
	cfg.DBDSN = getEnv("DB_DSN", cfg.DBDSN)
	cfg.KafkaBrokers = getEnvSlice("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.KafkaGroup = getEnv("KAFKA_GROUP", cfg.KafkaGroup)
	cfg.CollectorCities = getEnvSlice("COLLECTOR_CITIES", cfg.CollectorCities)
	cfg.CollectorIntervalSeconds = getEnvInt("COLLECTOR_INTERVAL_SECONDS", cfg.CollectorIntervalSeconds)

	cfg.ProviderTimeout = time.Duration(cfg.ProviderTimeoutSeconds) * time.Second
	cfg.CacheTTL = time.Duration(cfg.CacheTTLSeconds) * time.Second
	cfg.CollectorInterval = time.Duration(cfg.CollectorIntervalSeconds) * time.Second

	// TTL 0 в Redis означает вечный ключ
	if cfg.RedisAddr != "" && cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("CACHE_TTL_SECONDS должен быть больше нуля")
	}
	if cfg.CollectorInterval <= 0 {
		return nil, fmt.Errorf("COLLECTOR_INTERVAL_SECONDS должен быть больше нуля")
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ошибка чтения конфига %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("ошибка разбора конфига %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
