package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gometeo/weather-aggregator/internal/model"
	"github.com/redis/go-redis/v9"
)

type WeatherCache struct {
	client redis.Cmdable
	closer func() error
	ttl    time.Duration
	logger *slog.Logger
}

func New(addr, password string, db int, ttl time.Duration, logger *slog.Logger) (*WeatherCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}

	logger.Info("Успешное подключение к Redis", "addr", addr)

	c := NewWithClient(client, ttl, logger)
	c.closer = client.Close
	return c, nil
}

// NewWithClient оборачивает готовый клиент (в тестах - фейк redis.Cmdable)
func NewWithClient(client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *WeatherCache {
	return &WeatherCache{
		client: client,
		closer: func() error { return nil },
		ttl:    ttl,
		logger: logger,
	}
}

func (c *WeatherCache) Close() error {
	return c.closer()
}

func (c *WeatherCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *WeatherCache) Set(ctx context.Context, key string, data model.WeatherResult) error {
	bytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("ошибка сериализации: %w", err)
	}

	err = c.client.Set(ctx, key, bytes, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("ошибка записи в Redis: %w", err)
	}

	c.logger.Debug("Данные сохранены в кэш", "key", key, "ttl", c.ttl)
	return nil
}

func (c *WeatherCache) Get(ctx context.Context, key string) (*model.WeatherResult, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil // Ключ не найден - это не ошибка
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из Redis: %w", err)
	}

	var data model.WeatherResult
	if err := json.Unmarshal([]byte(val), &data); err != nil {
		// Битая запись не должна жить до конца TTL
		if delErr := c.Delete(ctx, key); delErr != nil {
			c.logger.Warn("Не удалось удалить битую запись", "key", key, "error", delErr)
		}
		return nil, fmt.Errorf("ошибка десериализации: %w", err)
	}
	if data.Forecast == nil {
		data.Forecast = []model.ForecastEntry{}
	}

	c.logger.Debug("Данные получены из кэша", "key", key)
	return &data, nil
}

func (c *WeatherCache) Delete(ctx context.Context, key string) error {
	err := c.client.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("ошибка удаления из Redis: %w", err)
	}

	c.logger.Debug("Данные удалены из кэша", "key", key)
	return nil
}

// CityKey - ключ кэша для города, регистр запроса не важен
func CityKey(city string) string {
	return "weather:city:" + strings.ToLower(strings.TrimSpace(city))
}
