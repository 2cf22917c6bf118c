package cache

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/gometeo/weather-aggregator/internal/model"
	"github.com/redis/go-redis/v9"
)

// memRedis - in-memory замена Redis для тестов, реализует только нужные команды
type memRedis struct {
	redis.Cmdable
	data    map[string]string
	ttls    map[string]time.Duration
	failGet error
}

func newMemRedis() *memRedis {
	return &memRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if m.failGet != nil {
		return redis.NewStringResult("", m.failGet)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	m.data[key] = string(value.([]byte))
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (m *memRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *memRedis) Ping(_ context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func TestCacheRoundTrip(t *testing.T) {
	mem := newMemRedis()
	c := NewWithClient(mem, time.Minute, slog.New(slog.DiscardHandler))
	ctx := context.Background()
	key := CityKey("Accra")

	got, err := c.Get(ctx, key)
	if err != nil || got != nil {
		t.Fatalf("Get на пустом кэше = %v, %v; want nil, nil", got, err)
	}

	in := model.WeatherResult{
		City:        "Accra",
		Temperature: 23.567,
		Weather:     "raining",
		Forecast:    []model.ForecastEntry{{Time: "2025-11-06 12:00:00", Temp: 23.567, Description: "raining"}},
	}
	if err := c.Set(ctx, key, in); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if mem.ttls[key] != time.Minute {
		t.Errorf("ttl = %v, want 1m", mem.ttls[key])
	}

	got, err = c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.City != in.City || got.Temperature != in.Temperature || len(got.Forecast) != 1 {
		t.Errorf("Get = %+v", got)
	}

	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := c.Get(ctx, key); got != nil {
		t.Error("ключ остался после Delete")
	}
}

func TestCacheCorruptEntryEvicted(t *testing.T) {
	mem := newMemRedis()
	key := CityKey("accra")
	mem.data[key] = `{"city":`
	c := NewWithClient(mem, time.Minute, slog.New(slog.DiscardHandler))

	if _, err := c.Get(context.Background(), key); err == nil {
		t.Fatal("ожидали ошибку десериализации")
	}
	if _, ok := mem.data[key]; ok {
		t.Error("битая запись осталась в кэше")
	}
}

func TestCacheEmptyForecastStaysArray(t *testing.T) {
	mem := newMemRedis()
	mem.data[CityKey("oslo")] = `{"city":"Oslo","temperature":-5,"weather":"snow","forecast":null}`
	c := NewWithClient(mem, time.Minute, slog.New(slog.DiscardHandler))

	got, err := c.Get(context.Background(), CityKey("oslo"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Forecast == nil {
		t.Error("Forecast = nil, want пустой срез")
	}
}

func TestCacheGetError(t *testing.T) {
	mem := newMemRedis()
	mem.failGet = errors.New("connection refused")
	c := NewWithClient(mem, time.Minute, slog.New(slog.DiscardHandler))

	if _, err := c.Get(context.Background(), "k"); err == nil {
		t.Fatal("ожидали ошибку чтения")
	}
}

func TestCityKey(t *testing.T) {
	if CityKey(" New York ") != CityKey("new york") {
		t.Errorf("CityKey не нормализует регистр/пробелы: %q", CityKey(" New York "))
	}
}
