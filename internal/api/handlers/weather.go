package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/gometeo/weather-aggregator/internal/api/middleware"
	"github.com/gometeo/weather-aggregator/internal/cache"
	"github.com/gometeo/weather-aggregator/internal/model"
	"github.com/gometeo/weather-aggregator/internal/weather"
)

const (
	msgCityNotFound   = "City not found"
	msgFetchFailed    = "Failed to fetch weather data"
	defaultHistoryLen = 10
	maxHistoryLen     = 100
)

type Fetcher interface {
	Fetch(ctx context.Context, city string) (model.WeatherResult, error)
}

type ResultCache interface {
	Get(ctx context.Context, key string) (*model.WeatherResult, error)
	Set(ctx context.Context, key string, data model.WeatherResult) error
	Ping(ctx context.Context) error
}

type HistoryStore interface {
	History(ctx context.Context, city string, limit int) ([]model.Snapshot, error)
	Ping(ctx context.Context) error
}

type EventPublisher interface {
	Publish(ctx context.Context, ev model.WeatherEvent) error
}

type Option func(*WeatherHandler)

func WithCache(c ResultCache) Option {
	return func(h *WeatherHandler) { h.cache = c }
}

func WithHistory(s HistoryStore) Option {
	return func(h *WeatherHandler) { h.history = s }
}

func WithPublisher(p EventPublisher) Option {
	return func(h *WeatherHandler) { h.events = p }
}

type WeatherHandler struct {
	weather Fetcher
	cache   ResultCache
	history HistoryStore
	events  EventPublisher
	logger  *slog.Logger
	now     func() time.Time
}

func NewWeatherHandler(fetcher Fetcher, logger *slog.Logger, opts ...Option) *WeatherHandler {
	h := &WeatherHandler{
		weather: fetcher,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// GetWeather возвращает текущую погоду и прогноз для города
func (h *WeatherHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	city, ok := cityParam(r)
	if !ok {
		sendError(w, http.StatusNotFound, msgCityNotFound, nil)
		return
	}
	ctx := r.Context()

	h.logger.Info("Запрос погоды", "city", city, "method", r.Method)

	// 1. Пробуем получить из кэша
	if h.cache != nil {
		cached, err := h.cache.Get(ctx, cache.CityKey(city))
		if err != nil {
			h.logger.Error("Ошибка чтения из кэша", "city", city, "error", err)
			// Продолжаем - кэш не критичен
		}
		if cached != nil {
			sendJSON(w, http.StatusOK, cached)
			h.logger.Info("Данные отданы из кэша",
				"city", city,
				"duration_ms", time.Since(start).Milliseconds(),
				"source", "cache")
			return
		}
	}

	// 2. Идем к провайдеру
	result, err := h.weather.Fetch(ctx, city)
	if errors.Is(err, weather.ErrCityNotFound) {
		h.logger.Info("Город не найден", "city", city)
		sendError(w, http.StatusNotFound, msgCityNotFound, nil)
		return
	}
	if err != nil {
		h.logger.Error("Ошибка получения погоды", "city", city, "error", err)
		sendError(w, http.StatusInternalServerError, msgFetchFailed, errorDetails(err))
		return
	}

	// 3. Кэш и событие - после успешного ответа провайдера, ошибки только логируем
	if h.cache != nil {
		if err := h.cache.Set(ctx, cache.CityKey(city), result); err != nil {
			h.logger.Warn("Не удалось сохранить в кэш", "city", city, "error", err)
		}
	}
	if h.events != nil {
		ev := model.WeatherEvent{
			Query:     city,
			RequestID: middleware.RequestIDFrom(ctx),
			Result:    result,
			FetchedAt: h.now().UTC(),
		}
		if err := h.events.Publish(ctx, ev); err != nil {
			h.logger.Warn("Не удалось отправить событие", "city", city, "error", err)
		}
	}

	sendJSON(w, http.StatusOK, result)

	h.logger.Info("Данные отданы от провайдера",
		"city", city,
		"resolved", result.City,
		"duration_ms", time.Since(start).Milliseconds(),
		"source", "provider")
}

// GetHistory возвращает сохраненные снимки погоды по городу
func (h *WeatherHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	city, ok := cityParam(r)
	if !ok {
		sendError(w, http.StatusNotFound, msgCityNotFound, nil)
		return
	}

	if h.history == nil {
		sendError(w, http.StatusServiceUnavailable, "History is not configured", nil)
		return
	}

	limit := defaultHistoryLen
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			sendError(w, http.StatusBadRequest, "Invalid limit", raw)
			return
		}
		limit = min(n, maxHistoryLen)
	}

	snapshots, err := h.history.History(r.Context(), city, limit)
	if err != nil {
		h.logger.Error("Ошибка чтения истории", "city", city, "error", err)
		sendError(w, http.StatusInternalServerError, "Failed to read history", nil)
		return
	}

	sendJSON(w, http.StatusOK, model.HistoryResponse{
		City:      city,
		Snapshots: snapshots,
		Total:     len(snapshots),
	})
}

// Liveness - процесс жив, зависимости не проверяем
func (h *WeatherHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "Backend is running"})
}

// HealthCheck проверяет доступность подключенных сервисов
func (h *WeatherHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	health := map[string]string{
		"status": "ok",
		"time":   h.now().Format(time.RFC3339),
	}

	if h.history != nil {
		if err := h.history.Ping(ctx); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			h.logger.Error("Health check: DB недоступна", "error", err)
		} else {
			health["database"] = "healthy"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			health["redis"] = "unhealthy"
			health["status"] = "degraded"
			h.logger.Error("Health check: Redis недоступен", "error", err)
		} else {
			health["redis"] = "healthy"
		}
	}

	status := http.StatusOK
	if health["status"] == "degraded" {
		status = http.StatusServiceUnavailable
	}

	sendJSON(w, status, health)
}

// NotFound - неизвестный маршрут, тоже JSON
func (h *WeatherHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	sendError(w, http.StatusNotFound, "Not found", nil)
}

// cityParam раскодирует город из пути. Роутер работает с закодированным путем,
// поэтому %2F остается частью имени, а не разделителем.
func cityParam(r *http.Request) (string, bool) {
	city, err := url.PathUnescape(mux.Vars(r)["city"])
	if err != nil || strings.TrimSpace(city) == "" {
		return "", false
	}
	return city, true
}

func errorDetails(err error) any {
	var upErr *weather.UpstreamError
	if errors.As(err, &upErr) {
		return upErr.Details()
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return "unknown error"
}

// Вспомогательные функции
func sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, status int, errorMsg string, details any) {
	sendJSON(w, status, model.ErrorResponse{
		Error:   errorMsg,
		Details: details,
	})
}
