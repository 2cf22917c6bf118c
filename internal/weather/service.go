package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gometeo/weather-aggregator/internal/model"
)

const (
	geocodeLimit  = 1
	forecastLimit = 5
)

var (
	ErrCityNotFound     = errors.New("город не найден")
	ErrMalformedPayload = errors.New("некорректный ответ провайдера")
)

// Provider - внешний источник погоды. Реализация: openweather.Client, в тестах - фейк.
type Provider interface {
	Geocode(ctx context.Context, query string, limit int) ([]model.Coordinates, error)
	Current(ctx context.Context, coords model.Coordinates) (model.CurrentConditions, error)
	// Forecast возвращает не больше limit первых элементов прогноза
	Forecast(ctx context.Context, coords model.Coordinates, limit int) ([]model.ForecastEntry, error)
}

type Step string

const (
	StepGeocode  Step = "geocode"
	StepCurrent  Step = "current"
	StepForecast Step = "forecast"
)

// UpstreamError - любой сбой провайдера на одном из шагов
type UpstreamError struct {
	Step Step
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("шаг %s: %v", e.Step, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Details - тело ответа провайдера, если оно есть, иначе текст ошибки
func (e *UpstreamError) Details() any {
	var d interface{ Details() any }
	if errors.As(e.Err, &d) {
		return d.Details()
	}
	return e.Err.Error()
}

type Aggregator struct {
	provider Provider
	logger   *slog.Logger
}

func NewAggregator(provider Provider, logger *slog.Logger) *Aggregator {
	return &Aggregator{provider: provider, logger: logger}
}

// Fetch выполняет три последовательных запроса: геокодинг, текущая погода, прогноз.
// Первая же ошибка прерывает цепочку, частичных результатов нет.
func (a *Aggregator) Fetch(ctx context.Context, city string) (model.WeatherResult, error) {
	start := time.Now()

	// 1. Координаты
	matches, err := a.provider.Geocode(ctx, city, geocodeLimit)
	if err != nil {
		return model.WeatherResult{}, &UpstreamError{Step: StepGeocode, Err: err}
	}
	if len(matches) == 0 {
		return model.WeatherResult{}, ErrCityNotFound
	}
	coords := matches[0]

	// 2. Текущая погода
	current, err := a.provider.Current(ctx, coords)
	if err != nil {
		return model.WeatherResult{}, &UpstreamError{Step: StepCurrent, Err: err}
	}

	// 3. Прогноз
	entries, err := a.provider.Forecast(ctx, coords, forecastLimit)
	if err != nil {
		return model.WeatherResult{}, &UpstreamError{Step: StepForecast, Err: err}
	}

	if len(entries) > forecastLimit {
		entries = entries[:forecastLimit]
	}
	forecast := make([]model.ForecastEntry, len(entries))
	copy(forecast, entries)

	a.logger.Debug("Погода собрана",
		"query", city,
		"city", current.Location,
		"lat", coords.Lat,
		"lon", coords.Lon,
		"forecast", len(forecast),
		"duration_ms", time.Since(start).Milliseconds())

	// Имя города берем у провайдера, а не из запроса
	return model.WeatherResult{
		City:        current.Location,
		Temperature: current.Temp,
		Weather:     current.Description,
		Forecast:    forecast,
	}, nil
}
