package model

import "time"

// Coordinates - первая найденная точка геокодинга
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// CurrentConditions - текущая погода от провайдера
type CurrentConditions struct {
	Location    string
	Temp        float64
	Description string
}

// ForecastEntry - одна точка прогноза
type ForecastEntry struct {
	Time        string  `json:"time"`
	Temp        float64 `json:"temp"`
	Description string  `json:"description"`
}

// WeatherResult - то, что отдаем клиенту на GET /api/weather/{city}
type WeatherResult struct {
	City        string          `json:"city"`
	Temperature float64         `json:"temperature"`
	Weather     string          `json:"weather"`
	Forecast    []ForecastEntry `json:"forecast"`
}

// WeatherEvent - структура, которая летает через Kafka и ложится в Postgres
type WeatherEvent struct {
	Query     string        `json:"query"`
	RequestID string        `json:"request_id,omitempty"`
	Result    WeatherResult `json:"result"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// Snapshot - запись из истории запросов
type Snapshot struct {
	City        string          `json:"city"`
	Temperature float64         `json:"temperature"`
	Weather     string          `json:"weather"`
	Forecast    []ForecastEntry `json:"forecast"`
	FetchedAt   time.Time       `json:"fetched_at"`
}

type HistoryResponse struct {
	City      string     `json:"city"`
	Snapshots []Snapshot `json:"snapshots"`
	Total     int        `json:"total"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
