package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gometeo/weather-aggregator/internal/model"
	_ "github.com/jackc/pgx/v5/stdlib" // Регистрируем драйвер pgx
)

type WeatherStorage struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(dsn string, logger *slog.Logger) (*WeatherStorage, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия БД: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	s := NewWithDB(db, logger)
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB - для уже открытого соединения (без миграции)
func NewWithDB(db *sql.DB, logger *slog.Logger) *WeatherStorage {
	return &WeatherStorage{db: db, logger: logger}
}

func (s *WeatherStorage) migrate(ctx context.Context) error {
	// Автоматическая миграция для простоты, без goose/migrate
	queries := []string{`
	CREATE TABLE IF NOT EXISTS weather_snapshots (
		id BIGSERIAL PRIMARY KEY,
		city VARCHAR(100) NOT NULL,
		temperature DOUBLE PRECISION NOT NULL,
		weather VARCHAR(255) NOT NULL,
		forecast JSONB NOT NULL,
		request_id VARCHAR(64),
		fetched_at TIMESTAMPTZ NOT NULL
	);`, `
	CREATE INDEX IF NOT EXISTS weather_snapshots_city_idx
		ON weather_snapshots (lower(city), fetched_at DESC);`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("ошибка миграции: %w", err)
		}
	}
	return nil
}

func (s *WeatherStorage) Close() {
	s.db.Close()
}

func (s *WeatherStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Save добавляет снимок погоды в историю
func (s *WeatherStorage) Save(ctx context.Context, ev model.WeatherEvent) error {
	forecast := ev.Result.Forecast
	if forecast == nil {
		forecast = []model.ForecastEntry{}
	}
	forecastJSON, err := json.Marshal(forecast)
	if err != nil {
		return fmt.Errorf("ошибка сериализации прогноза: %w", err)
	}

	query := `
		INSERT INTO weather_snapshots (city, temperature, weather, forecast, request_id, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`

	_, err = s.db.ExecContext(ctx, query,
		ev.Result.City,
		ev.Result.Temperature,
		ev.Result.Weather,
		string(forecastJSON),
		ev.RequestID,
		ev.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения погоды для %s: %w", ev.Result.City, err)
	}

	s.logger.Debug("Снимок сохранен", "city", ev.Result.City, "request_id", ev.RequestID)
	return nil
}

// History возвращает последние снимки по городу, новые первыми
func (s *WeatherStorage) History(ctx context.Context, city string, limit int) ([]model.Snapshot, error) {
	query := `
		SELECT city, temperature, weather, forecast, fetched_at
		FROM weather_snapshots
		WHERE lower(city) = $1
		ORDER BY fetched_at DESC
		LIMIT $2;
	`

	rows, err := s.db.QueryContext(ctx, query, strings.ToLower(strings.TrimSpace(city)), limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения истории для %s: %w", city, err)
	}
	defer rows.Close()

	snapshots := make([]model.Snapshot, 0, limit)
	for rows.Next() {
		var (
			snap         model.Snapshot
			forecastJSON []byte
		)
		if err := rows.Scan(&snap.City, &snap.Temperature, &snap.Weather, &forecastJSON, &snap.FetchedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки истории: %w", err)
		}
		if err := json.Unmarshal(forecastJSON, &snap.Forecast); err != nil {
			return nil, fmt.Errorf("ошибка десериализации прогноза: %w", err)
		}
		if snap.Forecast == nil {
			snap.Forecast = []model.ForecastEntry{}
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения истории для %s: %w", city, err)
	}

	return snapshots, nil
}
