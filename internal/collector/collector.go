package collector

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gometeo/weather-aggregator/internal/model"
	"github.com/gometeo/weather-aggregator/internal/weather"
)

type Fetcher interface {
	Fetch(ctx context.Context, city string) (model.WeatherResult, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev model.WeatherEvent) error
}

// Collector периодически опрашивает провайдера по списку городов и отправляет события в Kafka
type Collector struct {
	fetcher   Fetcher
	publisher Publisher
	cities    []string
	logger    *slog.Logger
	now       func() time.Time
}

func New(fetcher Fetcher, publisher Publisher, cities []string, logger *slog.Logger) *Collector {
	return &Collector{
		fetcher:   fetcher,
		publisher: publisher,
		cities:    cities,
		logger:    logger,
		now:       time.Now,
	}
}

// Run собирает данные сразу и затем по тикеру, пока не отменен ctx
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info("Начинаем сбор данных...", "cities", len(c.cities), "interval", interval)
	c.CollectOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CollectOnce(ctx)
		}
	}
}

// CollectOnce проходит по всем городам, ошибка одного города не останавливает остальные.
// Возвращает число отправленных событий.
func (c *Collector) CollectOnce(ctx context.Context) int {
	sent := 0
	for _, city := range c.cities {
		if ctx.Err() != nil {
			return sent
		}

		result, err := c.fetcher.Fetch(ctx, city)
		if errors.Is(err, weather.ErrCityNotFound) {
			c.logger.Warn("Город не найден у провайдера", "city", city)
			continue
		}
		if err != nil {
			c.logger.Error("Ошибка получения погоды", "city", city, "error", err)
			continue
		}

		ev := model.WeatherEvent{
			Query:     city,
			Result:    result,
			FetchedAt: c.now().UTC(),
		}
		if err := c.publisher.Publish(ctx, ev); err != nil {
			c.logger.Error("Не удалось отправить сообщение", "city", city, "error", err)
			continue
		}

		sent++
		c.logger.Info("Погода отправлена", "city", result.City, "temp", result.Temperature)
	}
	return sent
}
