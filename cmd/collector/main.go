package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gometeo/weather-aggregator/internal/collector"
	"github.com/gometeo/weather-aggregator/internal/config"
	"github.com/gometeo/weather-aggregator/internal/events"
	"github.com/gometeo/weather-aggregator/internal/logger"
	"github.com/gometeo/weather-aggregator/internal/provider/openweather"
	"github.com/gometeo/weather-aggregator/internal/weather"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка конфигурации", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("Запуск Weather Collector...", "cities", cfg.CollectorCities)

	if len(cfg.KafkaBrokers) == 0 {
		log.Error("KAFKA_BROKERS не задан, коллектору некуда отправлять данные")
		os.Exit(1)
	}

	// 1. Kafka Producer
	publisher, err := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	if err != nil {
		log.Error("Ошибка подключения к Kafka", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error("Ошибка при закрытии продюсера", "error", err)
		}
	}()

	// 2. Провайдер
	clientOpts := []openweather.ClientOption{openweather.WithLogger(log)}
	if cfg.ProviderTimeout > 0 {
		clientOpts = append(clientOpts, openweather.WithTimeout(cfg.ProviderTimeout))
	}
	provider, err := openweather.New(cfg.ProviderBaseURL, cfg.APIKey, clientOpts...)
	if err != nil {
		log.Error("Не удалось создать клиента провайдера", "error", err)
		os.Exit(1)
	}

	// 3. Graceful Shutdown (Ctrl+C)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := collector.New(weather.NewAggregator(provider, log), publisher, cfg.CollectorCities, log)
	c.Run(ctx, cfg.CollectorInterval)

	log.Info("Получен сигнал завершения. Остановка...")
}
