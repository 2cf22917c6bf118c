package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gometeo/weather-aggregator/internal/api"
	"github.com/gometeo/weather-aggregator/internal/api/handlers"
	"github.com/gometeo/weather-aggregator/internal/cache"
	"github.com/gometeo/weather-aggregator/internal/config"
	"github.com/gometeo/weather-aggregator/internal/events"
	"github.com/gometeo/weather-aggregator/internal/logger"
	"github.com/gometeo/weather-aggregator/internal/provider/openweather"
	"github.com/gometeo/weather-aggregator/internal/storage"
	"github.com/gometeo/weather-aggregator/internal/weather"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка конфигурации", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("Запуск Weather API сервиса...")
	log.Info("Конфигурация загружена",
		"port", cfg.HTTPPort,
		"provider", cfg.ProviderBaseURL,
		"redis", cfg.RedisAddr,
		"cache_ttl", cfg.CacheTTL,
		"kafka", cfg.KafkaBrokers)

	if cfg.APIKey == "" {
		log.Warn("OPENWEATHER_API_KEY не задан, провайдер будет отвечать ошибкой авторизации")
	}

	// 1. Провайдер и агрегатор
	clientOpts := []openweather.ClientOption{openweather.WithLogger(log)}
	if cfg.ProviderTimeout > 0 {
		clientOpts = append(clientOpts, openweather.WithTimeout(cfg.ProviderTimeout))
	}
	provider, err := openweather.New(cfg.ProviderBaseURL, cfg.APIKey, clientOpts...)
	if err != nil {
		log.Error("Не удалось создать клиента провайдера", "error", err)
		os.Exit(1)
	}
	aggregator := weather.NewAggregator(provider, log)

	var opts []handlers.Option

	// 2. Redis (опционально)
	if cfg.RedisAddr != "" {
		redisCache, err := cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL, log)
		if err != nil {
			log.Error("Не удалось подключиться к Redis", "error", err)
			os.Exit(1)
		}
		defer redisCache.Close()
		opts = append(opts, handlers.WithCache(redisCache))
	}

	// 3. Postgres (опционально)
	if cfg.DBDSN != "" {
		store, err := storage.New(cfg.DBDSN, log)
		if err != nil {
			log.Error("Не удалось подключиться к БД", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		log.Info("Успешное подключение к Postgres")
		opts = append(opts, handlers.WithHistory(store))
	}

	// 4. Kafka (опционально)
	if len(cfg.KafkaBrokers) > 0 {
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
		opts = append(opts, handlers.WithPublisher(publisher))
	}

	// 5. Маршруты
	weatherHandler := handlers.NewWeatherHandler(aggregator, log, opts...)
	router := api.NewRouter(weatherHandler, log)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 6. Graceful shutdown
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Сервер запущен", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Ошибка сервера", "error", err)
			stopChan <- syscall.SIGTERM
		}
	}()

	<-stopChan
	log.Info("Получен сигнал завершения...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Ошибка при остановке сервера", "error", err)
	} else {
		log.Info("Сервер остановлен")
	}
}
