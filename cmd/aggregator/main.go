package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/IBM/sarama"

	"github.com/gometeo/weather-aggregator/internal/config"
	"github.com/gometeo/weather-aggregator/internal/events"
	"github.com/gometeo/weather-aggregator/internal/logger"
	"github.com/gometeo/weather-aggregator/internal/storage"
)

const maxRetries = 5

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка конфигурации", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("Запуск Weather Aggregator...")

	if cfg.DBDSN == "" || len(cfg.KafkaBrokers) == 0 {
		log.Error("Нужны DB_DSN и KAFKA_BROKERS")
		os.Exit(1)
	}

	// 1. Подключение к Postgres, база может подниматься дольше нас
	var store *storage.WeatherStorage
	for i := 0; i < maxRetries; i++ {
		store, err = storage.New(cfg.DBDSN, log)
		if err == nil {
			break
		}
		log.Warn("Не удалось подключиться к БД. Повторная попытка через 3с...",
			"попытка", i+1, "всего", maxRetries, "error", err)
		time.Sleep(3 * time.Second)
	}

	if store == nil {
		log.Error("Не удалось подключиться к БД после всех попыток. Выход.", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Info("Успешное подключение к Postgres")

	// 2. Kafka Consumer
	consumer, err := sarama.NewConsumerGroup(cfg.KafkaBrokers, cfg.KafkaGroup, events.NewConsumerConfig())
	if err != nil {
		log.Error("Ошибка создания Kafka consumer", "error", err)
		os.Exit(1)
	}

	// 3. Цикл чтения
	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	wg.Add(1)

	go func() {
		defer wg.Done()
		handler := events.NewConsumerHandler(store, log)
		for {
			if err := consumer.Consume(ctx, []string{cfg.KafkaTopic}, handler); err != nil {
				log.Error("Ошибка при чтении Kafka", "error", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		for err := range consumer.Errors() {
			log.Error("Ошибка consumer group", "error", err)
		}
	}()

	// 4. Graceful Shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Остановка сервиса...")
	cancel()
	wg.Wait()
	if err := consumer.Close(); err != nil {
		log.Error("Ошибка при закрытии consumer", "error", err)
	}
}
