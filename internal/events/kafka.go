package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IBM/sarama"
	"github.com/gometeo/weather-aggregator/internal/model"
)

// NewProducerConfig - продюсер ждет подтверждения от всех реплик
func NewProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	return config
}

func NewConsumerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	return config
}

type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

func NewPublisher(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к Kafka: %w", err)
	}
	return NewPublisherWithProducer(producer, topic, logger), nil
}

func NewPublisherWithProducer(producer sarama.SyncProducer, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{producer: producer, topic: topic, logger: logger}
}

// Publish отправляет событие в Kafka, ключ - город, чтобы события одного города шли в одну партицию
func (p *Publisher) Publish(ctx context.Context, ev model.WeatherEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bytes, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("ошибка JSON: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strings.ToLower(ev.Result.City)),
		Value: sarama.ByteEncoder(bytes),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("не удалось отправить сообщение: %w", err)
	}

	p.logger.Debug("Погода отправлена",
		"city", ev.Result.City,
		"partition", partition,
		"offset", offset)
	return nil
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}

// SnapshotStore - куда консьюмер складывает события (storage.WeatherStorage)
type SnapshotStore interface {
	Save(ctx context.Context, ev model.WeatherEvent) error
}

// ConsumerHandler читает события из Kafka и сохраняет их в базу
type ConsumerHandler struct {
	logger *slog.Logger
	store  SnapshotStore
}

func NewConsumerHandler(store SnapshotStore, logger *slog.Logger) *ConsumerHandler {
	return &ConsumerHandler{logger: logger, store: store}
}

func (h *ConsumerHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *ConsumerHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *ConsumerHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if !h.handle(sess.Context(), msg) {
			continue
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}

// handle возвращает true, если сообщение можно пометить прочитанным
func (h *ConsumerHandler) handle(ctx context.Context, msg *sarama.ConsumerMessage) bool {
	var ev model.WeatherEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		// Битый JSON не исправится при повторе, помечаем и идем дальше
		h.logger.Error("Битый JSON", "offset", msg.Offset, "error", err)
		return true
	}

	// Если БД лежит, сообщение НЕ помечаем, Kafka отдаст его снова
	if err := h.store.Save(ctx, ev); err != nil {
		h.logger.Error("Ошибка записи в БД", "city", ev.Result.City, "error", err)
		return false
	}

	h.logger.Info("Данные сохранены в БД",
		"city", ev.Result.City,
		"temp", ev.Result.Temperature)
	return true
}
