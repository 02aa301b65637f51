package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/stockfolio/portfolio-tracker/internal/models"
)

// Producer handles publishing portfolio events to Kafka
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishTransactionRecorded publishes an event after a buy or sell commits
func (p *Producer) PublishTransactionRecorded(ctx context.Context, transaction *models.Transaction, symbol string) error {
	event := models.TransactionEvent{
		EventType:   models.EventTypeTransactionRecorded,
		Transaction: transaction,
		Symbol:      symbol,
		Timestamp:   time.Now(),
	}
	return p.publish(ctx, symbol, event)
}

// PublishPricesRefreshed publishes an event after a batch price refresh commits
func (p *Producer) PublishPricesRefreshed(ctx context.Context, updated int) error {
	event := models.PriceRefreshEvent{
		EventType: models.EventTypePricesRefreshed,
		Updated:   updated,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, "prices", event)
}

func (p *Producer) publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
