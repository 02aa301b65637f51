package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/stockfolio/portfolio-tracker/internal/database"
	"github.com/stockfolio/portfolio-tracker/internal/ledger"
	"github.com/stockfolio/portfolio-tracker/internal/models"
	"github.com/stockfolio/portfolio-tracker/internal/prices"
)

// Consumer ingests trade executions reported by an external broker feed and
// applies them through the ledger, so external trades land in the same books
// as manual ones.
type Consumer struct {
	reader    *kafka.Reader
	db        *database.DB
	ledger    *ledger.Service
	refresher *prices.Refresher
	log       zerolog.Logger
}

// NewConsumer creates a Kafka consumer for broker trade events
func NewConsumer(brokers []string, topic, groupID string, db *database.DB, ledgerService *ledger.Service, refresher *prices.Refresher, log zerolog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader:    reader,
		db:        db,
		ledger:    ledgerService,
		refresher: refresher,
		log:       log.With().Str("component", "trade-consumer").Logger(),
	}
}

// Start begins consuming messages until the context is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	c.log.Info().Str("topic", c.reader.Config().Topic).Msg("Starting trade consumer")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("Trade consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.log.Error().Err(err).Msg("Error reading message")
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.log.Error().Err(err).
					Int("partition", msg.Partition).
					Int64("offset", msg.Offset).
					Msg("Error processing message")
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event models.BrokerTradeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal trade event: %w", err)
	}

	if event.EventType != models.EventTypeTradeExecuted {
		c.log.Debug().Str("event_type", event.EventType).Msg("Ignoring event type")
		return nil
	}

	uow, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer uow.Rollback()

	stock, err := c.refresher.EnsureStock(ctx, uow, event.Symbol)
	if err != nil {
		return fmt.Errorf("failed to resolve stock %s: %w", event.Symbol, err)
	}

	var transaction *models.Transaction
	switch strings.ToUpper(event.Side) {
	case models.TransactionTypeBuy:
		transaction, err = c.ledger.Buy(uow, event.UserID, stock.ID, event.Quantity, event.Price)
	case models.TransactionTypeSell:
		transaction, err = c.ledger.Sell(uow, event.UserID, stock.ID, event.Quantity, event.Price)
	default:
		return fmt.Errorf("unknown trade side: %s", event.Side)
	}
	if err != nil {
		return fmt.Errorf("failed to apply %s for %s: %w", event.Side, event.Symbol, err)
	}

	if err := uow.Commit(); err != nil {
		return err
	}

	c.log.Info().
		Str("symbol", event.Symbol).
		Str("side", event.Side).
		Int("transaction_id", transaction.ID).
		Msg("Applied broker trade")

	return nil
}
