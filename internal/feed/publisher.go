// Package feed publishes trade events to Kafka for downstream
// settlement and market-data consumers.
package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"matchbook/internal/orderbook"
)

type Publisher struct {
	writer *kafka.Writer
	symbol string
	log    *zap.Logger
}

// tradeEvent is the wire shape of one published fill.
type tradeEvent struct {
	ID           string `json:"id"`
	Symbol       string `json:"symbol"`
	Price        int64  `json:"price"`
	Quantity     int64  `json:"quantity"`
	MakerOrderID string `json:"maker_order_id"`
	TakerOrderID string `json:"taker_order_id"`
	TakerSide    string `json:"taker_side"`
	Seq          uint64 `json:"seq"`
	ExecutedAt   int64  `json:"executed_at"` // unix nanos
}

// NewPublisher creates a Kafka publisher for trade events.
func NewPublisher(brokers []string, topic, symbol string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})

	return &Publisher{
		writer: writer,
		symbol: symbol,
		log:    log,
	}
}

// PublishTrade publishes one fill, keyed by symbol so consumers see a
// single instrument's trades in order.
func (p *Publisher) PublishTrade(ctx context.Context, trade orderbook.Trade) error {
	event := tradeEvent{
		ID:           trade.ID,
		Symbol:       p.symbol,
		Price:        trade.Price,
		Quantity:     trade.Quantity,
		MakerOrderID: trade.MakerOrderID,
		TakerOrderID: trade.TakerOrderID,
		TakerSide:    trade.TakerSide.String(),
		Seq:          trade.Seq,
		ExecutedAt:   trade.Timestamp.UnixNano(),
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("feed: marshal trade %s: %w", trade.ID, err)
	}

	msg := kafka.Message{
		Key:   []byte(p.symbol),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("failed to publish trade",
			zap.String("trade_id", trade.ID),
			zap.Error(err),
		)
		return fmt.Errorf("feed: publish trade %s: %w", trade.ID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
