package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"candle-aggregator/src/logger"
	"candle-aggregator/src/models"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer used by the publisher
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// -----------------------------------------------------------------------------

// KafkaPublisher forwards closed candles to a topic, keyed by symbol|timerange
// so every series stays on one partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewKafkaPublisher(cfg models.MKafkaConfig, log *logger.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &KafkaPublisher{writer: writer, topic: cfg.Topic, Logger: log}
}

// -----------------------------------------------------------------------------

func (p *KafkaPublisher) WriteCandle(ctx context.Context, candle models.MCandle) error {
	payload, err := json.Marshal(candle)
	if err != nil {
		return fmt.Errorf("encode candle: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(candle.Symbol + "|" + candle.Timerange),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "symbol", Value: []byte(candle.Symbol)},
			{Key: "timerange", Value: []byte(candle.Timerange)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish candle to %s: %w", p.topic, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
