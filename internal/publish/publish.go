// Package publish streams daily recommendations to Kafka so downstream
// consumers see each labeled day as it completes.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/strategylab/optlabel/internal/config"
)

// Publisher sends JSON payloads keyed by trading date. Messages for the
// same date land on the same partition.
type Publisher struct {
	writer *kafka.Writer
	topic  string
	log    *zap.Logger
}

func New(cfg config.KafkaConfig, log *zap.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		BatchTimeout: time.Second,
	}
	return &Publisher{writer: writer, topic: cfg.Topic, log: log}, nil
}

// Publish marshals the payload and writes it keyed by date.
func (p *Publisher) Publish(ctx context.Context, date string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(date),
		Value: value,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", p.topic, err)
	}
	p.log.Debug("recommendation published",
		zap.String("topic", p.topic),
		zap.String("date", date),
		zap.Int("bytes", len(value)))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
