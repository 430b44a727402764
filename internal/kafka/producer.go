package kafka

import (
	"context"
	"fmt"
	"ms-checkout/internal/logger"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes checkout events to any topic. The topic is chosen per message.
type Producer struct {
	Writer  messageWriter
	Logger  *logger.Logger
	Timeout time.Duration
}

func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer, Logger: log, Timeout: 5 * time.Second}
}

// Publish streams one keyed message to the topic
func (p *Producer) Publish(topic, key string, value []byte) error {
	ctx := context.Background()
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	err := p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("kafka publish to %s: %w", topic, err)
	}
	if p.Logger != nil {
		p.Logger.LogKafka("PUBLISHED", topic, fmt.Sprintf("key=%s bytes=%d", key, len(value)))
	}
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
