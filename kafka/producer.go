package kafka

import (
	"context"
	"encoding/json"

	"marketplace-service/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ProducerAPI is the slice of the producer used by services, so tests can
// substitute a fake.
type ProducerAPI interface {
	SendOrderEvent(evt models.OrderEvent) error
}

type Producer struct {
	writer *kafka.Writer
	topic  string
	logger *zap.Logger
}

func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	logger.Info("Kafka producer initialized",
		zap.String("topic", topic),
		zap.Strings("brokers", brokers),
	)
	return &Producer{writer: w, topic: topic, logger: logger}
}

// SendOrderEvent publishes an order lifecycle event keyed by order ID so all
// events for one order land in the same partition, in order.
func (p *Producer) SendOrderEvent(evt models.OrderEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(evt.OrderID),
		Value: data,
	}
	if err := p.writer.WriteMessages(context.Background(), msg); err != nil {
		p.logger.Error("Failed to publish order event",
			zap.String("order_id", evt.OrderID),
			zap.String("type", evt.Type),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (p *Producer) Close() error {
	p.logger.Info("Closing Kafka writer", zap.String("topic", p.topic))
	return p.writer.Close()
}
