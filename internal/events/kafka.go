package events

import (
	"context"
	"fmt"

	"race-kart/internal/model"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// producer is the subset of *kgo.Client used for publishing.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// kafkaPublisher publishes events to one topic keyed by order id.
type kafkaPublisher struct {
	client producer
	topic  string
	logger zerolog.Logger
}

// NewKafkaPublisher connects a franz-go client to brokers.
func NewKafkaPublisher(brokers []string, topic string, logger zerolog.Logger) (Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return newKafkaPublisher(client, topic, logger), nil
}

func newKafkaPublisher(client producer, topic string, logger zerolog.Logger) *kafkaPublisher {
	return &kafkaPublisher{
		client: client,
		topic:  topic,
		logger: logger.With().Str("component", "kafka-publisher").Logger(),
	}
}

// PublishOrderPlaced produces the event and waits for the broker acknowledgement.
func (p *kafkaPublisher) PublishOrderPlaced(ctx context.Context, event model.OrderPlacedEvent) error {
	body, err := encode(OrderPlacedType, event)
	if err != nil {
		return err
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.OrderID),
		Value: body,
		Headers: []kgo.RecordHeader{
			{Key: "type", Value: []byte(OrderPlacedType)},
		},
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce %s: %w", OrderPlacedType, err)
	}

	p.logger.Debug().
		Str("order_id", event.OrderID).
		Str("topic", p.topic).
		Msg("order placed event published")

	return nil
}

// Close flushes and closes the client.
func (p *kafkaPublisher) Close() error {
	p.client.Close()
	return nil
}
