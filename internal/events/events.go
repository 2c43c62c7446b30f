package events

import (
	"context"
	"encoding/json"
	"fmt"

	"race-kart/internal/model"

	"github.com/rs/zerolog"
)

// OrderPlacedType names the event published after an order commits.
const OrderPlacedType = "order.placed"

// Publisher delivers domain events to downstream consumers.
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, event model.OrderPlacedEvent) error
	Close() error
}

// envelope wraps every published payload.
type envelope struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Data          any    `json:"data"`
}

func encode(eventType string, data any) ([]byte, error) {
	body, err := json.Marshal(envelope{Type: eventType, SchemaVersion: model.CurrentSchemaVersion, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}
	return body, nil
}

// nopPublisher drops events after logging them.
type nopPublisher struct {
	logger zerolog.Logger
}

// NewNopPublisher creates a publisher that only logs.
func NewNopPublisher(logger zerolog.Logger) Publisher {
	return &nopPublisher{logger: logger.With().Str("component", "nop-publisher").Logger()}
}

func (p *nopPublisher) PublishOrderPlaced(_ context.Context, event model.OrderPlacedEvent) error {
	p.logger.Debug().
		Str("order_id", event.OrderID).
		Str("order_number", event.OrderNumber).
		Msg("order placed event dropped")
	return nil
}

func (p *nopPublisher) Close() error { return nil }
