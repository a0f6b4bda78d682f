package client

import (
	"context"
	"encoding/json"

	"github.com/RezaEskandarii/cronfire/internal/message_broaker"
	"github.com/RezaEskandarii/cronfire/types"
)

// ExecutionPublisher receives an event for every finished execution.
type ExecutionPublisher interface {
	PublishExecution(ctx context.Context, event types.ExecutionEvent) error
}

// BrokerPublisher publishes execution events as JSON messages.
type BrokerPublisher struct {
	broker message_broaker.MessageBroker
}

func NewBrokerPublisher(broker message_broaker.MessageBroker) *BrokerPublisher {
	return &BrokerPublisher{broker: broker}
}

func (p *BrokerPublisher) PublishExecution(ctx context.Context, event types.ExecutionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.broker.Publish(ctx, body)
}
