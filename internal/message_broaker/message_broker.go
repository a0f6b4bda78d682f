package message_broaker

import "context"

type MessageBroker interface {
	Publish(ctx context.Context, message []byte) error
	Close() error
}
