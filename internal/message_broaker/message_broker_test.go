package message_broaker

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RezaEskandarii/cronfire/types/config"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	published  []published
	publishErr error
	closed     bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestMessageBrokerInterface(t *testing.T) {
	var _ MessageBroker = (*RabbitMQ)(nil)
}

func TestRabbitMQ_Publish(t *testing.T) {
	ch := &fakeChannel{}
	broker := newRabbitMQ(ch, "cronfire", "executions", "")

	require.NoError(t, broker.Publish(context.Background(), []byte(`{"status":"success"}`)))
	require.Len(t, ch.published, 1)
	p := ch.published[0]
	assert.Equal(t, "cronfire", p.exchange)
	assert.Equal(t, "executions", p.key)
	assert.Equal(t, "application/json", p.msg.ContentType)
	assert.Equal(t, amqp.Persistent, p.msg.DeliveryMode)
	assert.JSONEq(t, `{"status":"success"}`, string(p.msg.Body))
}

func TestRabbitMQ_Publish_Error(t *testing.T) {
	ch := &fakeChannel{publishErr: assert.AnError}
	broker := newRabbitMQ(ch, "", "executions", "text/plain")

	err := broker.Publish(context.Background(), []byte("msg"))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRabbitMQ_Close(t *testing.T) {
	ch := &fakeChannel{}
	broker := newRabbitMQ(ch, "", "executions", "")

	require.NoError(t, broker.Close())
	assert.True(t, ch.closed)
}

func TestNewRabbitMQ_RequiresURL(t *testing.T) {
	_, err := NewRabbitMQ(config.RabbitMQConfig{Queue: "executions"})
	assert.Error(t, err)
}
