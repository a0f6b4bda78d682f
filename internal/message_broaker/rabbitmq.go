package message_broaker

import (
	"context"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/RezaEskandarii/cronfire/types/config"
)

const defaultContentType = "application/json"

// amqpChannel is the subset of *amqp.Channel used for publishing.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type RabbitMQ struct {
	conn        *amqp.Connection
	channel     amqpChannel
	exchange    string
	routingKey  string
	contentType string
}

// NewRabbitMQ dials the broker and declares the exchange, queue and binding
// execution events are published to. An empty exchange publishes to the
// default exchange with the queue name as routing key.
func NewRabbitMQ(cfg config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq: URL is required")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	fail := func(err error) (*RabbitMQ, error) {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if cfg.Exchange != "" {
		if err := ch.ExchangeDeclare(
			cfg.Exchange,
			"direct",
			true,
			false,
			false,
			false,
			nil,
		); err != nil {
			return fail(err)
		}
	}

	routingKey := cfg.RoutingKey
	if cfg.Queue != "" {
		if _, err := ch.QueueDeclare(
			cfg.Queue,
			true,
			false,
			false,
			false,
			nil,
		); err != nil {
			return fail(err)
		}
		if cfg.Exchange == "" {
			routingKey = cfg.Queue
		} else if err := ch.QueueBind(
			cfg.Queue,
			routingKey,
			cfg.Exchange,
			false,
			nil,
		); err != nil {
			return fail(err)
		}
	}

	r := newRabbitMQ(ch, cfg.Exchange, routingKey, cfg.ContentType)
	r.conn = conn
	return r, nil
}

func newRabbitMQ(ch amqpChannel, exchange, routingKey, contentType string) *RabbitMQ {
	if contentType == "" {
		contentType = defaultContentType
	}
	return &RabbitMQ{
		channel:     ch,
		exchange:    exchange,
		routingKey:  routingKey,
		contentType: contentType,
	}
}

func (r *RabbitMQ) Publish(ctx context.Context, message []byte) error {
	return r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  r.contentType,
			DeliveryMode: amqp.Persistent,
			Body:         message,
		},
	)
}

func (r *RabbitMQ) Close() error {
	if err := r.channel.Close(); err != nil {
		if r.conn != nil {
			_ = r.conn.Close()
		}
		return err
	}
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}
