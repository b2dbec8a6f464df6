package queue

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one delivery body. Consumers ack regardless of the returned
// error; the error is only reported back to the caller's logger.
type Handler func(ctx context.Context, routingKey string, body []byte) error

// Bind declares a durable queue and binds it to exchange for every routing key.
func Bind(ch *amqp.Channel, exchange, queueName string, keys ...string) (amqp.Queue, error) {
	if err := DeclareExchange(ch, exchange); err != nil {
		return amqp.Queue{}, err
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare queue: %w", err)
	}

	for _, key := range keys {
		if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
			return amqp.Queue{}, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return q, nil
}

// Consume runs handle for each delivery until ctx is cancelled or the channel closes.
func Consume(ctx context.Context, ch *amqp.Channel, queueName, consumer string, handle Handler, onError func(key string, err error)) error {
	msgs, err := ch.Consume(
		queueName,
		consumer,
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	return Drain(ctx, msgs, handle, onError)
}

// Drain is the delivery loop behind Consume.
func Drain(ctx context.Context, msgs <-chan amqp.Delivery, handle Handler, onError func(key string, err error)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			if err := handle(ctx, d.RoutingKey, d.Body); err != nil && onError != nil {
				onError(d.RoutingKey, err)
			}
			if d.Acknowledger != nil {
				_ = d.Ack(false)
			}
		}
	}
}
