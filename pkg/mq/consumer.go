package mq

import (
	"context"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Message 交给 handler 的一条消息
type Message struct {
	RoutingKey string
	Headers    amqp091.Table
	Body       []byte
}

type MessageHandler func(ctx context.Context, msg Message) error

type Consumer struct {
	channel    *amqp091.Channel
	queue      amqp091.Queue
	bindingKey string
	handler    MessageHandler
	conn       *amqp091.Connection
	logger     *zap.Logger
}

// NewConsumer creates a consumer bound to exchange with bindingKey.
// An empty queueName declares a server-named exclusive queue that goes away with the connection.
func NewConsumer(url, exchange, queueName, bindingKey string, logger *zap.Logger) (*Consumer, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := DeclareExchange(ch, exchange); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	temporary := queueName == ""
	q, err := ch.QueueDeclare(
		queueName,
		!temporary, // durable
		temporary,  // delete when unused
		temporary,  // exclusive
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, bindingKey, exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	logger.Info("Consumer initialized",
		zap.String("binding_key", bindingKey),
		zap.String("queue", q.Name),
		zap.String("exchange", exchange),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		bindingKey: bindingKey,
		logger:     logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming blocks until ctx is done or the delivery channel closes.
// Every delivery is acked or nacked exactly once; failed messages are dropped, not requeued.
func (c *Consumer) StartConsuming(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		"",
		false, // 手动ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("binding_key", c.bindingKey),
		zap.String("queue", c.queue.Name),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp091.Delivery) {
	c.logger.Debug("Received message",
		zap.String("routing_key", d.RoutingKey),
		zap.Int("message_size", len(d.Body)),
	)

	// Panic 恢复：确保即使 handler panic 也能正确处理消息
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Handler panic recovered",
				zap.String("routing_key", d.RoutingKey),
				zap.Any("panic", r),
			)
			if err := d.Nack(false, false); err != nil {
				c.logger.Error("Failed to nack message after panic", zap.Error(err))
			}
		}
	}()

	msg := Message{RoutingKey: d.RoutingKey, Headers: d.Headers, Body: d.Body}
	if err := c.handler(ctx, msg); err != nil {
		c.logger.Error("Handler error",
			zap.String("routing_key", d.RoutingKey),
			zap.Error(err),
		)
		if err := d.Nack(false, false); err != nil {
			c.logger.Error("Failed to nack message", zap.Error(err))
		}
		return
	}

	if err := d.Ack(false); err != nil {
		c.logger.Error("Failed to ack message",
			zap.String("routing_key", d.RoutingKey),
			zap.Error(err),
		)
	}
}
