package events

import (
	"context"
	"fmt"
	"time"

	"taskmanager/pkg/metrics"
	"taskmanager/pkg/mq"
	"taskmanager/pkg/trace"

	"github.com/rabbitmq/amqp091-go"
)

// publisher 是 *mq.Publisher 的子集，方便测试替换
type publisher interface {
	Publish(ctx context.Context, routingKey string, payload any, headers amqp091.Table) error
}

// AMQPSink 把活动事件发布到 RabbitMQ topic exchange
type AMQPSink struct {
	pub     publisher
	timeout time.Duration
}

func NewAMQPSink(pub *mq.Publisher, timeout time.Duration) *AMQPSink {
	return newAMQPSink(pub, timeout)
}

func newAMQPSink(pub publisher, timeout time.Duration) *AMQPSink {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &AMQPSink{pub: pub, timeout: timeout}
}

func (s *AMQPSink) Publish(ctx context.Context, routingKey string, payload any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	headers := amqp091.Table{}
	if traceID := trace.FromContext(ctx); traceID != "" {
		headers[trace.HeaderName()] = traceID
	}

	if err := s.pub.Publish(ctx, routingKey, payload, headers); err != nil {
		metrics.IncrementEventPublish(routingKey, "failed")
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	metrics.IncrementEventPublish(routingKey, "published")
	return nil
}
