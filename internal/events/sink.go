package events

import (
	"context"

	"taskmanager/pkg/logger"
	"taskmanager/pkg/metrics"

	"go.uber.org/zap"
)

// Sink 接收视图确认过的活动事件（任务创建、删除、登出）。
// 发布失败只影响观测，不影响视图状态。
type Sink interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// LogSink 把事件写到日志，未配置 MQ 时使用
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(ctx context.Context, routingKey string, payload any) error {
	logger.WithTrace(ctx, s.logger).Info("Activity event",
		zap.String("routing_key", routingKey),
		zap.Any("payload", payload),
	)
	metrics.IncrementEventPublish(routingKey, "logged")
	return nil
}
