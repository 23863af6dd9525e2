package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 任务 API 调用延迟（秒）
	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskmanager_api_call_duration_seconds",
			Help:    "Task API call latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"endpoint", "status"},
	)

	// 视图操作计数
	ViewOperationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskmanager_view_operation_total",
			Help: "Total number of task list view operations by outcome",
		},
		[]string{"operation", "outcome"}, // outcome: success, failed, invalid, redirect
	)

	// 活动事件发布计数
	EventPublishCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskmanager_event_publish_total",
			Help: "Total number of activity events published",
		},
		[]string{"routing_key", "status"},
	)

	// Web 前端 HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskmanager_http_request_duration_seconds",
			Help:    "Web front-end request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

// RecordAPICall 记录任务 API 调用延迟
func RecordAPICall(endpoint, status string, duration time.Duration) {
	APICallDuration.WithLabelValues(endpoint, status).Observe(duration.Seconds())
}

// IncrementViewOperation 增加视图操作计数
func IncrementViewOperation(operation, outcome string) {
	ViewOperationCount.WithLabelValues(operation, outcome).Inc()
}

// IncrementEventPublish 增加事件发布计数
func IncrementEventPublish(routingKey, status string) {
	EventPublishCount.WithLabelValues(routingKey, status).Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
