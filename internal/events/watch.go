package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	contracts "taskmanager/contracts/mq"
	"taskmanager/pkg/mq"
	"taskmanager/pkg/trace"
)

// WatchBindingKey 默认订阅全部活动事件
const WatchBindingKey = "#"

// Describe 把一条活动事件格式化成一行文本，未知的 routing key 原样输出 JSON
func Describe(routingKey string, body []byte) (string, error) {
	switch routingKey {
	case contracts.RoutingKeyTaskCreated:
		var p contracts.TaskCreatedPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return "", fmt.Errorf("failed to decode %s: %w", routingKey, err)
		}
		return fmt.Sprintf("%s %-14s #%s %q by %s (priority=%s status=%s deadline=%s)",
			stamp(p.OccurredAt), routingKey, p.TaskID, p.Title, p.Username, p.Priority, p.Status, p.Deadline), nil

	case contracts.RoutingKeyTaskDeleted:
		var p contracts.TaskDeletedPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return "", fmt.Errorf("failed to decode %s: %w", routingKey, err)
		}
		return fmt.Sprintf("%s %-14s #%s by %s", stamp(p.OccurredAt), routingKey, p.TaskID, p.Username), nil

	case contracts.RoutingKeySessionLogout:
		var p contracts.SessionLogoutPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return "", fmt.Errorf("failed to decode %s: %w", routingKey, err)
		}
		return fmt.Sprintf("%s %-14s %s (server_acknowledged=%t)",
			stamp(p.OccurredAt), routingKey, p.Username, p.ServerAcknowledged), nil
	}

	if !json.Valid(body) {
		return "", fmt.Errorf("event %s is not valid JSON", routingKey)
	}
	return fmt.Sprintf("%s %-14s %s", stamp(time.Time{}), routingKey, body), nil
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

// PrintHandler 返回把事件逐行写到 w 的消费处理函数
func PrintHandler(w io.Writer) mq.MessageHandler {
	var mu sync.Mutex
	return func(ctx context.Context, msg mq.Message) error {
		line, err := Describe(msg.RoutingKey, msg.Body)
		if err != nil {
			return err
		}
		if traceID, ok := msg.Headers[trace.HeaderName()].(string); ok && traceID != "" {
			line += " trace_id=" + traceID
		}

		mu.Lock()
		defer mu.Unlock()
		_, err = fmt.Fprintln(w, line)
		return err
	}
}
