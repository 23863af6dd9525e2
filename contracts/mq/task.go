package mq

import "time"

// 活动事件的 routing key
const (
	RoutingKeyTaskCreated   = "task.created"
	RoutingKeyTaskDeleted   = "task.deleted"
	RoutingKeySessionLogout = "session.logout"
)

type TaskCreatedPayload struct {
	TaskID     string    `json:"task_id"`
	Username   string    `json:"username"`
	Title      string    `json:"title"`
	Priority   string    `json:"priority"`
	Status     string    `json:"status"`
	Deadline   string    `json:"deadline"` // YYYY-MM-DD format
	OccurredAt time.Time `json:"occurred_at"`
}

type TaskDeletedPayload struct {
	TaskID     string    `json:"task_id"`
	Username   string    `json:"username"`
	OccurredAt time.Time `json:"occurred_at"`
}

type SessionLogoutPayload struct {
	Username string `json:"username"`
	// 服务端 logout 请求是否成功；本地会话无论如何都会清除
	ServerAcknowledged bool      `json:"server_acknowledged"`
	OccurredAt         time.Time `json:"occurred_at"`
}
