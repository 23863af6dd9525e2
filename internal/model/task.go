package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TaskID 服务端分配的任务标识，客户端只做透传。
// 后端返回的可能是数字也可能是字符串，编码时保持原来的形态。
type TaskID string

func (id *TaskID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = TaskID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("task id must be a string or number: %w", err)
	}
	*id = TaskID(n.String())
	return nil
}

func (id TaskID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id TaskID) String() string { return string(id) }

// Priority 任务优先级
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities 按表单中的顺序列出
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func (p Priority) Label() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	}
	return string(p)
}

// Status 任务状态
type Status string

const (
	StatusYetToStart Status = "yet-to-start"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusHold       Status = "hold"
)

var Statuses = []Status{StatusYetToStart, StatusInProgress, StatusCompleted, StatusHold}

func (s Status) Valid() bool {
	switch s {
	case StatusYetToStart, StatusInProgress, StatusCompleted, StatusHold:
		return true
	}
	return false
}

func (s Status) Label() string {
	switch s {
	case StatusYetToStart:
		return "Yet to Start"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	case StatusHold:
		return "On Hold"
	}
	return string(s)
}

// DateLayout deadline 在接口上的格式
const DateLayout = "2006-01-02"

// Date 不带时区的日历日期
type Date struct {
	time.Time
}

// ParseDate 解析 YYYY-MM-DD，也接受 RFC3339 并截断到日期
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format(DateLayout)
}

// Format 按展示格式输出，零值输出空串
func (d Date) Format(layout string) string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format(layout)
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(*s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Task 服务端确认过的任务（canonical task）
type Task struct {
	ID          TaskID     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	Deadline    Date       `json:"deadline"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}
