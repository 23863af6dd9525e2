package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Error 任务 API 调用失败。
// Status 为 0 表示没有拿到响应（网络错误、熔断等），此时 Err 是原因。
type Error struct {
	Op      string
	Status  int
	Message string
	Errors  string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode 实现 util.StatusCoder，用于错误分类
func (e *Error) StatusCode() int { return e.Status }

// HasResponse 服务端是否返回了响应
func (e *Error) HasResponse() bool { return e.Status != 0 }

// Detail 按 message → errors → fallback 的优先级返回展示给用户的错误信息
func (e *Error) Detail(fallback string) string {
	if e.Message != "" {
		return e.Message
	}
	if e.Errors != "" {
		return e.Errors
	}
	return fallback
}

// Detail 对任意错误应用同样的优先级；非 *Error 直接返回 fallback
func Detail(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Detail(fallback)
	}
	return fallback
}

// IsUnauthorized 是否是未登录（401）
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// errorBody 后端错误响应的形状：message/errors 都是可选的，
// 可能是字符串、字段错误字典或者列表
type errorBody struct {
	Message json.RawMessage `json:"message"`
	Errors  json.RawMessage `json:"errors"`
}

func newStatusError(op string, status int, body []byte) *Error {
	e := &Error{Op: op, Status: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		e.Message = formatDetail(eb.Message)
		e.Errors = formatDetail(eb.Errors)
	}
	return e
}

// formatDetail 把任意 JSON 值压成一行文本。
// 字段错误字典按 key 排序输出为 "field: msg1, msg2; other: msg"。
func formatDetail(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return strings.TrimSpace(flatten(v))
}

func flatten(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := flatten(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			s := flatten(val[k])
			if s == "" {
				continue
			}
			if k == "non_field_errors" {
				parts = append(parts, s)
				continue
			}
			parts = append(parts, k+": "+s)
		}
		return strings.Join(parts, "; ")
	case bool, float64:
		return fmt.Sprint(val)
	default:
		return ""
	}
}
