package util

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/url"

	"taskmanager/pkg/circuitbreaker"
)

// StatusCoder 由携带 HTTP 状态码的错误实现
type StatusCoder interface {
	StatusCode() int
}

// ClassifyError 把任务 API 调用失败归类，用于日志字段和指标标签。
// 客户端不做重试，分类只用于观测。
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		return "circuit_open"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "context_canceled"
	}

	// 服务端有响应：按状态码分类
	var sc StatusCoder
	if errors.As(err, &sc) && sc.StatusCode() != 0 {
		code := sc.StatusCode()
		switch {
		case code == 401:
			return "unauthenticated"
		case code == 403:
			return "forbidden"
		case code == 404:
			return "not_found"
		case code >= 500:
			return "server_error"
		case code >= 400:
			return "client_error"
		default:
			return "unexpected_status"
		}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return "json_decode_error"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return "network_timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "network_timeout"
		}
		return "network_error"
	}
	if urlErr != nil {
		return "network_error"
	}

	return "unknown_error"
}
