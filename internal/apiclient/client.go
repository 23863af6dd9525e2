package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"taskmanager/internal/session"
	"taskmanager/pkg/circuitbreaker"
	"taskmanager/pkg/logger"
	"taskmanager/pkg/metrics"
	"taskmanager/pkg/trace"
	"taskmanager/pkg/util"

	"go.uber.org/zap"
)

const (
	csrfCookieName = "csrftoken"
	csrfHeaderName = "X-CSRFToken"

	maxResponseBody = 4 << 20
)

// 指标和日志里使用的 endpoint 名称
const (
	endpointListTasks  = "list_tasks"
	endpointCSRF       = "csrf"
	endpointCreateTask = "create_task"
	endpointDeleteTask = "delete_task"
	endpointLogout     = "logout"
	endpointLogin      = "login"
	endpointRegister   = "register"
)

// Config 任务 API 客户端配置
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	CircuitBreaker *circuitbreaker.Config // nil 表示不启用
}

// Client 任务 REST API 客户端。
// 所有失败都以 *Error 返回，不做任何重试。
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	jar        *cookiejar.Jar
	session    *session.Session
	cb         *circuitbreaker.CircuitBreaker
	logger     *zap.Logger

	mu        sync.Mutex
	csrfToken string
}

// New 创建客户端，cookie jar 用会话中保存的 cookie 初始化
func New(cfg Config, sess *session.Session, log *zap.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api base url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q: scheme and host are required", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		jar:     jar,
		session: sess,
		logger:  log.With(zap.String("component", "apiclient")),
	}

	if cookies := sess.Cookies(); len(cookies) > 0 {
		httpCookies := make([]*http.Cookie, 0, len(cookies))
		for _, ck := range cookies {
			httpCookies = append(httpCookies, &http.Cookie{Name: ck.Name, Value: ck.Value, Path: "/"})
		}
		jar.SetCookies(base, httpCookies)
	}

	if cfg.CircuitBreaker != nil {
		c.cb = circuitbreaker.NewCircuitBreaker(*cfg.CircuitBreaker)
		c.cb.OnStateChange(func(from, to circuitbreaker.State) {
			c.logger.Warn("Task API circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		})
	}

	return c, nil
}

// BaseURL 返回规范化之后的 API 地址
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// call 描述一次 API 请求
type call struct {
	endpoint string
	method   string
	path     string
	query    url.Values
	body     interface{}
	accept   func(status int) bool
}

// do 执行请求，返回响应体。非预期状态码、网络错误都会转成 *Error。
func (c *Client) do(ctx context.Context, rc call) ([]byte, error) {
	ctx = trace.Ensure(ctx)
	log := logger.WithTrace(ctx, c.logger).With(
		zap.String("endpoint", rc.endpoint),
		zap.String("method", rc.method),
	)

	var respBody []byte
	var status int
	exec := func() error {
		var err error
		respBody, status, err = c.roundTrip(ctx, rc)
		return err
	}

	var err error
	if c.cb != nil {
		err = c.cb.Execute(exec, countsAsOutage)
	} else {
		err = exec()
	}
	c.syncSessionCookies()

	if err != nil {
		var apiErr *Error
		if !errors.As(err, &apiErr) {
			err = &Error{Op: rc.endpoint, Err: err}
		}
		log.Warn("Task API call failed",
			zap.Int("status", status),
			zap.String("error_type", util.ClassifyError(err)),
			zap.Error(err),
		)
		return nil, err
	}

	log.Debug("Task API call succeeded", zap.Int("status", status))
	return respBody, nil
}

func (c *Client) roundTrip(ctx context.Context, rc call) ([]byte, int, error) {
	start := time.Now()

	req, err := c.newRequest(ctx, rc)
	if err != nil {
		return nil, 0, &Error{Op: rc.endpoint, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordAPICall(rc.endpoint, "error", time.Since(start))
		return nil, 0, &Error{Op: rc.endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	metrics.RecordAPICall(rc.endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return nil, resp.StatusCode, &Error{Op: rc.endpoint, Status: resp.StatusCode, Err: err}
	}

	if !rc.accept(resp.StatusCode) {
		return body, resp.StatusCode, newStatusError(rc.endpoint, resp.StatusCode, body)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) newRequest(ctx context.Context, rc call) (*http.Request, error) {
	ref := &url.URL{Path: rc.path}
	if len(rc.query) > 0 {
		ref.RawQuery = rc.query.Encode()
	}
	target := c.baseURL.ResolveReference(ref)

	var body io.Reader
	if rc.body != nil {
		b, err := json.Marshal(rc.body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, rc.method, target.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if rc.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if traceID := trace.FromContext(ctx); traceID != "" {
		req.Header.Set(trace.HeaderName(), traceID)
	}

	if isUnsafe(rc.method) {
		if token := c.currentCSRFToken(); token != "" {
			req.Header.Set(csrfHeaderName, token)
		}
		// Django 在 HTTPS 下会校验 Referer
		req.Header.Set("Referer", c.baseURL.String())
	}
	return req, nil
}

func (c *Client) currentCSRFToken() string {
	c.mu.Lock()
	token := c.csrfToken
	c.mu.Unlock()
	if token != "" {
		return token
	}
	return c.cookieCSRFToken()
}

func (c *Client) cookieCSRFToken() string {
	for _, ck := range c.jar.Cookies(c.baseURL) {
		if ck.Name == csrfCookieName {
			return ck.Value
		}
	}
	return ""
}

// syncSessionCookies 把 jar 中最新的 cookie 写回会话，持久化由 session.Manager 负责
func (c *Client) syncSessionCookies() {
	httpCookies := c.jar.Cookies(c.baseURL)
	cookies := make([]session.Cookie, 0, len(httpCookies))
	for _, ck := range httpCookies {
		cookies = append(cookies, session.Cookie{Name: ck.Name, Value: ck.Value})
	}
	c.session.SetCookies(cookies)
}

// usernameQuery 后端的列表和删除接口通过 ?username= 识别用户
func (c *Client) usernameQuery() url.Values {
	username := c.session.Username()
	if username == "" {
		return nil
	}
	return url.Values{"username": {username}}
}

func isUnsafe(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	}
	return true
}

// countsAsOutage 只有网络错误和 5xx 计入熔断，4xx 属于业务失败
func countsAsOutage(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status != 0 {
		return apiErr.Status >= 500
	}
	return true
}

func any2xx(status int) bool { return status >= 200 && status < 300 }

func exactly(want int) func(int) bool {
	return func(status int) bool { return status == want }
}

func anyStatus(int) bool { return true }
