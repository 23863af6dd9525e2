package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"taskmanager/internal/model"
	"taskmanager/pkg/logger"

	"go.uber.org/zap"
)

var errMissingTask = errors.New("response does not contain a task")

type listTasksResponse struct {
	Tasks []model.Task `json:"tasks"`
}

type csrfResponse struct {
	CSRFToken string `json:"csrfToken"`
}

type createTaskRequest struct {
	model.Draft
	Username string `json:"username,omitempty"`
}

type createTaskResponse struct {
	Task *model.Task `json:"task"`
}

// ListTasks GET tasks/，任意 2xx 视为成功；响应里没有 tasks 时返回空列表
func (c *Client) ListTasks(ctx context.Context) ([]model.Task, error) {
	body, err := c.do(ctx, call{
		endpoint: endpointListTasks,
		method:   http.MethodGet,
		path:     "tasks/",
		query:    c.usernameQuery(),
		accept:   any2xx,
	})
	if err != nil {
		return nil, err
	}

	var resp listTasksResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, &Error{Op: endpointListTasks, Err: fmt.Errorf("failed to decode tasks: %w", err)}
		}
	}
	if resp.Tasks == nil {
		return []model.Task{}, nil
	}
	return resp.Tasks, nil
}

// FetchCSRFToken GET csrf/。服务端同时通过 cookie 下发 token，
// 响应体中的 csrfToken 优先用于后续的写请求。
func (c *Client) FetchCSRFToken(ctx context.Context) (string, error) {
	body, err := c.do(ctx, call{
		endpoint: endpointCSRF,
		method:   http.MethodGet,
		path:     "csrf/",
		accept:   any2xx,
	})
	if err != nil {
		return "", err
	}

	var resp csrfResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			logger.WithTrace(ctx, c.logger).Warn("Failed to decode csrf response, falling back to cookie",
				zap.String("endpoint", endpointCSRF),
				zap.Error(err),
			)
		}
	}

	// 响应体里的 token 优先，没有时用刚下发的 cookie
	token := resp.CSRFToken
	if token == "" {
		token = c.cookieCSRFToken()
	}

	c.mu.Lock()
	c.csrfToken = token
	c.mu.Unlock()
	return token, nil
}

// CreateTask POST tasks/，只有 201 算成功，返回服务端确认的任务
func (c *Client) CreateTask(ctx context.Context, draft model.Draft) (model.Task, error) {
	body, err := c.do(ctx, call{
		endpoint: endpointCreateTask,
		method:   http.MethodPost,
		path:     "tasks/",
		body:     createTaskRequest{Draft: draft, Username: c.session.Username()},
		accept:   exactly(http.StatusCreated),
	})
	if err != nil {
		return model.Task{}, err
	}

	var resp createTaskResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.Task{}, &Error{Op: endpointCreateTask, Status: http.StatusCreated, Err: fmt.Errorf("failed to decode task: %w", err)}
	}
	// 客户端不能自己编造 id
	if resp.Task == nil || resp.Task.ID == "" {
		return model.Task{}, &Error{Op: endpointCreateTask, Status: http.StatusCreated, Err: errMissingTask}
	}
	return *resp.Task, nil
}

// DeleteTask DELETE tasks/{id}/，只有 200 算成功
func (c *Client) DeleteTask(ctx context.Context, id model.TaskID) error {
	_, err := c.do(ctx, call{
		endpoint: endpointDeleteTask,
		method:   http.MethodDelete,
		path:     "tasks/" + url.PathEscape(id.String()) + "/",
		query:    c.usernameQuery(),
		accept:   exactly(http.StatusOK),
	})
	return err
}
