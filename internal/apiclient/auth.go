package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration 注册新用户所需的字段，两次密码是否一致由服务端校验
type Registration struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FirstName       string `json:"first_name"`
}

type loginResponse struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

// Login POST login/。先取 CSRF token，成功后返回服务端确认的用户名。
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	if _, err := c.FetchCSRFToken(ctx); err != nil {
		return "", err
	}

	body, err := c.do(ctx, call{
		endpoint: endpointLogin,
		method:   http.MethodPost,
		path:     "login/",
		body:     loginRequest{Username: username, Password: password},
		accept:   any2xx,
	})
	if err != nil {
		return "", err
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Username != "" {
		return resp.Username, nil
	}
	return username, nil
}

// Register POST register/。先取 CSRF token，只有 201 算成功；
// 校验失败时服务端把字段错误放在 message 里。
func (c *Client) Register(ctx context.Context, reg Registration) error {
	if _, err := c.FetchCSRFToken(ctx); err != nil {
		return err
	}

	_, err := c.do(ctx, call{
		endpoint: endpointRegister,
		method:   http.MethodPost,
		path:     "register/",
		body:     reg,
		accept:   exactly(http.StatusCreated),
	})
	return err
}

// Logout POST logout/。只要服务端有响应就算完成，只有网络层失败才返回错误。
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, call{
		endpoint: endpointLogout,
		method:   http.MethodPost,
		path:     "logout/",
		accept:   anyStatus,
	})
	return err
}
