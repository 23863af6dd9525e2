package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"taskmanager/internal/model"
	"taskmanager/internal/session"
	"taskmanager/pkg/circuitbreaker"
	"taskmanager/pkg/trace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recorded struct {
	method string
	path   string
	query  string
	header http.Header
	body   []byte
}

type fakeAPI struct {
	t       *testing.T
	mu      sync.Mutex
	calls   []recorded
	handler http.HandlerFunc
}

func newFakeAPI(t *testing.T, handler http.HandlerFunc) (*fakeAPI, *httptest.Server) {
	f := &fakeAPI{t: t, handler: handler}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		f.mu.Lock()
		f.calls = append(f.calls, recorded{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			header: r.Header.Clone(),
			body:   body,
		})
		f.mu.Unlock()
		f.handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(f.t, f.calls)
	return f.calls[len(f.calls)-1]
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newClient(t *testing.T, baseURL string, sess *session.Session) *Client {
	t.Helper()
	if sess == nil {
		sess = session.New("alice", nil)
	}
	c, err := New(Config{BaseURL: baseURL + "/api", Timeout: 2 * time.Second}, sess, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "localhost:8000"}, session.New("", nil), zap.NewNop())
	assert.Error(t, err)
}

func TestListTasks(t *testing.T) {
	api, srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": "Tasks retrieved successfully",
			"tasks": []map[string]interface{}{
				{"id": 2, "title": "B", "description": "b", "priority": "low", "status": "hold", "deadline": "2030-01-02"},
				{"id": 1, "title": "A", "description": "a", "priority": "high", "status": "completed", "deadline": "2030-01-01"},
			},
		})
	})

	c := newClient(t, srv.URL, nil)
	ctx := trace.WithContext(context.Background(), "trace-123")
	tasks, err := c.ListTasks(ctx)
	require.NoError(t, err)

	require.Len(t, tasks, 2)
	assert.Equal(t, model.TaskID("2"), tasks[0].ID)
	assert.Equal(t, "A", tasks[1].Title)

	call := api.last()
	assert.Equal(t, http.MethodGet, call.method)
	assert.Equal(t, "/api/tasks/", call.path)
	assert.Equal(t, "username=alice", call.query)
	assert.Equal(t, "trace-123", call.header.Get("X-Trace-ID"))
}

func TestListTasksMissingFieldIsEmpty(t *testing.T) {
	_, srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})

	tasks, err := newClient(t, srv.URL, nil).ListTasks(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestListTasksUnauthorized(t *testing.T) {
	_, srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
	})

	_, err := newClient(t, srv.URL, nil).ListTasks(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode())
}

func TestCreateTaskSendsCSRFAndUsername(t *testing.T) {
	api, srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/csrf/":
			http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "cookie-token", Path: "/"})
			writeJSON(w, http.StatusOK, map[string]string{"csrfToken": "body-token"})
		case "/api/tasks/":
			var in map[string]string
			_ = json.NewDecoder(r.Body).Decode(&in)
			writeJSON(w, http.StatusCreated, map[string]interface{}{
				"message": "Task created successfully",
				"task": map[string]interface{}{
					"id": 9, "title": in["title"], "description": in["description"],
					"priority": in["priority"], "status": in["status"], "deadline": in["deadline"],
				},
			})
		}
	})

	sess := session.New("alice", nil)
	c := newClient(t, srv.URL, sess)
	ctx := context.Background()

	token, err := c.FetchCSRFToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "body-token", token)

	draft := model.Draft{Title: "Write", Description: "report", Priority: model.PriorityMedium, Status: model.StatusInProgress, Deadline: "2030-03-04"}
	task, err := c.CreateTask(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, model.TaskID("9"), task.ID)
	assert.Equal(t, "2030-03-04", task.Deadline.String())

	call := api.last()
	assert.Equal(t, http.MethodPost, call.method)
	assert.Equal(t, "body-token", call.header.Get("X-CSRFToken"))
	assert.Equal(t, "application/json", call.header.Get("Content-Type"))

	var sent map[string]string
	require.NoError(t, json.Unmarshal(call.body, &sent))
	assert.Equal(t, "alice", sent["username"])
	assert.Equal(t, "medium", sent["priority"])
	assert.Equal(t, "in-progress", sent["status"])

	assert.Contains(t, sess.Cookies(), session.Cookie{Name: "csrftoken", Value: "cookie-token"})
}

func TestFetchCSRFTokenFallsBackToCookie(t *testing.T) {
	csrfBody := `{"csrfToken":"first"}`
	api, srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/csrf/":
			http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "from-cookie", Path: "/"})
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, csrfBody)
		default:
			writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
		}
	})

	core, logs := observer.New(zap.WarnLevel)
	c, err := New(Config{BaseURL: srv.URL + "/api/"}, session.New("alice", nil), zap.New(core))
	require.NoError(t, err)
	ctx := context.Background()

	token, err := c.FetchCSRFToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", token)

	csrfBody = "<html>not json</html>"
	token, err = c.FetchCSRFToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "from-cookie", token, "a stale body token must not survive a refetch")
	assert.Equal(t, 1, logs.FilterMessage("Failed to decode csrf response, falling back to cookie").Len())

	require.NoError(t, c.DeleteTask(ctx, "1"))
	assert.Equal(t, "from-cookie", api.last().header.Get("X-CSRFToken"))
}

func TestCreateTaskErrorDetail(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   interface{}
		want   string
	}{
		{
			name:   "message wins",
			status: http.StatusBadRequest,
			body:   map[string]interface{}{"message": "Invalid task data", "errors": map[string][]string{"deadline": {"Deadline cannot be in the past"}}},
			want:   "Invalid task data",
		},
		{
			name:   "errors when no message",
			status: http.StatusBadRequest,
			body:   map[string]interface{}{"errors": map[string][]string{"title": {"This field is required."}, "deadline": {"Deadline cannot be in the past"}}},
			want:   "deadline: Deadline cannot be in the past; title: This field is required.",
		},
		{
			name:   "generic fallback",
			status: http.StatusInternalServerError,
			body:   "<html>oops</html>",
			want:   "fallback",
		},
		{
			name:   "non-201 success is a failure",
			status: http.StatusOK,
			body:   map[string]interface{}{"task": map[string]interface{}{"id": 1}},
			want:   "fallback",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			})

			_, err := newClient(t, srv.URL, nil).CreateTask(context.Background(), model.NewDraft())
			require.Error(t, err)
			assert.Equal(t, tc.want, Detail(err, "fallback"))
		})
	}
}

func TestCreateTaskWithoutCanonicalTask(t *testing.T) {
	_, srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]string{"message": "Task created successfully"})
	})

	_, err := newClient(t, srv.URL, nil).CreateTask(context.Background(), model.NewDraft())
	require.Error(t, err)
	assert.ErrorIs(t, err, errMissingTask)
}

func TestDeleteTask(t *testing.T) {
	status := http.StatusOK
	api, srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, map[string]string{"message": "Task deleted successfully"})
	})
	c := newClient(t, srv.URL, nil)

	require.NoError(t, c.DeleteTask(context.Background(), "42"))
	call := api.last()
	assert.Equal(t, http.MethodDelete, call.method)
	assert.Equal(t, "/api/tasks/42/", call.path)
	assert.Equal(t, "username=alice", call.query)

	status = http.StatusNoContent
	assert.Error(t, c.DeleteTask(context.Background(), "42"))

	status = http.StatusNotFound
	err := c.DeleteTask(context.Background(), "42")
	require.Error(t, err)
	assert.Equal(t, "Task deleted successfully", Detail(err, "fallback"))
}

func TestLogout(t *testing.T) {
	_, srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "CSRF Failed"})
	})
	c := newClient(t, srv.URL, nil)
	assert.NoError(t, c.Logout(context.Background()), "any response completes logout")

	srv.Close()
	err := c.Logout(context.Background())
	require.Error(t, err)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.False(t, apiErr.HasResponse())
}

func TestLogin(t *testing.T) {
	api, srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/csrf/":
			writeJSON(w, http.StatusOK, map[string]string{"csrfToken": "tok"})
		case "/api/login/":
			http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "s1", Path: "/"})
			writeJSON(w, http.StatusOK, map[string]string{"message": "Login successful", "username": "Alice"})
		}
	})

	sess := session.New("", nil)
	c := newClient(t, srv.URL, sess)
	username, err := c.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Alice", username)
	assert.Equal(t, "tok", api.last().header.Get("X-CSRFToken"))
	assert.Contains(t, sess.Cookies(), session.Cookie{Name: "sessionid", Value: "s1"})
}

func TestRegister(t *testing.T) {
	status := http.StatusCreated
	api, srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/csrf/":
			writeJSON(w, http.StatusOK, map[string]string{"csrfToken": "tok"})
		case "/api/register/":
			if status == http.StatusCreated {
				writeJSON(w, status, map[string]string{"message": "Registration successful"})
				return
			}
			writeJSON(w, status, map[string]interface{}{"message": map[string][]string{
				"username": {"Username already exists"},
				"password": {"Passwords don't match"},
			}})
		}
	})
	c := newClient(t, srv.URL, session.New("", nil))
	reg := Registration{Username: "bob", Password: "pw1", ConfirmPassword: "pw1", FirstName: "Bob"}

	require.NoError(t, c.Register(context.Background(), reg))
	call := api.last()
	assert.Equal(t, "/api/register/", call.path)
	assert.Equal(t, "tok", call.header.Get("X-CSRFToken"))
	var sent map[string]string
	require.NoError(t, json.Unmarshal(call.body, &sent))
	assert.Equal(t, map[string]string{"username": "bob", "password": "pw1", "confirm_password": "pw1", "first_name": "Bob"}, sent)

	status = http.StatusBadRequest
	err := c.Register(context.Background(), reg)
	require.Error(t, err)
	assert.Equal(t, "password: Passwords don't match; username: Username already exists", Detail(err, "fallback"))

	status = http.StatusOK
	assert.Error(t, c.Register(context.Background(), reg), "only 201 confirms a registration")
}

func TestSessionCookiesSeedJar(t *testing.T) {
	api, srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": []interface{}{}})
	})

	sess := session.New("alice", []session.Cookie{{Name: "sessionid", Value: "persisted"}})
	_, err := newClient(t, srv.URL, sess).ListTasks(context.Background())
	require.NoError(t, err)

	req := &http.Request{Header: api.last().header}
	ck, err := req.Cookie("sessionid")
	require.NoError(t, err)
	assert.Equal(t, "persisted", ck.Value)
}

func TestCircuitBreakerFailsFast(t *testing.T) {
	api, srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "down"})
	})

	cbCfg := circuitbreaker.Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Hour, HalfOpenMaxRequests: 1}
	c, err := New(Config{BaseURL: srv.URL, CircuitBreaker: &cbCfg}, session.New("alice", nil), zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := c.ListTasks(context.Background())
		require.Error(t, err)
	}

	_, err = c.ListTasks(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen))
	assert.Equal(t, "fallback", Detail(err, "fallback"))

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Len(t, api.calls, 2)
}
