package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"taskmanager/internal/apiclient"
	"taskmanager/internal/model"
	"taskmanager/internal/session"
	"taskmanager/internal/view"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeTaskAPI struct {
	mu        sync.Mutex
	tasks     []model.Task
	listErr   error
	listCalls int
	nextID    int
	drafts    []model.Draft
	deleted   []model.TaskID
	loggedOut bool
}

func (f *fakeTaskAPI) ListTasks(context.Context) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.Task(nil), f.tasks...), nil
}

func (f *fakeTaskAPI) FetchCSRFToken(context.Context) (string, error) { return "tok", nil }

func (f *fakeTaskAPI) CreateTask(_ context.Context, d model.Draft) (model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = append(f.drafts, d)
	f.nextID++
	deadline, err := model.ParseDate(d.Deadline)
	if err != nil {
		return model.Task{}, &apiclient.Error{Status: http.StatusBadRequest, Message: "Invalid task data"}
	}
	return model.Task{
		ID: model.TaskID(strconv.Itoa(100 + f.nextID)), Title: d.Title, Description: d.Description,
		Priority: d.Priority, Status: d.Status, Deadline: deadline,
	}, nil
}

func (f *fakeTaskAPI) DeleteTask(_ context.Context, id model.TaskID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeTaskAPI) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = true
	return errors.New("server unreachable")
}

type fakeLogin struct {
	err         error
	registerErr error
	registered  *[]apiclient.Registration
}

func (f fakeLogin) Login(_ context.Context, username, _ string) (string, error) {
	return username, f.err
}

func (f fakeLogin) Register(_ context.Context, reg apiclient.Registration) error {
	if f.registered != nil {
		*f.registered = append(*f.registered, reg)
	}
	return f.registerErr
}

type memStore struct {
	mu    sync.Mutex
	saved *session.Session
}

func (m *memStore) Load(context.Context) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		return nil, session.ErrNoSession
	}
	return m.saved, nil
}

func (m *memStore) Save(_ context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = s
	return nil
}

func (m *memStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = nil
	return nil
}

func newTestServer(t *testing.T, api *fakeTaskAPI, login AuthAPI, username string) (*Server, *session.Manager) {
	t.Helper()
	store := &memStore{}
	if username != "" {
		store.saved = session.New(username, nil)
	}
	mgr, err := session.NewManager(context.Background(), store, zap.NewNop())
	require.NoError(t, err)

	factory := func(nav view.Navigator) *view.View {
		return view.New(api, mgr, nav)
	}
	return NewServer(login, mgr, factory, zap.NewNop()), mgr
}

func do(t *testing.T, s *Server, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func sampleTask(id, title string) model.Task {
	d, _ := model.ParseDate("2030-05-01")
	return model.Task{ID: model.TaskID(id), Title: title, Description: "desc " + title,
		Priority: model.PriorityHigh, Status: model.StatusHold, Deadline: d}
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, &fakeTaskAPI{}, fakeLogin{}, "")
	w := do(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))
}

func TestEntryPage(t *testing.T) {
	s, _ := newTestServer(t, &fakeTaskAPI{}, fakeLogin{}, "")
	w := do(t, s, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/login"`)

	s, _ = newTestServer(t, &fakeTaskAPI{}, fakeLogin{}, "alice")
	w = do(t, s, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/tasks", w.Header().Get("Location"))
}

func TestLogin(t *testing.T) {
	s, mgr := newTestServer(t, &fakeTaskAPI{}, fakeLogin{}, "")
	w := do(t, s, http.MethodPost, "/login", url.Values{"username": {"alice"}, "password": {"pw"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/tasks", w.Header().Get("Location"))
	assert.Equal(t, "alice", mgr.Current().Username())

	s, mgr = newTestServer(t, &fakeTaskAPI{}, fakeLogin{err: &apiclient.Error{Status: 401, Message: "Invalid credentials"}}, "")
	w = do(t, s, http.MethodPost, "/login", url.Values{"username": {"alice"}, "password": {"bad"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid credentials")
	assert.False(t, mgr.Current().Active())

	w = do(t, s, http.MethodPost, "/login", url.Values{"username": {"alice"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTasksPageRendersCardsInOrder(t *testing.T) {
	api := &fakeTaskAPI{tasks: []model.Task{sampleTask("1", "Alpha"), sampleTask("2", "Beta")}}
	s, _ := newTestServer(t, api, fakeLogin{}, "alice")

	w := do(t, s, http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()

	assert.Equal(t, 2, strings.Count(body, `class="task-card"`))
	assert.Less(t, strings.Index(body, "Alpha"), strings.Index(body, "Beta"))
	assert.Contains(t, body, "Deadline: 5/1/2030")
	assert.Contains(t, body, `action="/tasks/1/delete"`)
	assert.NotContains(t, body, view.NoTasksText)

	do(t, s, http.MethodGet, "/tasks", nil)
	assert.Equal(t, 1, api.listCalls, "the page mounts once")
}

func TestEmptyTasksPage(t *testing.T) {
	s, _ := newTestServer(t, &fakeTaskAPI{}, fakeLogin{}, "alice")
	w := do(t, s, http.MethodGet, "/tasks", nil)
	body := w.Body.String()
	assert.Contains(t, body, view.NoTasksText)
	assert.NotContains(t, body, `class="task-card"`)
	assert.NotContains(t, body, `class="add-task-form"`)
}

// follow 跟随 303 跳转直到拿到最终页面
func follow(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	for i := 0; i < 5; i++ {
		w := do(t, s, http.MethodGet, target, nil)
		if w.Code != http.StatusSeeOther {
			return w
		}
		target = w.Header().Get("Location")
	}
	t.Fatalf("too many redirects, last location %q", target)
	return nil
}

func TestUnauthorizedShowsLoginScreen(t *testing.T) {
	api := &fakeTaskAPI{listErr: &apiclient.Error{Status: http.StatusUnauthorized}}
	s, mgr := newTestServer(t, api, fakeLogin{}, "alice")

	w := follow(t, s, "/tasks")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `action="/login"`)
	assert.Contains(t, w.Body.String(), msgSessionExpired)
	assert.Equal(t, 1, api.listCalls)

	w = follow(t, s, view.EntryPath)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/login"`)
	assert.Equal(t, 1, api.listCalls, "the entry page does not bounce back to /tasks")

	api.listErr = nil
	w = do(t, s, http.MethodPost, "/login", url.Values{"username": {"alice"}, "password": {"pw"}})
	assert.Equal(t, "/tasks", w.Header().Get("Location"))
	assert.True(t, mgr.Current().Active())

	w = follow(t, s, view.EntryPath)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), view.NoTasksText)
	assert.Equal(t, 2, api.listCalls)
}

func TestRegister(t *testing.T) {
	var registered []apiclient.Registration
	s, _ := newTestServer(t, &fakeTaskAPI{}, fakeLogin{registered: &registered}, "")

	w := do(t, s, http.MethodGet, "/register", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="confirm_password"`)

	w = do(t, s, http.MethodPost, "/register", url.Values{"username": {"bob"}, "password": {"pw"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), msgMissingRegister)
	assert.Empty(t, registered)

	w = do(t, s, http.MethodPost, "/register", url.Values{
		"username": {"bob"}, "first_name": {"Bob"}, "password": {"pw"}, "confirm_password": {"pw"},
	})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	require.Len(t, registered, 1)
	assert.Equal(t, apiclient.Registration{Username: "bob", FirstName: "Bob", Password: "pw", ConfirmPassword: "pw"}, registered[0])

	w = follow(t, s, w.Header().Get("Location"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), msgRegistered)
}

func TestRegisterShowsServerErrors(t *testing.T) {
	s, _ := newTestServer(t, &fakeTaskAPI{}, fakeLogin{
		registerErr: &apiclient.Error{Status: http.StatusBadRequest, Message: "username: Username already exists"},
	}, "")

	w := do(t, s, http.MethodPost, "/register", url.Values{
		"username": {"bob"}, "first_name": {"Bob"}, "password": {"pw"}, "confirm_password": {"pw"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "username: Username already exists")
	assert.Contains(t, w.Body.String(), `value="bob"`)
	assert.NotContains(t, w.Body.String(), `value="pw"`)
}

func TestCreateFlow(t *testing.T) {
	api := &fakeTaskAPI{tasks: []model.Task{sampleTask("1", "Alpha")}}
	s, _ := newTestServer(t, api, fakeLogin{}, "alice")
	do(t, s, http.MethodGet, "/tasks", nil)

	w := do(t, s, http.MethodPost, "/tasks/form/open", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	body := do(t, s, http.MethodGet, "/tasks", nil).Body.String()
	assert.Contains(t, body, `class="add-task-form"`)
	assert.Contains(t, body, `<option value="low" selected>Low</option>`)

	w = do(t, s, http.MethodPost, "/tasks", url.Values{
		"title": {"Gamma"}, "description": {"third"}, "priority": {"medium"},
		"status": {"in-progress"}, "deadline": {"2030-07-01"},
	})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	require.Len(t, api.drafts, 1)
	assert.Equal(t, model.StatusInProgress, api.drafts[0].Status)

	body = do(t, s, http.MethodGet, "/tasks", nil).Body.String()
	assert.Equal(t, 2, strings.Count(body, `class="task-card"`))
	assert.Less(t, strings.Index(body, "Alpha"), strings.Index(body, "Gamma"))
	assert.NotContains(t, body, `class="add-task-form"`)
}

func TestCreateFailureKeepsFormOpen(t *testing.T) {
	api := &fakeTaskAPI{}
	s, _ := newTestServer(t, api, fakeLogin{}, "alice")
	do(t, s, http.MethodGet, "/tasks", nil)
	do(t, s, http.MethodPost, "/tasks/form/open", nil)

	do(t, s, http.MethodPost, "/tasks", url.Values{
		"title": {"Bad"}, "description": {"date"}, "priority": {"low"},
		"status": {"hold"}, "deadline": {"next week"},
	})

	body := do(t, s, http.MethodGet, "/tasks", nil).Body.String()
	assert.Contains(t, body, `class="error-message">Invalid task data`)
	assert.Contains(t, body, `value="Bad"`)
	assert.Contains(t, body, `value="next week"`)
}

func TestCancelForm(t *testing.T) {
	s, _ := newTestServer(t, &fakeTaskAPI{}, fakeLogin{}, "alice")
	do(t, s, http.MethodGet, "/tasks", nil)
	do(t, s, http.MethodPost, "/tasks/form/open", nil)
	do(t, s, http.MethodPost, "/tasks/form/cancel", nil)

	body := do(t, s, http.MethodGet, "/tasks", nil).Body.String()
	assert.NotContains(t, body, `class="add-task-form"`)
}

func TestDeleteFlow(t *testing.T) {
	api := &fakeTaskAPI{tasks: []model.Task{sampleTask("1", "Alpha"), sampleTask("2", "Beta")}}
	s, _ := newTestServer(t, api, fakeLogin{}, "alice")
	do(t, s, http.MethodGet, "/tasks", nil)

	w := do(t, s, http.MethodPost, "/tasks/1/delete", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, []model.TaskID{"1"}, api.deleted)

	body := do(t, s, http.MethodGet, "/tasks", nil).Body.String()
	assert.NotContains(t, body, "Alpha")
	assert.Contains(t, body, "Beta")
}

func TestLogoutRemountsNextVisit(t *testing.T) {
	api := &fakeTaskAPI{}
	s, mgr := newTestServer(t, api, fakeLogin{}, "alice")
	do(t, s, http.MethodGet, "/tasks", nil)

	w := do(t, s, http.MethodPost, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, view.EntryPath, w.Header().Get("Location"))
	assert.True(t, api.loggedOut)
	assert.False(t, mgr.Current().Active())

	do(t, s, http.MethodGet, "/tasks", nil)
	assert.Equal(t, 2, api.listCalls)
}
