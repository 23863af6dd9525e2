package web

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"taskmanager/internal/apiclient"
	"taskmanager/internal/model"
	"taskmanager/internal/session"
	"taskmanager/internal/view"
	"taskmanager/pkg/logger"
	"taskmanager/pkg/metrics"
	"taskmanager/pkg/trace"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	msgLoginFailed     = "Login failed. Please try again."
	msgSessionExpired  = "Your session has expired. Please log in again."
	msgRegisterFailed  = "Registration failed. Please try again."
	msgRegistered      = "Registration successful! Please log in."
	msgMissingRegister = "Please fill in all fields"
)

// AuthAPI 登录、注册接口，由 *apiclient.Client 实现
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, reg apiclient.Registration) error
}

// ViewFactory 为当前会话创建一个新的任务列表视图
type ViewFactory func(nav view.Navigator) *view.View

// Server 本地 Web 前端。进程内只有一个页面实例，登出后丢弃，
// 下一次访问 /tasks 时重新挂载。
type Server struct {
	engine   *gin.Engine
	api      AuthAPI
	sessions *session.Manager
	newView  ViewFactory
	logger   *zap.Logger

	mu   sync.Mutex
	view *view.View
	// stale 服务端拒绝了本地会话（401），入口页不再自动跳到 /tasks，直到重新登录
	stale bool
}

func NewServer(api AuthAPI, sessions *session.Manager, newView ViewFactory, log *zap.Logger) *Server {
	s := &Server{
		api:      api,
		sessions: sessions,
		newView:  newView,
		logger:   log.With(zap.String("component", "web")),
	}
	s.engine = s.routes()
	return s
}

// Handler 返回 HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.SetHTMLTemplate(parseTemplates())

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET(view.EntryPath, s.entry)
	r.POST("/login", s.login)
	r.GET("/register", s.registerForm)
	r.POST("/register", s.register)
	r.GET("/tasks", s.showTasks)
	r.POST("/tasks", s.createTask)
	r.POST("/tasks/form/open", s.openForm)
	r.POST("/tasks/form/cancel", s.cancelForm)
	r.POST("/tasks/:id/delete", s.deleteTask)
	r.POST("/logout", s.logout)
	return r
}

// requestLogger 请求日志 + 延迟指标，同时为每个请求分配 trace_id
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		traceID := c.GetHeader(trace.HeaderName())
		if traceID == "" {
			traceID = trace.GenerateTraceID()
		}
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), traceID))
		c.Header(trace.HeaderName(), traceID)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		latency := time.Since(start)
		status := c.Writer.Status()
		metrics.RecordHTTPRequestDuration(c.Request.Method, route, strconv.Itoa(status), latency)
		s.logger.Info("HTTP Request",
			zap.String("trace_id", traceID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
		)
	}
}

// current 返回当前页面，没有时创建一个
func (s *Server) current() *view.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view == nil {
		s.view = s.newView(navigator{s: s})
	}
	return s.view
}

func (s *Server) unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = nil
}

func (s *Server) setStale(stale bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale = stale
}

// loggedIn 本地有会话标记且服务端没有拒绝过它
func (s *Server) loggedIn() bool {
	s.mu.Lock()
	stale := s.stale
	s.mu.Unlock()
	return !stale && s.sessions.Current().Active()
}

// navigator 视图要求跳转时卸载当前页面；真正的重定向由 handler 根据 Outcome 完成
type navigator struct {
	s *Server
}

func (n navigator) Navigate(path string, replace bool) {
	n.s.logger.Info("View navigated away",
		zap.String("path", path),
		zap.Bool("replace", replace),
	)
	n.s.unmount()
}

func (s *Server) persistSession(ctx context.Context) {
	if err := s.sessions.Persist(ctx); err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Failed to persist session", zap.Error(err))
	}
}

func (s *Server) entry(c *gin.Context) {
	if s.loggedIn() {
		c.Redirect(http.StatusSeeOther, "/tasks")
		return
	}
	page := loginPage{Title: view.ProductTitle}
	if c.Query("registered") != "" {
		page.Notice = msgRegistered
	}
	c.HTML(http.StatusOK, loginTemplate, page)
}

func (s *Server) login(c *gin.Context) {
	ctx := c.Request.Context()
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")

	if username == "" || password == "" {
		c.HTML(http.StatusBadRequest, loginTemplate, loginPage{
			Title:    view.ProductTitle,
			Error:    "Please provide both username and password",
			Username: username,
		})
		return
	}

	confirmed, err := s.api.Login(ctx, username, password)
	if err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Login failed",
			zap.String("username", username),
			zap.Error(err),
		)
		c.HTML(http.StatusUnauthorized, loginTemplate, loginPage{
			Title:    view.ProductTitle,
			Error:    apiclient.Detail(err, msgLoginFailed),
			Username: username,
		})
		return
	}

	if err := s.sessions.Begin(ctx, confirmed); err != nil {
		logger.WithTrace(ctx, s.logger).Error("Failed to start session", zap.Error(err))
		c.HTML(http.StatusInternalServerError, loginTemplate, loginPage{
			Title: view.ProductTitle,
			Error: msgLoginFailed,
		})
		return
	}

	s.unmount()
	s.setStale(false)
	c.Redirect(http.StatusSeeOther, "/tasks")
}

func (s *Server) registerForm(c *gin.Context) {
	c.HTML(http.StatusOK, registerTemplate, registerPage{Title: view.ProductTitle})
}

func (s *Server) register(c *gin.Context) {
	ctx := c.Request.Context()
	reg := apiclient.Registration{
		Username:        strings.TrimSpace(c.PostForm("username")),
		FirstName:       strings.TrimSpace(c.PostForm("first_name")),
		Password:        c.PostForm("password"),
		ConfirmPassword: c.PostForm("confirm_password"),
	}
	page := registerPage{Title: view.ProductTitle, Username: reg.Username, FirstName: reg.FirstName}

	if reg.Username == "" || reg.FirstName == "" || reg.Password == "" || reg.ConfirmPassword == "" {
		page.Error = msgMissingRegister
		c.HTML(http.StatusBadRequest, registerTemplate, page)
		return
	}

	if err := s.api.Register(ctx, reg); err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Registration failed",
			zap.String("username", reg.Username),
			zap.Error(err),
		)
		page.Error = apiclient.Detail(err, msgRegisterFailed)
		c.HTML(http.StatusBadRequest, registerTemplate, page)
		return
	}

	logger.WithTrace(ctx, s.logger).Info("User registered", zap.String("username", reg.Username))
	c.Redirect(http.StatusSeeOther, view.EntryPath+"?registered=1")
}

func (s *Server) showTasks(c *gin.Context) {
	ctx := c.Request.Context()
	v := s.current()

	if v.Mount(ctx) == view.OutcomeRedirect {
		// 直接渲染登录页：本地标记还在，跳回入口页会再被送回 /tasks
		s.setStale(true)
		c.HTML(http.StatusUnauthorized, loginTemplate, loginPage{
			Title:    view.ProductTitle,
			Error:    msgSessionExpired,
			Username: s.sessions.Current().Username(),
		})
		return
	}
	s.persistSession(ctx)
	c.HTML(http.StatusOK, tasksTemplate, newTasksPage(v.Snapshot()))
}

func (s *Server) openForm(c *gin.Context) {
	s.current().OpenForm()
	c.Redirect(http.StatusSeeOther, "/tasks")
}

func (s *Server) cancelForm(c *gin.Context) {
	s.current().CloseForm()
	c.Redirect(http.StatusSeeOther, "/tasks")
}

func (s *Server) createTask(c *gin.Context) {
	ctx := c.Request.Context()
	v := s.current()

	for _, field := range model.DraftFields {
		if value, ok := c.GetPostForm(field); ok {
			v.SetDraftField(field, value)
		}
	}
	v.CreateTask(ctx)
	s.persistSession(ctx)
	c.Redirect(http.StatusSeeOther, "/tasks")
}

func (s *Server) deleteTask(c *gin.Context) {
	ctx := c.Request.Context()
	s.current().DeleteTask(ctx, model.TaskID(c.Param("id")))
	s.persistSession(ctx)
	c.Redirect(http.StatusSeeOther, "/tasks")
}

func (s *Server) logout(c *gin.Context) {
	s.current().Logout(c.Request.Context())
	s.setStale(false)
	c.Redirect(http.StatusSeeOther, view.EntryPath)
}
