// Package view 实现任务列表页面的状态机。
//
// 视图持有全部客户端状态（任务序列、错误信息、表单开关和草稿），
// 网络请求在锁外执行，请求结束后在锁内整体替换或追加状态，
// 所以渲染随时可以拿到一致的快照。
package view

import (
	"context"
	"sync"

	"taskmanager/internal/events"
	"taskmanager/internal/model"
	"taskmanager/internal/session"
	"taskmanager/pkg/logger"
	"taskmanager/pkg/metrics"

	"go.uber.org/zap"
)

// EntryPath 登录入口页
const EntryPath = "/"

// 展示给用户的通用错误信息
const (
	MsgFetchFailed  = "Failed to fetch tasks"
	MsgCreateFailed = "Failed to create task. Please try again."
	MsgDeleteFailed = "Failed to delete task. Please try again."
)

// DefaultDateLayout deadline 的默认展示格式（en-US 短日期）
const DefaultDateLayout = "1/2/2006"

// Navigator 路由能力：跳转到 path，replace 表示替换当前历史记录
type Navigator interface {
	Navigate(path string, replace bool)
}

// TaskAPI 视图依赖的远程操作，由 *apiclient.Client 实现
type TaskAPI interface {
	ListTasks(ctx context.Context) ([]model.Task, error)
	FetchCSRFToken(ctx context.Context) (string, error)
	CreateTask(ctx context.Context, draft model.Draft) (model.Task, error)
	DeleteTask(ctx context.Context, id model.TaskID) error
	Logout(ctx context.Context) error
}

// SessionContext 注入的会话，由 *session.Manager 实现
type SessionContext interface {
	Current() *session.Session
	End(ctx context.Context) error
}

// State 页面级状态
type State string

const (
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateFormOpen State = "form_open"
	StateError    State = "error"
)

// Outcome 一次操作的结果，同时作为指标标签
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeInvalid  Outcome = "invalid"
	OutcomeRedirect Outcome = "redirect"
	OutcomeSkipped  Outcome = "skipped"
)

// Snapshot 某一时刻的页面状态，渲染器只读它
type Snapshot struct {
	Loading    bool
	LoadFailed bool
	Tasks      []model.Task
	Error      string
	FormOpen   bool
	Draft      model.Draft
	Username   string
	DateLayout string
}

// State 从快照推导页面状态
func (s Snapshot) State() State {
	switch {
	case s.Loading:
		return StateLoading
	case s.LoadFailed:
		return StateError
	case s.FormOpen:
		return StateFormOpen
	default:
		return StateReady
	}
}

// Option 视图可选配置
type Option func(*View)

func WithLogger(l *zap.Logger) Option {
	return func(v *View) { v.logger = l }
}

func WithEvents(sink events.Sink) Option {
	return func(v *View) { v.events = sink }
}

func WithDateLayout(layout string) Option {
	return func(v *View) {
		if layout != "" {
			v.dateLayout = layout
		}
	}
}

// View 任务列表视图
type View struct {
	api        TaskAPI
	session    SessionContext
	nav        Navigator
	events     events.Sink
	logger     *zap.Logger
	dateLayout string

	mu         sync.Mutex
	mounted    bool
	loading    bool
	loadFailed bool
	tasks      []model.Task
	errMsg     string
	formOpen   bool
	draft      model.Draft
}

func New(api TaskAPI, sess SessionContext, nav Navigator, opts ...Option) *View {
	v := &View{
		api:        api,
		session:    sess,
		nav:        nav,
		logger:     zap.NewNop(),
		dateLayout: DefaultDateLayout,
		loading:    true,
		tasks:      []model.Task{},
		draft:      model.NewDraft(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.events == nil {
		v.events = events.NewLogSink(v.logger)
	}
	v.logger = v.logger.With(zap.String("component", "task_list_view"))
	return v
}

// Snapshot 返回当前状态的拷贝
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	return Snapshot{
		Loading:    v.loading,
		LoadFailed: v.loadFailed,
		Tasks:      append([]model.Task(nil), v.tasks...),
		Error:      v.errMsg,
		FormOpen:   v.formOpen,
		Draft:      v.draft,
		Username:   v.session.Current().Username(),
		DateLayout: v.dateLayout,
	}
}

// OpenForm 打开新建表单，不发请求
func (v *View) OpenForm() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.formOpen = true
}

// CloseForm 取消新建，草稿恢复默认值
func (v *View) CloseForm() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.formOpen = false
	v.draft = model.NewDraft()
}

// SetDraftField 更新草稿中的一个字段，未知字段返回 false
func (v *View) SetDraftField(field, value string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.draft.Set(field, value)
}

func (v *View) log(ctx context.Context) *zap.Logger {
	return logger.WithTrace(ctx, v.logger)
}

func (v *View) record(op string, outcome Outcome) Outcome {
	metrics.IncrementViewOperation(op, string(outcome))
	return outcome
}

func (v *View) publish(ctx context.Context, routingKey string, payload any) {
	if err := v.events.Publish(ctx, routingKey, payload); err != nil {
		v.log(ctx).Warn("Failed to publish activity event",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
	}
}
