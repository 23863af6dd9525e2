package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrNoSession 本地没有会话记录
var ErrNoSession = errors.New("no local session")

// Cookie 服务端下发的 cookie（只保存 name/value）
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Session 本地会话：用户名标记 + 服务端会话 cookie。
// 只是登录的本地证据，真正的会话状态在服务端。
type Session struct {
	mu       sync.RWMutex
	username string
	cookies  []Cookie
}

func New(username string, cookies []Cookie) *Session {
	return &Session{username: username, cookies: append([]Cookie(nil), cookies...)}
}

func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// Active 是否存在用户名标记
func (s *Session) Active() bool {
	return s.Username() != ""
}

func (s *Session) Cookies() []Cookie {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Cookie(nil), s.cookies...)
}

func (s *Session) SetCookies(cookies []Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies = append([]Cookie(nil), cookies...)
}

// Clear 清除用户名标记和 cookie
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = ""
	s.cookies = nil
}

// Store 会话的持久化存储
type Store interface {
	// Load 返回 ErrNoSession 表示没有保存过会话
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Clear(ctx context.Context) error
}

// Manager 管理会话的生命周期：登录时 Begin，登出时 End。
type Manager struct {
	store   Store
	logger  *zap.Logger
	current *Session
}

// NewManager 从 store 加载已有会话；没有会话时得到一个空会话
func NewManager(ctx context.Context, store Store, logger *zap.Logger) (*Manager, error) {
	current, err := store.Load(ctx)
	switch {
	case errors.Is(err, ErrNoSession):
		current = New("", nil)
	case errors.Is(err, ErrInvalidMarker), errors.Is(err, ErrCorruptRecord):
		// 过期或被改过的记录当作未登录，下次 Begin 会覆盖它
		logger.Warn("Ignoring stored session", zap.Error(err))
		current = New("", nil)
	case err != nil:
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &Manager{store: store, logger: logger, current: current}, nil
}

// Current 当前会话，始终非 nil
func (m *Manager) Current() *Session {
	return m.current
}

// Begin 登录成功后设置用户名标记并持久化
func (m *Manager) Begin(ctx context.Context, username string) error {
	m.current.mu.Lock()
	m.current.username = username
	m.current.mu.Unlock()

	if err := m.store.Save(ctx, m.current); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	m.logger.Info("Session started", zap.String("username", username))
	return nil
}

// Persist 保存最新的 cookie（例如拿到 CSRF token 之后）
func (m *Manager) Persist(ctx context.Context) error {
	if !m.current.Active() {
		return nil
	}
	return m.store.Save(ctx, m.current)
}

// End 清除本地会话。内存中的标记总是会被清除，即使存储删除失败。
func (m *Manager) End(ctx context.Context) error {
	username := m.current.Username()
	m.current.Clear()

	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn("Failed to clear stored session",
			zap.String("username", username),
			zap.Error(err),
		)
		return fmt.Errorf("failed to clear session: %w", err)
	}
	m.logger.Info("Session ended", zap.String("username", username))
	return nil
}
