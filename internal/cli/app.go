package cli

import (
	"context"
	"fmt"

	"taskmanager/internal/apiclient"
	"taskmanager/internal/config"
	"taskmanager/internal/events"
	"taskmanager/internal/session"
	"taskmanager/internal/view"
	"taskmanager/pkg/logger"
	"taskmanager/pkg/mq"
	redisclient "taskmanager/pkg/redis"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app 一次命令执行所需的全部依赖
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	sessions *session.Manager
	client   *apiclient.Client
	events   events.Sink

	rdb       *redis.Client
	publisher *mq.Publisher
}

func bootstrap(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.env, opts.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	if cfg.UsesDefaultSecret() {
		log.Warn("Using the built-in session secret, set SESSION_SECRET outside local development")
	}

	a := &app{cfg: cfg, logger: log}
	if err := a.initSessions(ctx); err != nil {
		a.close(ctx)
		return nil, err
	}

	apiCfg := apiclient.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
	}
	if cfg.API.CircuitBreaker.Enabled {
		cb := cfg.API.CircuitBreaker.Config
		apiCfg.CircuitBreaker = &cb
	}
	a.client, err = apiclient.New(apiCfg, a.sessions.Current(), log)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	a.initEvents()
	return a, nil
}

func (a *app) initSessions(ctx context.Context) error {
	codec, err := session.NewMarkerCodec(a.cfg.Session.Secret, a.cfg.Session.TTL)
	if err != nil {
		return err
	}

	var store session.Store
	switch a.cfg.Session.Store {
	case config.SessionStoreRedis:
		a.rdb, err = redisclient.NewRedisClient(ctx, a.cfg.Redis)
		if err != nil {
			return err
		}
		store = session.NewRedisStore(a.rdb, a.cfg.Session.Profile, a.cfg.Session.TTL, codec)
	default:
		path := a.cfg.Session.Path
		if path == "" {
			if path, err = session.DefaultPath(); err != nil {
				return fmt.Errorf("failed to resolve session path: %w", err)
			}
		}
		store = session.NewFileStore(path, codec)
	}

	a.sessions, err = session.NewManager(ctx, store, a.logger)
	return err
}

// initEvents 配置了 MQ 时发布到 RabbitMQ，否则只写日志。连不上 MQ 不影响命令执行。
func (a *app) initEvents() {
	a.events = events.NewLogSink(a.logger)
	if a.cfg.Events.URL == "" {
		return
	}

	pub, err := mq.NewPublisher(a.cfg.Events.URL, a.cfg.Events.Exchange)
	if err != nil {
		a.logger.Warn("Event publisher unavailable, falling back to log sink", zap.Error(err))
		return
	}
	a.publisher = pub
	a.events = events.NewAMQPSink(pub, a.cfg.Events.PublishTimeout)
}

// newView 创建绑定到当前会话的任务列表视图
func (a *app) newView(nav view.Navigator) *view.View {
	return view.New(a.client, a.sessions, nav,
		view.WithLogger(a.logger),
		view.WithEvents(a.events),
		view.WithDateLayout(a.cfg.Display.DateLayout),
	)
}

// close 保存最新的会话 cookie 并释放连接
func (a *app) close(ctx context.Context) {
	if a.sessions != nil {
		if err := a.sessions.Persist(ctx); err != nil {
			a.logger.Warn("Failed to persist session", zap.Error(err))
		}
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	_ = a.logger.Sync()
}
