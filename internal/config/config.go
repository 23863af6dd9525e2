package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"taskmanager/pkg/circuitbreaker"
	pkgconfig "taskmanager/pkg/config"
	"taskmanager/pkg/logger"
)

// 会话存储类型
const (
	SessionStoreFile  = "file"
	SessionStoreRedis = "redis"
)

type CircuitBreakerConfig struct {
	Enabled               bool `yaml:"enabled"`
	circuitbreaker.Config `yaml:",inline"`
}

type APIConfig struct {
	BaseURL        string               `yaml:"base_url"`
	Timeout        time.Duration        `yaml:"timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

type SessionConfig struct {
	Store   string        `yaml:"store"` // file 或 redis
	Path    string        `yaml:"path"`  // file 存储的路径，为空时使用 $HOME/.taskmanager/session.json
	Profile string        `yaml:"profile"`
	Secret  string        `yaml:"secret"`
	TTL     time.Duration `yaml:"ttl"`
}

type DisplayConfig struct {
	DateLayout string `yaml:"date_layout"`
}

type EventsConfig struct {
	pkgconfig.MQConfig `yaml:",inline"`
	PublishTimeout     time.Duration `yaml:"publish_timeout"`
}

type Config struct {
	API     APIConfig              `yaml:"api"`
	Session SessionConfig          `yaml:"session"`
	Redis   pkgconfig.RedisConfig  `yaml:"redis"`
	Events  EventsConfig           `yaml:"events"`
	Server  pkgconfig.ServerConfig `yaml:"server"`
	Log     logger.Config          `yaml:"log"`
	Display DisplayConfig          `yaml:"display"`
}

// defaultSessionSecret 仅用于本地开发，生产环境应通过 SESSION_SECRET 覆盖
const defaultSessionSecret = "taskmanager-local-session-secret"

// Default 返回本地开发默认值
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000/api/",
			Timeout: 10 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled: false,
				Config:  circuitbreaker.DefaultConfig(),
			},
		},
		Session: SessionConfig{
			Store:   SessionStoreFile,
			Profile: "default",
			Secret:  defaultSessionSecret,
			TTL:     14 * 24 * time.Hour,
		},
		Redis: pkgconfig.RedisConfig{
			Addr: "localhost:6379",
		},
		Events: EventsConfig{
			PublishTimeout: 2 * time.Second,
		},
		Server: pkgconfig.ServerConfig{
			Port: ":8080",
		},
		Log: logger.Config{
			Level: "info",
		},
		Display: DisplayConfig{
			DateLayout: "1/2/2006",
		},
	}
}

// Load 加载配置：默认值 → configDir 下的 base.yaml/<env>.yaml/secrets.env → 环境变量。
// configDir 下没有 base.yaml 时只使用默认值和环境变量。
func Load(env, configDir string) (*Config, error) {
	cfg := Default()

	raw, err := pkgconfig.LoadConfig(env, configDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := pkgconfig.Decode(raw, &cfg); err != nil {
			return nil, err
		}
	}

	if err := overrideFromEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UsesDefaultSecret 是否还在使用开发用的默认密钥
func (c *Config) UsesDefaultSecret() bool {
	return c.Session.Secret == defaultSessionSecret
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	switch c.Session.Store {
	case SessionStoreFile, SessionStoreRedis:
	default:
		return fmt.Errorf("unknown session store %q (want %q or %q)", c.Session.Store, SessionStoreFile, SessionStoreRedis)
	}
	if c.Session.Secret == "" {
		return errors.New("session.secret is required")
	}
	return nil
}

func overrideFromEnv(cfg *Config) error {
	if url := os.Getenv("TASKMANAGER_API_URL"); url != "" {
		cfg.API.BaseURL = url
	}
	if timeout := os.Getenv("TASKMANAGER_API_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid TASKMANAGER_API_TIMEOUT: %w", err)
		}
		cfg.API.Timeout = d
	}
	if store := os.Getenv("SESSION_STORE"); store != "" {
		cfg.Session.Store = store
	}
	if path := os.Getenv("SESSION_PATH"); path != "" {
		cfg.Session.Path = path
	}
	if secret := os.Getenv("SESSION_SECRET"); secret != "" {
		cfg.Session.Secret = secret
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	pkgconfig.OverrideRedisFromEnv(&cfg.Redis)
	pkgconfig.OverrideMQFromEnv(&cfg.Events.MQConfig)
	pkgconfig.OverrideServerFromEnv(&cfg.Server)
	return nil
}
