package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"xhsrelay/internal/browser"
	"xhsrelay/internal/clock"
	"xhsrelay/internal/config"
	"xhsrelay/internal/export"
	"xhsrelay/internal/logger"
	"xhsrelay/internal/pager"
	"xhsrelay/internal/relay"
	"xhsrelay/internal/rules"
	"xhsrelay/internal/session"
	"xhsrelay/internal/storage"
	"xhsrelay/internal/tools"
	"xhsrelay/pkg/model"
	"xhsrelay/pkg/traffic"
)

// Service 组装浏览器会话、调用桥、工具与本地存储
type Service struct {
	browser  *browser.Manager
	bridge   *relay.Bridge
	settings *session.Store
	history  *storage.History
	tools    *tools.Handlers
	log      logger.Logger
}

// New 根据配置创建服务；浏览器在首次调用时才连接
func New(cfg *config.Config, l logger.Logger) (*Service, error) {
	if l == nil {
		l = logger.NewNop()
	}
	engine, err := rules.FromConfig(cfg.Relay.Patterns)
	if err != nil {
		return nil, fmt.Errorf("build rules: %w", err)
	}
	settings, err := session.Open(cfg.Settings.Path, l)
	if err != nil {
		return nil, err
	}
	history, err := storage.OpenHistory(cfg.Sqlite.Dsn, cfg.Sqlite.Prefix, l)
	if err != nil {
		return nil, err
	}

	mgr := browser.New(cfg.Browser, cfg.Relay.APIBase, engine, l)

	opts := relay.DefaultOptions()
	opts.VerifyWait = cfg.Relay.VerifyWait
	opts.MaxRateLimitRetries = cfg.Relay.MaxRateLimitRetries
	if cfg.Relay.RateLimitBase > 0 {
		opts.RateLimitBase = cfg.Relay.RateLimitBase
	}
	opts.MinInterval = cfg.Relay.MinInterval
	opts.CallTimeout = cfg.Relay.CallTimeout
	opts.OnVerification = func(u string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mgr.Show(ctx); err != nil {
			l.Err(err, "显示浏览器窗口失败", "url", u)
		}
	}
	bridge := relay.New(mgr, engine, opts, l.With("component", "relay"))

	s := &Service{
		browser:  mgr,
		bridge:   bridge,
		settings: settings,
		history:  history,
		log:      l,
	}
	s.tools = tools.New(tools.Deps{
		Caller: bridge,
		Pager: pager.Options{
			PageDelay:   cfg.Pager.PageDelay,
			MaxAttempts: cfg.Pager.MaxAttempts,
			BackoffBase: cfg.Pager.BackoffBase,
			MaxPages:    cfg.Pager.MaxPages,
			Clock:       clock.Real{},
		},
		Exporter: export.NewWriter(settings, l.With("component", "export")),
		Settings: settings,
		History:  history,
		Status:   s.Status,
		Log:      l,
	})
	l.Info("服务已创建", "devtools", cfg.Browser.DevToolsURL, "settings", settings.Path())
	return s, nil
}

// Status 浏览器会话与调用桥状态
func (s *Service) Status() model.SessionStatus {
	st := s.browser.Status()
	st.State = s.bridge.State()
	st.Stats = s.bridge.Stats()
	return st
}

// Call 直接通过调用桥发起一次请求，返回原始响应体
func (s *Service) Call(ctx context.Context, req traffic.Request) ([]byte, error) {
	res, err := s.bridge.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Raw, nil
}

// Settings 完整设置内容
func (s *Service) Settings() []byte { return s.settings.All() }

func (s *Service) GetSetting(key string) (string, bool) {
	v := s.settings.Get(key)
	return v.String(), v.Exists()
}

func (s *Service) SetSetting(key string, value any) error { return s.settings.Set(key, value) }

// RecentCalls 最近的工具调用
func (s *Service) RecentCalls(ctx context.Context, tool string, limit int) ([]storage.ToolCall, error) {
	return s.history.RecentCalls(ctx, tool, limit)
}

// RegisterTools 注册全部工具
func (s *Service) RegisterTools(server *mcp.Server) { s.tools.Register(server) }

// Close 释放浏览器连接与数据库
func (s *Service) Close() error {
	return errors.Join(s.browser.Close(), s.history.Close())
}
