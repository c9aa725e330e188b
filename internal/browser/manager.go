package browser

import (
	"context"
	_ "embed"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/browser"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/rpcc"

	adapter "xhsrelay/internal/adapter/cdp"
	"xhsrelay/internal/config"
	"xhsrelay/internal/logger"
	"xhsrelay/internal/relay"
	"xhsrelay/internal/rules"
	"xhsrelay/pkg/model"
	"xhsrelay/pkg/traffic"
)

//go:embed relay.js
var relayScript string

const windowTimeout = 5 * time.Second

// Manager 浏览器会话管理：懒创建页面、注入调用脚本、按页面状态显示或隐藏窗口
type Manager struct {
	cfg     config.BrowserConfig
	apiBase string
	rules   *rules.Engine
	log     logger.Logger

	mu      sync.Mutex
	cur     *pageSession
	cmd     *exec.Cmd
	visible bool
	pending bool
	lastURL string
}

// New 创建会话管理器，不会立即连接浏览器
func New(cfg config.BrowserConfig, apiBase string, engine *rules.Engine, l logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	return &Manager{cfg: cfg, apiBase: apiBase, rules: engine, log: l.With("component", "browser")}
}

// Session 返回存活的页面会话，页面被关闭后在同一用户目录中重新打开
func (m *Manager) Session(ctx context.Context) (relay.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cur != nil {
		if m.cur.alive() {
			return m.cur, nil
		}
		m.log.Warn("页面已关闭，重新打开", "url", m.lastURL)
		m.cur = nil
		m.visible = false
	}

	s, err := m.open(ctx)
	if err != nil {
		return nil, err
	}
	m.cur = s
	return s, nil
}

func (m *Manager) open(ctx context.Context) (*pageSession, error) {
	if !reachable(ctx, m.cfg.DevToolsURL) {
		if m.cfg.ExecPath == "" {
			return nil, fmt.Errorf("%w: %s", ErrEndpointUnavailable, m.cfg.DevToolsURL)
		}
		cmd, err := launch(ctx, m.cfg, m.log)
		if err != nil {
			return nil, err
		}
		m.cmd = cmd
	}

	dt := devtool.New(m.cfg.DevToolsURL)
	target, err := dt.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("create page target: %w", err)
	}
	// 连接生命周期独立于单次调用
	conn, err := rpcc.DialContext(context.Background(), target.WebSocketDebuggerURL)
	if err != nil {
		m.release(dt, target, nil)
		return nil, fmt.Errorf("dial page target: %w", err)
	}

	s := &pageSession{
		id:      target.ID,
		conn:    conn,
		client:  cdp.NewClient(conn),
		apiBase: m.apiBase,
		log:     m.log.With("target", target.ID),
	}
	if err := s.client.Page.Enable(ctx); err != nil {
		m.release(dt, target, conn)
		return nil, fmt.Errorf("enable page domain: %w", err)
	}
	if _, err := s.client.Page.AddScriptToEvaluateOnNewDocument(ctx,
		page.NewAddScriptToEvaluateOnNewDocumentArgs(relayScript)); err != nil {
		// 后续调用会因入口缺失而失败
		s.log.Err(err, "注入调用脚本失败")
	}

	if err := m.startObserver(s); err != nil {
		m.release(dt, target, conn)
		return nil, err
	}

	if _, err := s.client.Page.Navigate(ctx, page.NewNavigateArgs(m.cfg.HomeURL)); err != nil {
		m.release(dt, target, conn)
		return nil, fmt.Errorf("navigate home: %w", err)
	}
	if err := s.setWindow(ctx, browser.WindowStateMinimized); err != nil {
		s.log.Debug("隐藏窗口失败", "error", err)
	}
	m.visible = false
	m.lastURL = m.cfg.HomeURL
	m.log.Info("页面会话已就绪", "target", target.ID, "home", m.cfg.HomeURL)
	return s, nil
}

// release 会话建立失败时关闭连接与页面
func (m *Manager) release(dt *devtool.DevTools, target *devtool.Target, conn *rpcc.Conn) {
	if conn != nil {
		_ = conn.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), windowTimeout)
	defer cancel()
	if err := dt.Close(ctx, target); err != nil {
		m.log.Debug("关闭页面失败", "target", target.ID, "error", err)
	}
}

// startObserver 监听主框架跳转：进入登录/验证页时显示窗口，离开后隐藏
func (m *Manager) startObserver(s *pageSession) error {
	nav, err := s.client.Page.FrameNavigated(s.conn.Context())
	if err != nil {
		return fmt.Errorf("subscribe frame navigated: %w", err)
	}
	go func() {
		defer nav.Close()
		for {
			ev, err := nav.Recv()
			if err != nil {
				return
			}
			if ev.Frame.ParentID != nil {
				continue
			}
			m.onNavigated(s, ev.Frame.URL)
		}
	}()
	return nil
}

func (m *Manager) onNavigated(s *pageSession, u string) {
	want := needsHuman(m.rules, u)

	m.mu.Lock()
	m.lastURL = u
	m.pending = want
	changed := want != m.visible
	m.mu.Unlock()

	if !changed {
		return
	}
	ctx, cancel := context.WithTimeout(s.conn.Context(), windowTimeout)
	defer cancel()
	if want {
		m.log.Warn("需要人工登录或验证，显示浏览器窗口", "url", u)
		if err := m.show(ctx, s); err != nil {
			m.log.Err(err, "显示窗口失败")
			return
		}
	} else {
		m.log.Info("验证已完成，隐藏浏览器窗口", "url", u)
		if err := s.setWindow(ctx, browser.WindowStateMinimized); err != nil {
			m.log.Err(err, "隐藏窗口失败")
			return
		}
	}
	m.mu.Lock()
	m.visible = want
	m.mu.Unlock()
}

func (m *Manager) show(ctx context.Context, s *pageSession) error {
	if err := s.setWindow(ctx, browser.WindowStateNormal); err != nil {
		return err
	}
	return s.client.Page.BringToFront(ctx)
}

// Show 显示浏览器窗口，供调用桥在等待验证时使用
func (m *Manager) Show(ctx context.Context) error {
	m.mu.Lock()
	s := m.cur
	m.mu.Unlock()
	if s == nil || !s.alive() {
		return nil
	}
	if err := m.show(ctx, s); err != nil {
		return err
	}
	m.mu.Lock()
	m.visible = true
	m.mu.Unlock()
	return nil
}

// Status 浏览器会话状态，调用桥状态由上层填充
func (m *Manager) Status() model.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return model.SessionStatus{
		Alive:               m.cur != nil && m.cur.alive(),
		URL:                 m.lastURL,
		Visible:             m.visible,
		PendingVerification: m.pending,
	}
}

// Close 关闭页面连接；由本进程启动的浏览器一并退出
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.cur != nil {
		err = m.cur.conn.Close()
		m.cur = nil
	}
	if m.cmd != nil && m.cmd.Process != nil {
		_ = m.cmd.Process.Kill()
		_ = m.cmd.Wait()
		m.cmd = nil
	}
	return err
}

func needsHuman(engine *rules.Engine, u string) bool {
	if engine == nil {
		return false
	}
	return engine.ClassifyURL(u).RequiresHuman()
}

// pageSession 一个已注入调用脚本的页面
type pageSession struct {
	id      string
	conn    *rpcc.Conn
	client  *cdp.Client
	apiBase string
	log     logger.Logger
}

func (s *pageSession) alive() bool {
	select {
	case <-s.conn.Context().Done():
		return false
	default:
		return true
	}
}

// Location 当前页面地址
func (s *pageSession) Location(ctx context.Context) (string, error) {
	reply, err := s.client.Runtime.Evaluate(ctx, adapter.EvaluateArgs("location.href"))
	if err != nil {
		return "", err
	}
	return adapter.ToString(reply)
}

// Do 在页面上下文内以当前登录态执行一次接口调用
func (s *pageSession) Do(ctx context.Context, req traffic.Request) (*traffic.Response, error) {
	expr, err := adapter.RelayExpression(req, s.apiBase)
	if err != nil {
		return nil, err
	}
	reply, err := s.client.Runtime.Evaluate(ctx, adapter.EvaluateArgs(expr))
	if err != nil {
		return nil, err
	}
	return adapter.ToResponse(reply)
}

func (s *pageSession) setWindow(ctx context.Context, state browser.WindowState) error {
	win, err := s.client.Browser.GetWindowForTarget(ctx, browser.NewGetWindowForTargetArgs())
	if err != nil {
		return err
	}
	return s.client.Browser.SetWindowBounds(ctx, browser.NewSetWindowBoundsArgs(win.WindowID, browser.Bounds{WindowState: state}))
}
