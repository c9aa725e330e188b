package relay

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"xhsrelay/internal/clock"
	"xhsrelay/internal/ctxkeys"
	"xhsrelay/internal/logger"
	"xhsrelay/internal/rules"
	"xhsrelay/pkg/model"
	"xhsrelay/pkg/traffic"
)

// Session 已登录的浏览器上下文
type Session interface {
	// Location 当前页面地址
	Location(ctx context.Context) (string, error)
	// Do 在浏览器上下文内执行一次接口调用
	Do(ctx context.Context, req traffic.Request) (*traffic.Response, error)
}

// SessionProvider 提供（必要时创建）浏览器会话
type SessionProvider interface {
	Session(ctx context.Context) (Session, error)
}

// Caller 远程调用接口，分页器与工具只依赖此接口
type Caller interface {
	Call(ctx context.Context, req traffic.Request) (*Result, error)
}

// Options 调用桥参数
type Options struct {
	VerifyWait          time.Duration // 等待人工验证的轮询间隔
	RateLimitBase       time.Duration // 首次限流等待
	RateLimitStep       time.Duration // 每次重试追加的等待
	MaxRateLimitRetries int           // 超过后放弃
	MinInterval         time.Duration // 两次调用的最小间隔，0 表示不限制
	CallTimeout         time.Duration // 单次浏览器内执行超时
	Clock               clock.Clock
	OnVerification      func(url string)
}

// DefaultOptions 默认参数：验证 3s 轮询，限流等待 (2+重试次数) 秒，最多重试 3 次
func DefaultOptions() Options {
	return Options{
		VerifyWait:          3 * time.Second,
		RateLimitBase:       2 * time.Second,
		RateLimitStep:       time.Second,
		MaxRateLimitRetries: 3,
		CallTimeout:         30 * time.Second,
		Clock:               clock.Real{},
	}
}

// locationRetries 连续读取页面地址失败的容忍次数
const locationRetries = 3

// Bridge 远程调用桥，所有调用经 FIFO 信号量串行进入同一个浏览器上下文
type Bridge struct {
	provider SessionProvider
	rules    *rules.Engine
	opts     Options
	sem      *semaphore.Weighted
	limiter  *rate.Limiter
	log      logger.Logger

	mu    sync.Mutex
	state model.BridgeState
	stats model.BridgeStats
}

// New 创建调用桥
func New(provider SessionProvider, engine *rules.Engine, opts Options, l logger.Logger) *Bridge {
	if l == nil {
		l = logger.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.VerifyWait <= 0 {
		opts.VerifyWait = 3 * time.Second
	}
	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}
	return &Bridge{
		provider: provider,
		rules:    engine,
		opts:     opts,
		sem:      semaphore.NewWeighted(1),
		limiter:  rate.NewLimiter(limit, 1),
		log:      l,
		state:    model.StateIdle,
	}
}

// Call 执行一次远程调用。
// 页面处于登录/验证码时无限等待人工处理，重试计数不变；
// 响应命中限流标记时等待后重试，超过 MaxRateLimitRetries 返回 ErrTransport。
func (b *Bridge) Call(ctx context.Context, req traffic.Request) (*Result, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer b.sem.Release(1)

	l := b.log.With("traceId", ctxkeys.TraceID(ctx), "method", req.Method, "path", req.Path)
	b.begin()

	retry := 0
	attempts := 0
	locFailures := 0
	awaiting := false
	for {
		if err := ctx.Err(); err != nil {
			return nil, b.fail(err)
		}

		sess, err := b.provider.Session(ctx)
		if err != nil {
			return nil, b.fail(&CallError{Path: req.Path, Attempts: attempts, Err: fmt.Errorf("%w: %v", ErrTransport, err)})
		}

		loc, err := sess.Location(ctx)
		if err != nil {
			// 页面跳转期间执行上下文会被销毁，稍后再读
			if locFailures >= locationRetries {
				return nil, b.fail(&CallError{Path: req.Path, Attempts: attempts, Err: fmt.Errorf("%w: read location: %v", ErrTransport, err)})
			}
			locFailures++
			l.Debug("读取页面地址失败，稍后重试", "failures", locFailures, "error", err)
			if err := b.opts.Clock.Sleep(ctx, b.opts.VerifyWait); err != nil {
				return nil, b.fail(err)
			}
			continue
		}
		locFailures = 0
		if kind := b.rules.ClassifyURL(loc); kind.RequiresHuman() {
			b.setState(model.StateAwaitingVerification)
			b.count(func(s *model.BridgeStats) { s.VerificationWaits++ })
			if !awaiting {
				awaiting = true
				l.Warn("需要人工完成登录或验证", "kind", kind, "url", loc)
				if b.opts.OnVerification != nil {
					b.opts.OnVerification(loc)
				}
			} else {
				l.Debug("仍在等待人工验证", "url", loc)
			}
			if err := b.opts.Clock.Sleep(ctx, b.opts.VerifyWait); err != nil {
				return nil, b.fail(err)
			}
			continue
		}
		if awaiting {
			awaiting = false
			l.Info("人工验证已完成，继续调用")
		}

		b.setState(model.StateCalling)
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, b.fail(err)
		}
		attempts++
		resp, err := b.do(ctx, sess, req)
		if err != nil {
			return nil, b.fail(&CallError{Path: req.Path, Attempts: attempts, Err: fmt.Errorf("%w: %v", ErrTransport, err)})
		}

		if b.rules.ClassifyResponse(resp.Body) == rules.KindRateLimit {
			if retry > b.opts.MaxRateLimitRetries {
				l.Warn("限流重试次数耗尽", "retries", retry)
				return nil, b.fail(&CallError{
					Path:     req.Path,
					Attempts: attempts,
					Err:      fmt.Errorf("%w: %w", ErrTransport, ErrRateLimited),
					Msg:      "rate limit retries exhausted",
				})
			}
			wait := b.opts.RateLimitBase + time.Duration(retry)*b.opts.RateLimitStep
			l.Warn("触发站点限流，等待后重试", "retry", retry, "wait", wait)
			b.setState(model.StateBackoff)
			b.count(func(s *model.BridgeStats) { s.RateLimitRetries++ })
			if err := b.opts.Clock.Sleep(ctx, wait); err != nil {
				return nil, b.fail(err)
			}
			retry++
			continue
		}

		res, err := b.parse(req, resp, attempts)
		if err != nil {
			return nil, b.fail(err)
		}
		b.setState(model.StateSucceeded)
		b.count(func(s *model.BridgeStats) { s.Succeeded++ })
		l.Debug("远程调用成功", "attempts", attempts, "bytes", len(res.Raw))
		return res, nil
	}
}

func (b *Bridge) do(ctx context.Context, sess Session, req traffic.Request) (*traffic.Response, error) {
	if b.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.CallTimeout)
		defer cancel()
	}
	return sess.Do(ctx, req)
}

// parse 校验响应：必须是 JSON；success=false 视为站点错误
func (b *Bridge) parse(req traffic.Request, resp *traffic.Response, attempts int) (*Result, error) {
	if !gjson.ValidBytes(resp.Body) {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &CallError{Path: req.Path, Attempts: attempts, Err: fmt.Errorf("%w: http status %d", ErrTransport, resp.StatusCode)}
		}
		return nil, &CallError{Path: req.Path, Attempts: attempts, Err: ErrMalformedResponse}
	}
	if s := gjson.GetBytes(resp.Body, "success"); s.Exists() && !s.Bool() {
		return nil, &CallError{
			Path:     req.Path,
			Attempts: attempts,
			Code:     int(gjson.GetBytes(resp.Body, "code").Int()),
			Msg:      gjson.GetBytes(resp.Body, "msg").String(),
			Err:      ErrAPI,
		}
	}
	return &Result{Path: req.Path, Raw: resp.Body}, nil
}

func (b *Bridge) begin() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = model.StateIdle
	b.stats.Calls++
}

func (b *Bridge) fail(err error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = model.StateFailed
	b.stats.Failed++
	return err
}

func (b *Bridge) setState(s model.BridgeState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s
}

func (b *Bridge) count(fn func(*model.BridgeStats)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.stats)
}

// State 当前状态
func (b *Bridge) State() model.BridgeState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats 调用统计
func (b *Bridge) Stats() model.BridgeStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}
