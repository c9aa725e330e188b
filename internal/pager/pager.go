package pager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"xhsrelay/internal/clock"
	"xhsrelay/internal/ctxkeys"
	"xhsrelay/internal/logger"
	"xhsrelay/internal/relay"
	"xhsrelay/pkg/traffic"
)

// All 拉取全部分页直到站点没有更多
const All = -1

var (
	// ErrInvalidCount 数量只能是 -1 或非负数
	ErrInvalidCount = errors.New("invalid count")
	// ErrIncomplete 分页中途失败，返回的是已拉取的部分结果
	ErrIncomplete = errors.New("pagination incomplete")
	// ErrEmptyPage 站点返回空页但声称还有更多，ParseFunc 可返回以触发单页重试
	ErrEmptyPage = errors.New("empty page")
)

// Page 单页解析结果
type Page[T any] struct {
	Items   []T
	Cursor  string
	HasMore bool
}

// BuildFunc 根据游标与页码（从 1 开始）构造请求；首页游标为空串
type BuildFunc func(cursor string, page int) traffic.Request

// ParseFunc 解析单页响应
type ParseFunc[T any] func(res *relay.Result) (Page[T], error)

// Options 分页参数
type Options struct {
	Want        int           // 需要的条数，-1 表示全部
	PageDelay   time.Duration // 两次成功拉取之间的固定间隔
	MaxAttempts int           // 单页遇到空/异常响应时的最大尝试次数
	BackoffBase time.Duration // 单页重试退避基数，按 2 的幂增长
	MaxPages    int           // 0 表示不限制
	CursorPaged bool          // 以游标翻页；声称还有更多但游标未前进时停止
	Clock       clock.Clock
	Log         logger.Logger
}

// Validate 校验数量参数
func Validate(want int) error {
	if want < All {
		return fmt.Errorf("%w: %d", ErrInvalidCount, want)
	}
	return nil
}

// Fetch 按游标分页拉取。
// 远程调用失败视为终止，返回已收集的条目和包装了 ErrIncomplete 的错误；
// 空页或解析失败按指数退避重试，耗尽后同样带着已收集的条目结束。
func Fetch[T any](ctx context.Context, caller relay.Caller, opts Options, build BuildFunc, parse ParseFunc[T]) ([]T, error) {
	if err := Validate(opts.Want); err != nil {
		return nil, err
	}
	if opts.Want == 0 {
		return []T{}, nil
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	l := opts.Log
	if l == nil {
		l = logger.NewNop()
	}
	l = l.With("traceId", ctxkeys.TraceID(ctx))

	collected := make([]T, 0)
	cursor := ""
	for page := 1; ; page++ {
		if opts.MaxPages > 0 && page > opts.MaxPages {
			l.Info("达到最大页数限制", "pages", opts.MaxPages, "items", len(collected))
			return collected, nil
		}

		p, err := fetchPage(ctx, caller, opts, l, build(cursor, page), parse)
		if err != nil {
			l.Warn("分页拉取中断，返回已收集结果", "page", page, "items", len(collected), "error", err)
			return collected, fmt.Errorf("%w after %d items: %w", ErrIncomplete, len(collected), err)
		}

		collected = append(collected, p.Items...)
		if opts.Want != All && len(collected) >= opts.Want {
			return collected[:opts.Want], nil
		}
		if !p.HasMore {
			return collected, nil
		}
		if opts.CursorPaged && p.Cursor == cursor {
			l.Warn("游标未前进，停止分页", "page", page, "cursor", cursor, "items", len(collected))
			return collected, nil
		}
		cursor = p.Cursor

		l.Debug("分页拉取完成，等待下一页", "page", page, "items", len(collected))
		if err := opts.Clock.Sleep(ctx, opts.PageDelay); err != nil {
			return collected, fmt.Errorf("%w after %d items: %w", ErrIncomplete, len(collected), err)
		}
	}
}

// fetchPage 拉取单页；解析失败（含 ErrEmptyPage）或异常响应按指数退避重试
func fetchPage[T any](ctx context.Context, caller relay.Caller, opts Options, l logger.Logger, req traffic.Request, parse ParseFunc[T]) (Page[T], error) {
	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := opts.BackoffBase << (attempt - 2)
			l.Debug("单页重试", "attempt", attempt, "wait", wait, "error", lastErr)
			if err := opts.Clock.Sleep(ctx, wait); err != nil {
				return Page[T]{}, err
			}
		}

		res, err := caller.Call(ctx, req)
		if err != nil {
			if !relay.IsTransient(err) {
				return Page[T]{}, err
			}
			lastErr = err
			continue
		}
		p, err := parse(res)
		if err != nil {
			lastErr = err
			continue
		}
		return p, nil
	}
	return Page[T]{}, fmt.Errorf("page retries exhausted: %w", lastErr)
}
