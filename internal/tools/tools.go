package tools

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"math/rand/v2"
	"time"
	"unicode/utf8"

	"xhsrelay/internal/ctxkeys"
	"xhsrelay/internal/export"
	"xhsrelay/internal/logger"
	"xhsrelay/internal/pager"
	"xhsrelay/internal/relay"
	"xhsrelay/internal/storage"
	"xhsrelay/pkg/model"
)

// Reply 工具返回文本：CSV 或 JSON
type Reply struct {
	Text    string
	IsError bool
}

// SettingsStore 导出目录的读写
type SettingsStore interface {
	ExportDir() string
	SetExportDir(dir string) error
}

// Recorder 调用历史
type Recorder interface {
	RecordCall(ctx context.Context, c storage.ToolCall)
	RecordExport(ctx context.Context, e storage.Export)
}

// Deps 工具依赖
type Deps struct {
	Caller   relay.Caller
	Pager    pager.Options // Want 由每次调用覆盖
	Exporter *export.Writer
	Settings SettingsStore
	History  Recorder
	Status   func() model.SessionStatus
	Log      logger.Logger
}

// Handlers 全部工具实现，与 MCP 框架无关
type Handlers struct {
	d           Deps
	log         logger.Logger
	newSearchID func() string
}

// New 创建工具集合
func New(d Deps) *Handlers {
	l := d.Log
	if l == nil {
		l = logger.NewNop()
	}
	return &Handlers{d: d, log: l.With("component", "tools"), newSearchID: searchID}
}

const (
	statusOK      = "ok"
	statusPartial = "partial"
	statusError   = "error"
	statusInvalid = "invalid"

	logInputLimit  = 100
	logOutputLimit = 200
)

// outcome 一次工具执行的结果与历史记录信息
type outcome struct {
	reply  Reply
	status string
	items  int
	err    error
}

func done(text string, items int) outcome {
	return outcome{reply: Reply{Text: text}, status: statusOK, items: items}
}

func failed(err error) outcome {
	status := statusError
	if errors.Is(err, ErrInvalidInput) {
		status = statusInvalid
	}
	return outcome{reply: errorReply(err), status: status, err: err}
}

// invoke 统一处理追踪 ID、输入输出日志与调用历史
func (h *Handlers) invoke(ctx context.Context, tool string, params any, run func(ctx context.Context) outcome) Reply {
	ctx, traceID := ctxkeys.WithTraceID(ctx)
	l := h.log.With("traceId", traceID, "tool", tool)

	input := "{}"
	if params != nil {
		if b, err := json.Marshal(params); err == nil {
			input = string(b)
		}
	}
	l.Info("工具调用开始", "input", truncate(input, logInputLimit))

	start := time.Now()
	out := run(ctx)
	elapsed := time.Since(start)

	if out.err != nil {
		l.Warn("工具调用失败", "status", out.status, "error", out.err)
	}
	l.Info("工具调用结束", "status", out.status, "items", out.items, "elapsed", elapsed.String(), "output", truncate(out.reply.Text, logOutputLimit))

	if h.d.History != nil {
		call := storage.ToolCall{
			TraceID:    traceID,
			Tool:       tool,
			Params:     input,
			Status:     out.status,
			Items:      out.items,
			DurationMS: elapsed.Milliseconds(),
			CreatedAt:  start,
		}
		if out.err != nil {
			call.Error = out.err.Error()
		}
		h.d.History.RecordCall(ctx, call)
	}
	return out.reply
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// searchID 搜索会话 ID：毫秒时间戳左移 64 位加随机数，36 进制
func searchID() string {
	v := new(big.Int).Lsh(big.NewInt(time.Now().UnixMilli()), 64)
	v.Add(v, big.NewInt(rand.Int64N(1<<62)))
	return v.Text(36)
}
