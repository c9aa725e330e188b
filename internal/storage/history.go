package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"xhsrelay/internal/ctxkeys"
	"xhsrelay/internal/logger"
)

// ToolCall 一次工具调用记录
type ToolCall struct {
	ID         string `gorm:"primaryKey;size:36"`
	TraceID    string `gorm:"size:36;index"`
	Tool       string `gorm:"size:64;index"`
	Params     string
	Status     string `gorm:"size:16"` // ok / partial / error / invalid
	Items      int
	Error      string
	DurationMS int64
	CreatedAt  time.Time `gorm:"index"`
}

// Export 一次导出记录
type Export struct {
	ID        string `gorm:"primaryKey;size:36"`
	TraceID   string `gorm:"size:36;index"`
	Tool      string `gorm:"size:64"`
	Path      string
	Rows      int
	CreatedAt time.Time
}

// History 调用与导出历史，保存在 sqlite
type History struct {
	db  *gorm.DB
	log logger.Logger
}

// OpenHistory 打开（必要时创建）历史库并迁移表结构
func OpenHistory(dsn, prefix string, l logger.Logger) (*History, error) {
	if l == nil {
		l = logger.NewNop()
	}
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         NewGormLogger(l),
		NamingStrategy: schema.NamingStrategy{TablePrefix: prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if err := db.AutoMigrate(&ToolCall{}, &Export{}); err != nil {
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return &History{db: db, log: l}, nil
}

// RecordCall 写入调用记录，失败只记日志
func (h *History) RecordCall(ctx context.Context, c ToolCall) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.TraceID == "" {
		c.TraceID = ctxkeys.TraceID(ctx)
	}
	if err := h.db.WithContext(ctx).Create(&c).Error; err != nil {
		h.log.Err(err, "写入调用记录失败", "tool", c.Tool)
	}
}

// RecordExport 写入导出记录
func (h *History) RecordExport(ctx context.Context, e Export) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.TraceID == "" {
		e.TraceID = ctxkeys.TraceID(ctx)
	}
	if err := h.db.WithContext(ctx).Create(&e).Error; err != nil {
		h.log.Err(err, "写入导出记录失败", "path", e.Path)
	}
}

// RecentCalls 最近的调用记录，按时间倒序
func (h *History) RecentCalls(ctx context.Context, tool string, limit int) ([]ToolCall, error) {
	if limit <= 0 {
		limit = 20
	}
	q := h.db.WithContext(ctx).Order("created_at desc").Limit(limit)
	if tool != "" {
		q = q.Where("tool = ?", tool)
	}
	var out []ToolCall
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// RecentExports 最近的导出记录
func (h *History) RecentExports(ctx context.Context, limit int) ([]Export, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []Export
	err := h.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&out).Error
	return out, err
}

// Close 关闭数据库连接
func (h *History) Close() error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
