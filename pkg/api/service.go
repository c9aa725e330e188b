package api

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"xhsrelay/internal/config"
	"xhsrelay/internal/logger"
	"xhsrelay/internal/service"
	"xhsrelay/internal/storage"
	"xhsrelay/pkg/model"
	"xhsrelay/pkg/traffic"
)

// Service 服务接口
type Service interface {
	// Status 浏览器会话与调用桥状态
	Status() model.SessionStatus

	// Call 经调用桥执行一次原始接口请求
	Call(ctx context.Context, req traffic.Request) ([]byte, error)

	// Settings 完整设置内容（JSON）
	Settings() []byte

	// GetSetting 读取设置项
	GetSetting(key string) (string, bool)

	// SetSetting 写入设置项
	SetSetting(key string, value any) error

	// RecentCalls 最近的工具调用历史
	RecentCalls(ctx context.Context, tool string, limit int) ([]storage.ToolCall, error)

	// RegisterTools 将工具注册到 MCP 服务
	RegisterTools(server *mcp.Server)

	// Close 释放资源
	Close() error
}

// NewService 创建并返回服务接口实现
func NewService(cfg *config.Config, l logger.Logger) (Service, error) {
	s, err := service.New(cfg, l)
	if err != nil {
		return nil, err
	}
	return s, nil
}
