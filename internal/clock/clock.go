package clock

import (
	"context"
	"time"
)

// Clock 可中断的等待，测试中替换为模拟时钟
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Real 基于 time.Timer 的实际时钟
type Real struct{}

// Sleep 等待 d 或直到 ctx 取消
func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
