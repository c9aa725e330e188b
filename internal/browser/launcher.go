package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"time"

	"github.com/mafredri/cdp/devtool"

	"xhsrelay/internal/config"
	"xhsrelay/internal/logger"
)

// ErrEndpointUnavailable DevTools 端点不可达且无法启动浏览器
var ErrEndpointUnavailable = errors.New("devtools endpoint unavailable")

// launchArgs 启动参数：固定用户目录以保留登录态
func launchArgs(cfg config.BrowserConfig) ([]string, error) {
	u, err := url.Parse(cfg.DevToolsURL)
	if err != nil || u.Port() == "" {
		return nil, fmt.Errorf("devtools url %q must include a port", cfg.DevToolsURL)
	}
	args := []string{
		"--remote-debugging-port=" + u.Port(),
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-background-timer-throttling",
		"--disable-renderer-backgrounding",
	}
	if cfg.ProfileDir != "" {
		args = append(args, "--user-data-dir="+cfg.ProfileDir)
	}
	return append(args, "about:blank"), nil
}

// reachable 探测 DevTools 端点
func reachable(ctx context.Context, devtoolsURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := devtool.New(devtoolsURL).Version(ctx)
	return err == nil
}

// launch 启动浏览器并等待 DevTools 端点可用
func launch(ctx context.Context, cfg config.BrowserConfig, l logger.Logger) (*exec.Cmd, error) {
	args, err := launchArgs(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.ProfileDir != "" {
		if err := os.MkdirAll(cfg.ProfileDir, 0o755); err != nil {
			return nil, fmt.Errorf("create profile dir: %w", err)
		}
	}

	cmd := exec.Command(cfg.ExecPath, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	l.Info("浏览器已启动", "exec", cfg.ExecPath, "pid", cmd.Process.Pid, "profile", cfg.ProfileDir)

	timeout := cfg.LaunchTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		if reachable(ctx, cfg.DevToolsURL) {
			return cmd, nil
		}
		select {
		case <-ctx.Done():
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return nil, fmt.Errorf("%w: %s not ready after %s", ErrEndpointUnavailable, cfg.DevToolsURL, timeout)
		case <-ticker.C:
		}
	}
}
