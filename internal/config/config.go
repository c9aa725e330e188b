package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	Sqlite struct {
		Dsn    string `yaml:"dsn"`
		Prefix string `yaml:"prefix"`
	} `yaml:"sqlite"`

	Log struct {
		Level      string   `yaml:"level"`
		Writer     []string `yaml:"writer"`
		File       string   `yaml:"file"`
		MaxSizeMB  int      `yaml:"max_size_mb"`
		MaxBackups int      `yaml:"max_backups"`
		MaxAgeDays int      `yaml:"max_age_days"`
	} `yaml:"log"`

	Browser  BrowserConfig  `yaml:"browser"`
	Relay    RelayConfig    `yaml:"relay"`
	Pager    PagerConfig    `yaml:"pager"`
	Settings SettingsConfig `yaml:"settings"`
}

// BrowserConfig 浏览器会话配置
type BrowserConfig struct {
	DevToolsURL   string        `yaml:"devtools_url"`
	HomeURL       string        `yaml:"home_url"`
	ExecPath      string        `yaml:"exec_path"`   // 为空时只连接已启动的浏览器
	ProfileDir    string        `yaml:"profile_dir"` // 持久化登录态的用户目录
	LaunchTimeout time.Duration `yaml:"launch_timeout"`
}

// RelayConfig 远程调用桥配置
type RelayConfig struct {
	APIBase             string        `yaml:"api_base"`
	VerifyWait          time.Duration `yaml:"verify_wait"`
	MaxRateLimitRetries int           `yaml:"max_rate_limit_retries"`
	RateLimitBase       time.Duration `yaml:"rate_limit_base"`
	MinInterval         time.Duration `yaml:"min_interval"`
	CallTimeout         time.Duration `yaml:"call_timeout"`
	Patterns            []Pattern     `yaml:"patterns"`
}

// Pattern 页面/响应识别规则，为空时使用内置规则
type Pattern struct {
	Kind string `yaml:"kind"` // verification / login / rate_limit
	On   string `yaml:"on"`   // url / body / code
	Mode string `yaml:"mode"` // regex / contains / prefix / exact
	Expr string `yaml:"expr"`
}

// PagerConfig 分页拉取配置
type PagerConfig struct {
	PageDelay   time.Duration `yaml:"page_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
	BackoffBase time.Duration `yaml:"backoff_base"`
	MaxPages    int           `yaml:"max_pages"`
}

// SettingsConfig 本地设置文件配置
type SettingsConfig struct {
	Path string `yaml:"path"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	dataDir := defaultDataDir()
	c := &Config{Version: "1.0.0"}
	c.Sqlite.Dsn = filepath.Join(dataDir, "history.sqlite3")
	c.Sqlite.Prefix = "xhsrelay_"
	c.Log.Level = "info"
	c.Log.Writer = []string{"console", "file"}
	c.Log.File = filepath.Join(dataDir, "logs", "xhsrelay.log")
	c.Log.MaxSizeMB = 20
	c.Log.MaxBackups = 5
	c.Log.MaxAgeDays = 14
	c.Browser = BrowserConfig{
		DevToolsURL:   "http://127.0.0.1:9222",
		HomeURL:       "https://www.xiaohongshu.com/explore",
		ProfileDir:    filepath.Join(dataDir, "profile"),
		LaunchTimeout: 20 * time.Second,
	}
	c.Relay = RelayConfig{
		APIBase:             "https://edith.xiaohongshu.com",
		VerifyWait:          3 * time.Second,
		MaxRateLimitRetries: 3,
		RateLimitBase:       2 * time.Second,
		MinInterval:         300 * time.Millisecond,
		CallTimeout:         30 * time.Second,
	}
	c.Pager = PagerConfig{
		PageDelay:   2 * time.Second,
		MaxAttempts: 3,
		BackoffBase: time.Second,
	}
	c.Settings.Path = filepath.Join(dataDir, "settings.json")
	return c
}

// Load 读取 yaml 配置文件，未指定或文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	c := NewConfig()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, c.Validate()
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	if c.Browser.DevToolsURL == "" && c.Browser.ExecPath == "" {
		return errors.New("browser.devtools_url or browser.exec_path is required")
	}
	if c.Browser.HomeURL == "" {
		return errors.New("browser.home_url is required")
	}
	if c.Relay.APIBase == "" {
		return errors.New("relay.api_base is required")
	}
	if c.Relay.MaxRateLimitRetries < 0 {
		return errors.New("relay.max_rate_limit_retries must be >= 0")
	}
	if c.Relay.VerifyWait <= 0 {
		return errors.New("relay.verify_wait must be > 0")
	}
	if c.Pager.MaxAttempts < 1 {
		return errors.New("pager.max_attempts must be >= 1")
	}
	for i, p := range c.Relay.Patterns {
		switch p.Kind {
		case "verification", "login", "rate_limit":
		default:
			return fmt.Errorf("relay.patterns[%d]: unknown kind %q", i, p.Kind)
		}
		if p.Expr == "" {
			return fmt.Errorf("relay.patterns[%d]: expr is required", i)
		}
	}
	return nil
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "xhsrelay")
	}
	return ".xhsrelay"
}
