package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"xhsrelay/internal/logger"
)

const (
	KeyIsTest    = "isTest"
	KeyExportDir = "exportDir"
)

var defaultContent = []byte(`{"isTest":false,"exportDir":""}`)

// Store 本地设置文件，单文件、后写者生效
type Store struct {
	mu   sync.RWMutex
	path string
	data []byte
	log  logger.Logger
}

// Open 打开设置文件，不存在时以默认内容创建
func Open(path string, l logger.Logger) (*Store, error) {
	if l == nil {
		l = logger.NewNop()
	}
	s := &Store{path: path, log: l}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.data = append([]byte(nil), defaultContent...)
		if err := s.flush(); err != nil {
			return nil, err
		}
		l.Info("创建默认设置文件", "path", path)
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	case !gjson.ValidBytes(data):
		l.Warn("设置文件损坏，使用默认内容", "path", path)
		s.data = append([]byte(nil), defaultContent...)
	default:
		s.data = data
	}
	return s, nil
}

// Get 读取设置项，key 为 gjson 路径
func (s *Store) Get(key string) gjson.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return gjson.GetBytes(s.data, key)
}

// Set 写入设置项并落盘
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := sjson.SetBytes(s.data, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	prev := s.data
	s.data = next
	if err := s.flush(); err != nil {
		s.data = prev
		return err
	}
	s.log.Debug("设置项已更新", "key", key)
	return nil
}

// All 返回完整设置内容
func (s *Store) All() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.data...)
}

func (s *Store) IsTest() bool { return s.Get(KeyIsTest).Bool() }

// ExportDir 导出目录，未配置时为空
func (s *Store) ExportDir() string { return s.Get(KeyExportDir).String() }

func (s *Store) SetExportDir(dir string) error { return s.Set(KeyExportDir, dir) }

// Path 设置文件路径
func (s *Store) Path() string { return s.path }

func (s *Store) flush() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, pretty.Pretty(s.data), 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return os.Rename(tmp, s.path)
}
