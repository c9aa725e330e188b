package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"xhsrelay/internal/logger"
)

// ErrExportUnavailable 未配置导出目录
var ErrExportUnavailable = errors.New("export directory is not configured")

// Job 一次导出任务，创建后不再修改
type Job struct {
	FileName string
	CSV      string
	Rows     int
}

// Link 导出结果
type Link struct {
	Path string
	URL  string
}

// DirSource 读取当前配置的导出目录
type DirSource interface {
	ExportDir() string
}

// Writer 将 CSV 写入用户配置的目录
type Writer struct {
	dirs DirSource
	now  func() time.Time
	log  logger.Logger
}

// NewWriter 创建导出写入器
func NewWriter(dirs DirSource, l logger.Logger) *Writer {
	if l == nil {
		l = logger.NewNop()
	}
	return &Writer{dirs: dirs, now: time.Now, log: l}
}

var unsafeName = regexp.MustCompile(`[^\p{L}\p{N}_\-]+`)

// FileName 生成 <operation>_<params>_<timestamp>.csv
func (w *Writer) FileName(operation string, params ...string) string {
	parts := []string{sanitize(operation)}
	for _, p := range params {
		if s := sanitize(p); s != "" {
			parts = append(parts, s)
		}
	}
	parts = append(parts, w.now().Format("20060102150405"))
	return strings.Join(parts, "_") + ".csv"
}

func sanitize(s string) string {
	s = unsafeName.ReplaceAllString(strings.TrimSpace(s), "-")
	s = strings.Trim(s, "-")
	if r := []rune(s); len(r) > 40 {
		s = string(r[:40])
	}
	return s
}

// WriteIfRequested 写入导出目录；未配置目录时返回 ErrExportUnavailable 且不触碰文件系统
func (w *Writer) WriteIfRequested(job Job) (Link, error) {
	dir := ""
	if w.dirs != nil {
		dir = strings.TrimSpace(w.dirs.ExportDir())
	}
	if dir == "" {
		return Link{}, ErrExportUnavailable
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Link{}, fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(job.FileName))
	// 带 BOM 便于表格软件识别 UTF-8
	if err := os.WriteFile(path, append([]byte("\ufeff"), job.CSV...), 0o644); err != nil {
		return Link{}, fmt.Errorf("write export: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	w.log.Info("导出文件已写入", "path", abs, "rows", job.Rows)
	return Link{Path: abs, URL: "file://" + filepath.ToSlash(abs)}, nil
}
