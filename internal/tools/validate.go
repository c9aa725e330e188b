package tools

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"xhsrelay/internal/pager"
)

// ErrInvalidInput 参数校验失败，发生在任何网络调用之前
var ErrInvalidInput = errors.New("invalid input")

const (
	defaultCount  = 20
	maxCount      = 1000
	maxCommentLen = 280
)

var objectID = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func requireText(name, v string) error {
	if strings.TrimSpace(v) == "" {
		return invalidf("%s is required", name)
	}
	return nil
}

// checkCount 未传时取默认值；0 不是合法取值
func checkCount(c *int) (int, error) {
	if c == nil {
		return defaultCount, nil
	}
	switch n := *c; {
	case n == pager.All:
		return n, nil
	case n < 1 || n > maxCount:
		return 0, invalidf("count must be -1 or between 1 and %d, got %d", maxCount, n)
	default:
		return n, nil
	}
}

func checkID(name, v string) error {
	if !objectID.MatchString(v) {
		return invalidf("%s must be a 24-character hex id", name)
	}
	return nil
}

func checkComment(content string) error {
	if strings.TrimSpace(content) == "" {
		return invalidf("content is required")
	}
	if n := utf8.RuneCountInString(content); n > maxCommentLen {
		return invalidf("content must be at most %d characters, got %d", maxCommentLen, n)
	}
	return nil
}

func checkOneOf(name, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return invalidf("%s must be one of %s", name, strings.Join(allowed, ", "))
}

func checkDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return invalidf("dir is required")
	}
	if !filepath.IsAbs(dir) {
		return invalidf("dir must be an absolute path")
	}
	return nil
}
