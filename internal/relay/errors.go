package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport 浏览器内调用失败或重试耗尽
	ErrTransport = errors.New("transport error")
	// ErrRateLimited 站点限流，重试耗尽后与 ErrTransport 一同返回
	ErrRateLimited = errors.New("rate limited")
	// ErrMalformedResponse 响应体不是合法 JSON
	ErrMalformedResponse = errors.New("malformed response")
	// ErrAPI 站点返回 success=false
	ErrAPI = errors.New("api error")
)

// CallError 一次远程调用的终态错误
type CallError struct {
	Path     string
	Attempts int
	Code     int    // 站点业务码，仅 ErrAPI 时有效
	Msg      string // 站点返回的提示信息
	Err      error
}

func (e *CallError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %v: %s", e.Path, e.Err, e.Msg)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// IsTransient 判断错误是否为可在更高层重试的瞬时错误
func IsTransient(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}
