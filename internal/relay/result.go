package relay

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"xhsrelay/pkg/model"
)

// Result 调用成功后的响应体
type Result struct {
	Path string
	Raw  []byte
}

// Get 按 gjson 路径读取字段
func (r *Result) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Raw, path)
}

// DecodeData 将响应按接口族的类型解码并返回 data 字段
func DecodeData[T any](r *Result) (T, error) {
	var env model.APIResponse[T]
	if err := json.Unmarshal(r.Raw, &env); err != nil {
		var zero T
		return zero, &CallError{Path: r.Path, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	return env.Data, nil
}

// Decode 将完整响应解码到 into
func (r *Result) Decode(into any) error {
	if err := json.Unmarshal(r.Raw, into); err != nil {
		return &CallError{Path: r.Path, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	return nil
}

// DecodePath 解码 gjson 路径下的片段，路径不存在时返回零值
func DecodePath[T any](r *Result, path string) (T, error) {
	var out T
	v := r.Get(path)
	if !v.Exists() || v.Type == gjson.Null {
		return out, nil
	}
	if err := json.Unmarshal([]byte(v.Raw), &out); err != nil {
		return out, &CallError{Path: r.Path, Err: fmt.Errorf("%w: %s: %v", ErrMalformedResponse, path, err)}
	}
	return out, nil
}
