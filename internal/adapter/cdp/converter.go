package cdp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"xhsrelay/pkg/traffic"
)

// RelayObject 页面内注入的调用入口
const RelayObject = "window.__xhsRelay"

var ErrNoValue = errors.New("evaluate returned no value")

// EvaluateArgs 构造等待 Promise 并按值返回的执行参数
func EvaluateArgs(expr string) *runtime.EvaluateArgs {
	return runtime.NewEvaluateArgs(expr).
		SetAwaitPromise(true).
		SetReturnByValue(true).
		SetUserGesture(true)
}

// RelayExpression 将中立 Request 转换为页面内调用表达式
func RelayExpression(req traffic.Request, apiBase string) (string, error) {
	payload := []byte(`{}`)
	var err error
	if payload, err = sjson.SetBytes(payload, "method", req.Method); err != nil {
		return "", err
	}
	if payload, err = sjson.SetBytes(payload, "base", strings.TrimRight(apiBase, "/")); err != nil {
		return "", err
	}
	if payload, err = sjson.SetBytes(payload, "uri", req.URI()); err != nil {
		return "", err
	}
	if len(req.Body) > 0 {
		if !gjson.ValidBytes(req.Body) {
			return "", fmt.Errorf("request body for %s is not valid json", req.Path)
		}
		if payload, err = sjson.SetRawBytes(payload, "body", req.Body); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%s.call(%s)", RelayObject, payload), nil
}

// ToResponse 将执行结果转换为中立 Response，页面异常转为 error
func ToResponse(reply *runtime.EvaluateReply) (*traffic.Response, error) {
	if err := exceptionError(reply); err != nil {
		return nil, err
	}
	if len(reply.Result.Value) == 0 || !gjson.ValidBytes(reply.Result.Value) {
		return nil, ErrNoValue
	}
	v := gjson.ParseBytes(reply.Result.Value)
	if !v.IsObject() || !v.Get("status").Exists() {
		return nil, fmt.Errorf("unexpected relay result: %s", reply.Result.Type)
	}
	res := traffic.NewResponse()
	res.StatusCode = int(v.Get("status").Int())
	res.Body = []byte(v.Get("body").String())
	return res, nil
}

// ToString 读取按值返回的字符串结果
func ToString(reply *runtime.EvaluateReply) (string, error) {
	if err := exceptionError(reply); err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(reply.Result.Value, &s); err != nil {
		return "", ErrNoValue
	}
	return s, nil
}

func exceptionError(reply *runtime.EvaluateReply) error {
	if reply == nil {
		return ErrNoValue
	}
	ex := reply.ExceptionDetails
	if ex == nil {
		return nil
	}
	msg := ex.Text
	if ex.Exception != nil && ex.Exception.Description != nil && *ex.Exception.Description != "" {
		msg = *ex.Exception.Description
	}
	return fmt.Errorf("page exception: %s", msg)
}
