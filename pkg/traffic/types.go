package traffic

import (
	"net/http"
	"net/url"
)

// Request 一次远程调用请求，构造后不再修改
type Request struct {
	Method string     // GET / POST
	Path   string     // 站点接口路径，如 /api/sns/web/v1/feed
	Query  url.Values // GET 查询参数
	Body   []byte     // POST JSON 请求体
}

// Get 构造 GET 请求
func Get(path string, query url.Values) Request {
	return Request{Method: http.MethodGet, Path: path, Query: query}
}

// Post 构造带 JSON 请求体的 POST 请求
func Post(path string, body []byte) Request {
	return Request{Method: http.MethodPost, Path: path, Body: body}
}

// URI 返回带查询串的路径
func (r Request) URI() string {
	if len(r.Query) == 0 {
		return r.Path
	}
	return r.Path + "?" + r.Query.Encode()
}

// Response 浏览器内执行后的原始响应
type Response struct {
	StatusCode int    // 状态码
	Body       []byte // 响应体数据
}

// NewResponse 创建初始化响应对象
func NewResponse() *Response {
	return &Response{StatusCode: http.StatusOK}
}
