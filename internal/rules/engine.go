package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"xhsrelay/internal/config"
)

// Kind 识别结果类型
type Kind string

const (
	KindNone         Kind = ""
	KindVerification Kind = "verification"
	KindLogin        Kind = "login"
	KindRateLimit    Kind = "rate_limit"
)

// RequiresHuman 是否需要人工处理（登录或验证码）
func (k Kind) RequiresHuman() bool { return k == KindVerification || k == KindLogin }

// Rule 单条识别规则
type Rule struct {
	Kind Kind
	On   string // url / body / code
	Mode string // regex / contains / prefix / exact
	Expr string

	re *regexp.Regexp
}

// Engine 按顺序匹配页面地址与响应内容，首条命中生效
type Engine struct {
	rules []Rule
}

// DefaultRules 当前站点版本的内置规则
func DefaultRules() []Rule {
	return []Rule{
		{Kind: KindVerification, On: "url", Mode: "regex", Expr: `/website-login/(captcha|verify)`},
		{Kind: KindLogin, On: "url", Mode: "regex", Expr: `/(website-)?login(\?|/|$)`},
		{Kind: KindRateLimit, On: "body", Mode: "contains", Expr: "访问频次异常"},
		{Kind: KindRateLimit, On: "code", Mode: "exact", Expr: "300013"},
	}
}

// New 编译规则创建引擎
func New(rs []Rule) (*Engine, error) {
	e := &Engine{rules: make([]Rule, 0, len(rs))}
	for i := range rs {
		r := rs[i]
		if r.On == "" {
			r.On = "url"
		}
		if r.Mode == "regex" {
			re, err := regexp.Compile(r.Expr)
			if err != nil {
				return nil, fmt.Errorf("rule %d: %w", i, err)
			}
			r.re = re
		}
		e.rules = append(e.rules, r)
	}
	return e, nil
}

// FromConfig 根据配置创建引擎，未配置时使用内置规则
func FromConfig(ps []config.Pattern) (*Engine, error) {
	if len(ps) == 0 {
		return New(DefaultRules())
	}
	rs := make([]Rule, 0, len(ps))
	for _, p := range ps {
		rs = append(rs, Rule{Kind: Kind(p.Kind), On: p.On, Mode: p.Mode, Expr: p.Expr})
	}
	return New(rs)
}

// ClassifyURL 识别页面地址
func (e *Engine) ClassifyURL(u string) Kind {
	for i := range e.rules {
		r := &e.rules[i]
		if r.On == "url" && r.match(u) {
			return r.Kind
		}
	}
	return KindNone
}

// ClassifyResponse 识别响应体，code 规则读取顶层 code 字段
func (e *Engine) ClassifyResponse(body []byte) Kind {
	var code string
	if gjson.ValidBytes(body) {
		if c := gjson.GetBytes(body, "code"); c.Exists() {
			code = strconv.FormatInt(c.Int(), 10)
		}
	}
	text := string(body)
	for i := range e.rules {
		r := &e.rules[i]
		switch r.On {
		case "body":
			if r.match(text) {
				return r.Kind
			}
		case "code":
			if code != "" && r.match(code) {
				return r.Kind
			}
		}
	}
	return KindNone
}

func (r *Rule) match(s string) bool {
	switch r.Mode {
	case "regex":
		return r.re != nil && r.re.MatchString(s)
	case "prefix":
		return strings.HasPrefix(s, r.Expr)
	case "exact":
		return s == r.Expr
	default:
		return strings.Contains(s, r.Expr)
	}
}
