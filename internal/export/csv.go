package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Field 输出列：表头与取值路径
type Field struct {
	Header string
	Path   string // 点分路径，默认与表头相同
}

// ParseFields 解析 "header" 或 "header@dotted.path" 形式的列定义
func ParseFields(defs []string) []Field {
	fields := make([]Field, 0, len(defs))
	for _, s := range defs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		header, path, ok := strings.Cut(s, "@")
		if !ok || path == "" {
			path = header
		}
		fields = append(fields, Field{Header: header, Path: path})
	}
	return fields
}

// ToCSV 将记录按列定义转换为 CSV 文本。
// 缺失路径输出空串；数组以 ";" 连接（对象元素序列化为 JSON）；对象序列化为 JSON。
// 表头不做转义。
func ToCSV(rows []any, fields []Field) (string, error) {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.Header)
	}
	b.WriteByte('\n')

	for n, row := range rows {
		raw, err := rowJSON(row)
		if err != nil {
			return "", fmt.Errorf("row %d: %w", n, err)
		}
		for i, f := range fields {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(quote(cell(gjson.GetBytes(raw, gjsonPath(f.Path)))))
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func rowJSON(row any) ([]byte, error) {
	switch v := row.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}

// gjsonPath 转义 gjson 通配与修饰符，使每段都按字面键名匹配
func gjsonPath(path string) string {
	segs := strings.Split(path, ".")
	for i, s := range segs {
		var b strings.Builder
		for _, r := range s {
			switch r {
			case '*', '?', '|', '#', '@', '\\':
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
		segs[i] = b.String()
	}
	return strings.Join(segs, ".")
}

func cell(v gjson.Result) string {
	switch {
	case !v.Exists(), v.Type == gjson.Null:
		return ""
	case v.IsArray():
		parts := make([]string, 0)
		v.ForEach(func(_, e gjson.Result) bool {
			switch {
			case e.IsObject(), e.IsArray():
				parts = append(parts, compact(e.Raw))
			case e.Type == gjson.Null:
				parts = append(parts, "")
			case e.Type == gjson.String:
				parts = append(parts, e.Str)
			default:
				parts = append(parts, e.Raw)
			}
			return true
		})
		return strings.Join(parts, ";")
	case v.IsObject():
		return compact(v.Raw)
	case v.Type == gjson.String:
		return v.Str
	default:
		return v.Raw
	}
}

func compact(raw string) string {
	if c := gjson.Get(raw, "@ugly"); c.Raw != "" {
		return c.Raw
	}
	return raw
}

// quote 含逗号、引号或换行时加引号，内部引号加倍
func quote(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
