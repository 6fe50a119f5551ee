package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrNoJSONObject 响应中找不到可解析的 JSON 对象
var ErrNoJSONObject = errors.New("响应中没有可解析的JSON对象")

var fencedJSONRe = regexp.MustCompile("```(?:json)?\\s*(\\{[\\s\\S]*?\\})\\s*```")

// ExtractJSONObject 依次尝试：整体解析、```json 代码块、文本中第一个顶层 {...}
func ExtractJSONObject(text string) (map[string]any, error) {
	text = strings.TrimSpace(strings.TrimPrefix(text, "\ufeff"))
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}

	if obj, ok := decodeObject(text); ok {
		return obj, nil
	}

	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		if obj, ok := decodeObject(m[1]); ok {
			return obj, nil
		}
	}

	if candidate := firstTopLevelObject(text); candidate != "" {
		if obj, ok := decodeObject(candidate); ok {
			return obj, nil
		}
		if obj, ok := decodeObject(sanitizeJSON(candidate)); ok {
			return obj, nil
		}
	}
	return nil, ErrNoJSONObject
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// firstTopLevelObject 按括号层级找到第一个完整的 {...}，忽略字符串内部的括号
func firstTopLevelObject(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	inStr := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			level++
		case '}':
			level--
			if level == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// sanitizeJSON 将字符串字面量内部未转义的双引号改写为 \"
// 下一个非空白字符是 : , ] } 时才视为字符串结束
func sanitizeJSON(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		switch {
		case c == '"' && !escaped:
			if !inStr {
				inStr = true
				b.WriteByte(c)
				break
			}
			j := i + 1
			for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
				j++
			}
			if j >= len(src) || src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}' {
				inStr = false
				b.WriteByte(c)
			} else {
				b.WriteString("\\\"")
			}
		case c == '\\' && !escaped:
			escaped = true
			b.WriteByte(c)
			continue
		default:
			b.WriteByte(c)
		}
		escaped = false
	}
	return b.String()
}
