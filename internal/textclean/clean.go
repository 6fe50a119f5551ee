// Package textclean 提供提取后文本的规范化与联系方式识别
package textclean

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Rule 一条 OCR 纠错规则，按顺序依次应用
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
}

// DefaultOCRRules 常见的 OCR 识别错误修正表
// 属于启发式规则：正文中本就存在的 "rn"、孤立的 "l"/"0" 也会被改写，只能整体开关
var DefaultOCRRules = []Rule{
	{Name: "isolated-l-to-I", Pattern: regexp.MustCompile(`\bl\b`), Replacement: "I"},
	{Name: "isolated-0-to-O", Pattern: regexp.MustCompile(`\b0\b`), Replacement: "O"},
	{Name: "rn-to-m", Pattern: regexp.MustCompile(`rn`), Replacement: "m"},
}

var (
	// 任意空白串，包括换行
	whitespaceRe = regexp.MustCompile(`\s+`)
	// 连续换行
	newlineRunRe = regexp.MustCompile(`\n+`)
	// 允许集合之外的字符：文字、数字、下划线、空白以及 .,;:()-@#+*/
	disallowedRe = regexp.MustCompile(`[^\p{L}\p{N}\p{M}_\s.,;:()@#+*/-]`)
)

// Cleaner 文本清洗器，无可变状态，可并发使用
type Cleaner struct {
	rules []Rule
}

// Option 清洗器配置选项
type Option func(*Cleaner)

// WithOCRCorrections 开关 OCR 纠错表
func WithOCRCorrections(enabled bool) Option {
	return func(c *Cleaner) {
		if enabled {
			c.rules = DefaultOCRRules
		} else {
			c.rules = nil
		}
	}
}

// WithRules 使用自定义纠错规则
func WithRules(rules []Rule) Option {
	return func(c *Cleaner) {
		c.rules = rules
	}
}

// NewCleaner 创建清洗器，默认启用 OCR 纠错
func NewCleaner(opts ...Option) *Cleaner {
	c := &Cleaner{rules: DefaultOCRRules}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rules 当前生效的纠错规则
func (c *Cleaner) Rules() []Rule {
	return c.rules
}

// Clean 规范化提取文本
// 1. 所有空白(含换行)合并为一个空格 2. 连续换行统一为两个 3. 去除不允许的字符 4. OCR 纠错 5. 去除首尾空白
// 输出为单行文本
func (c *Cleaner) Clean(text string) string {
	if text == "" {
		return ""
	}
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = newlineRunRe.ReplaceAllString(text, "\n\n")
	text = disallowedRe.ReplaceAllString(text, "")
	for _, rule := range c.rules {
		text = rule.Pattern.ReplaceAllString(text, rule.Replacement)
	}
	return strings.TrimSpace(text)
}

var defaultCleaner = NewCleaner()

// Clean 使用默认清洗器
func Clean(text string) string {
	return defaultCleaner.Clean(text)
}

// Length 去除首尾空白后的字符数
func Length(text string) int {
	return utf8.RuneCountInString(strings.TrimSpace(text))
}

// Preview 取前 n 个字符，用于错误信息
func Preview(text string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n])
}
