// Package requirements 把JD文本解析为结构化需求。
// 解析由有序策略列表完成：可选的LLM策略在前，规则策略兜底。
package requirements

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"resume-screener/internal/llm"
	"resume-screener/internal/textclean"
	"resume-screener/internal/types"
)

const (
	// DefaultLLMTemperature 需求提取使用较低温度
	DefaultLLMTemperature = 0.2
	// DefaultLLMMaxTokens 需求提取的最大输出
	DefaultLLMMaxTokens = 1000

	systemPrompt = "You are an expert at analyzing job descriptions and extracting key requirements."

	userPromptTemplate = `Analyze this job description and extract key requirements.

JOB DESCRIPTION:
%s

Extract and return ONLY valid JSON in this format:
{
    "skills": ["skill1", "skill2", ...],
    "education": ["degree1", "degree2", ...],
    "experience_years": <number or null>,
    "certifications": ["cert1", "cert2", ...],
    "keywords": ["keyword1", "keyword2", ...]
}

Be thorough but concise. Extract 5-15 skills, 1-3 education requirements, and 10-20 keywords.`
)

// ErrEmptyJobText JD为空
var ErrEmptyJobText = errors.New("JD文本为空")

// Strategy 一种解析方式，返回 error 或空结果时由下一个策略接手
type Strategy struct {
	Name  string
	Parse func(ctx context.Context, jobText string) (*types.JobRequirements, error)
}

// Parser 按顺序执行策略
type Parser struct {
	strategies []Strategy
	logger     zerolog.Logger
}

// Option 解析器选项
type Option func(*Parser)

// WithCompleter 在规则策略之前加入LLM策略
func WithCompleter(c llm.Completer, temperature float64, maxTokens int) Option {
	return func(p *Parser) {
		if c == nil {
			return
		}
		p.strategies = append([]Strategy{llmStrategy(c, temperature, maxTokens)}, p.strategies...)
	}
}

// WithLogger 设置日志
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

// NewParser 创建解析器，规则策略总是最后一个
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		strategies: []Strategy{RuleStrategy()},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Strategies 返回策略名称，按执行顺序
func (p *Parser) Strategies() []string {
	names := make([]string, 0, len(p.strategies))
	for _, s := range p.strategies {
		names = append(names, s.Name)
	}
	return names
}

// ParseJD 解析JD，第一个给出非空结果的策略胜出
func (p *Parser) ParseJD(ctx context.Context, jobText string) (*types.JobRequirements, error) {
	jobText = strings.TrimSpace(jobText)
	if jobText == "" {
		return nil, ErrEmptyJobText
	}

	var last *types.JobRequirements
	for _, s := range p.strategies {
		reqs, err := s.Parse(ctx, jobText)
		if err != nil {
			p.logger.Warn().Err(err).Str("strategy", s.Name).Msg("JD解析策略失败，尝试下一个")
			continue
		}
		if reqs.IsEmpty() {
			p.logger.Debug().Str("strategy", s.Name).Msg("JD解析策略未得到任何需求")
			last = reqs
			continue
		}
		p.logger.Info().
			Str("strategy", s.Name).
			Int("skills", len(reqs.Skills)).
			Int("keywords", len(reqs.Keywords)).
			Msg("JD解析完成")
		return reqs, nil
	}
	if last == nil {
		last = &types.JobRequirements{}
	}
	return last, nil
}

// RuleStrategy 规则策略
func RuleStrategy() Strategy {
	return Strategy{
		Name: "rules",
		Parse: func(_ context.Context, jobText string) (*types.JobRequirements, error) {
			return ParseRules(jobText), nil
		},
	}
}

func llmStrategy(c llm.Completer, temperature float64, maxTokens int) Strategy {
	if maxTokens <= 0 {
		maxTokens = DefaultLLMMaxTokens
	}
	return Strategy{
		Name: "llm",
		Parse: func(ctx context.Context, jobText string) (*types.JobRequirements, error) {
			resp, err := c.Complete(ctx, systemPrompt, fmt.Sprintf(userPromptTemplate, jobText), temperature, maxTokens)
			if err != nil {
				return nil, err
			}
			obj, err := llm.ExtractJSONObject(resp)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", err, textclean.Preview(resp, 200))
			}
			return requirementsFromJSON(obj), nil
		},
	}
}

// requirementsFromJSON 宽松读取模型输出，类型不对的字段直接忽略
func requirementsFromJSON(obj map[string]any) *types.JobRequirements {
	reqs := &types.JobRequirements{
		Skills:         stringList(obj["skills"]),
		Education:      stringList(obj["education"]),
		Keywords:       stringList(obj["keywords"]),
		Certifications: stringList(obj["certifications"]),
	}
	switch v := obj["experience_years"].(type) {
	case float64:
		if v >= 0 && !math.IsNaN(v) {
			years := int(math.Round(v))
			reqs.ExperienceYears = &years
		}
	case string:
		if years, ok := StatedYears(v + " years experience"); ok {
			reqs.ExperienceYears = &years
		}
	}
	return reqs
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
