// Package scoring 计算 (JD, 简历) 的四维匹配分数。
//
// 规则模式不依赖外部服务；AI 模式把分析委托给 llm.Completer，
// 但子分数的校验、裁剪以及总分计算都在本地完成。
package scoring

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"resume-screener/internal/llm"
	"resume-screener/internal/requirements"
	"resume-screener/internal/types"
)

const (
	// DefaultTemperature AI评分默认温度
	DefaultTemperature = 0.3
	// DefaultMaxTokens AI评分默认最大输出
	DefaultMaxTokens = 2000
)

// Engine 评分引擎，构造后只读，可并发使用
type Engine struct {
	weights      Weights
	completer    llm.Completer
	temperature  float64
	maxTokens    int
	ruleFallback bool
	explanations bool
	now          func() time.Time
	logger       zerolog.Logger
}

// Option 引擎选项
type Option func(*Engine)

// WithCompleter 启用AI评分模式
func WithCompleter(c llm.Completer, temperature float64, maxTokens int) Option {
	return func(e *Engine) {
		e.completer = c
		e.temperature = temperature
		if maxTokens > 0 {
			e.maxTokens = maxTokens
		}
	}
}

// WithRuleFallback AI评分失败时退回规则评分
func WithRuleFallback(enabled bool) Option {
	return func(e *Engine) {
		e.ruleFallback = enabled
	}
}

// WithExplanations 规则模式下是否生成说明
func WithExplanations(enabled bool) Option {
	return func(e *Engine) {
		e.explanations = enabled
	}
}

// WithClock 指定计算 "至今" 区间时使用的时间
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger 设置日志
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine 创建评分引擎，权重不合法时返回错误
func NewEngine(weights Weights, opts ...Option) (*Engine, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		weights:      weights,
		temperature:  DefaultTemperature,
		maxTokens:    DefaultMaxTokens,
		explanations: true,
		now:          time.Now,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Mode 当前评分模式
func (e *Engine) Mode() string {
	if e.completer != nil {
		return types.ModeAI
	}
	return types.ModeRuleBased
}

// Weights 返回引擎使用的权重
func (e *Engine) Weights() Weights {
	return e.weights
}

// Score 对一份简历评分。reqs 为 nil 时从 jobText 按规则重新解析。
func (e *Engine) Score(ctx context.Context, jobText, resumeText string, reqs *types.JobRequirements) (*types.ScoreResult, error) {
	if reqs == nil {
		reqs = requirements.ParseRules(jobText)
	}

	if e.completer == nil {
		return e.ScoreRules(reqs, resumeText), nil
	}

	result, err := e.scoreAI(ctx, jobText, resumeText)
	if err == nil {
		e.logger.Info().Float64("overall_score", result.OverallScore).Msg("AI评分完成")
		return result, nil
	}

	var scoringErr *ScoringError
	if errors.As(err, &scoringErr) {
		e.logger.Error().Err(err).Str("stage", scoringErr.Stage).Msg("AI评分失败")
	}
	if !e.ruleFallback {
		return nil, err
	}

	fallback := e.ScoreRules(reqs, resumeText)
	fallback.Mode = types.ModeRuleBasedFallback
	e.logger.Warn().Float64("overall_score", fallback.OverallScore).Msg("已退回规则评分")
	return fallback, nil
}

// ScoreRules 纯规则评分
func (e *Engine) ScoreRules(reqs *types.JobRequirements, resumeText string) *types.ScoreResult {
	if reqs == nil {
		reqs = &types.JobRequirements{}
	}
	outcome := e.scoreRules(reqs, resumeText)

	result := &types.ScoreResult{
		ScoringBreakdown: outcome.breakdown,
		Mode:             types.ModeRuleBased,
	}
	if e.explanations {
		result.Explanation = explain(outcome)
	}
	return result
}
