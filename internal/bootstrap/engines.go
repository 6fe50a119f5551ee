// Package bootstrap 根据配置组装提取、需求解析与评分引擎，供 HTTP 服务和命令行共用
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"resume-screener/internal/config"
	"resume-screener/internal/extractor"
	"resume-screener/internal/llm"
	"resume-screener/internal/ocr"
	"resume-screener/internal/ratelimit"
	"resume-screener/internal/requirements"
	"resume-screener/internal/scoring"
	"resume-screener/internal/textclean"
)

// NewExtractor 提取引擎；OCR 关闭时不加载 tesseract
func NewExtractor(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*extractor.Engine, error) {
	ec := cfg.Extraction
	opts := []extractor.Option{
		extractor.WithMinTextLength(ec.MinTextLength),
		extractor.WithDPI(ec.OCRDPI),
		extractor.WithCleaner(textclean.NewCleaner(textclean.WithOCRCorrections(ec.ApplyOCRCorrections))),
		extractor.WithLogger(logger),
	}
	if ec.OCREnabled {
		opts = append(opts, extractor.WithOCR(ocr.NewTesseractRecognizer(ec.OCRLanguage), ocr.NewFitzRasterizer()))
	}
	if ec.TikaURL != "" {
		opts = append(opts, extractor.WithTika(ec.TikaURL, time.Duration(ec.TikaTimeoutSeconds)*time.Second))
	}
	eng, err := extractor.NewEngine(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("初始化提取引擎失败: %w", err)
	}
	return eng, nil
}

// NewCompleter 推理服务客户端，带每分钟限流；未配置密钥时返回 nil
func NewCompleter(cfg *config.Config, logger zerolog.Logger) (llm.Completer, error) {
	if !cfg.LLMEnabled() {
		return nil, nil
	}
	chat, err := llm.NewOpenAIChatModel(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.APIURL,
		llm.WithTimeout(config.GetDuration(cfg.LLM.Timeout, 60*time.Second)),
		llm.WithModelLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("初始化推理服务客户端失败: %w", err)
	}
	return llm.NewChatCompleter(ratelimit.NewRateLimitedChatModel(chat, cfg.LLM.QPM)), nil
}

// NewParser JD 需求解析器；配置了 use_llm 且有推理服务时先走 LLM 策略
func NewParser(cfg *config.Config, completer llm.Completer, logger zerolog.Logger) *requirements.Parser {
	opts := []requirements.Option{requirements.WithLogger(logger)}
	if cfg.Requirements.UseLLM && completer != nil {
		opts = append(opts, requirements.WithCompleter(completer, cfg.Requirements.Temperature, cfg.Requirements.MaxTokens))
	}
	return requirements.NewParser(opts...)
}

// NewScorer 评分引擎；ai 模式需要推理服务
func NewScorer(cfg *config.Config, completer llm.Completer, logger zerolog.Logger) (*scoring.Engine, error) {
	w := cfg.Scoring.Weights
	opts := []scoring.Option{
		scoring.WithExplanations(cfg.Scoring.Explanations),
		scoring.WithRuleFallback(cfg.Scoring.FallbackToRules),
		scoring.WithLogger(logger),
	}
	if cfg.Scoring.Mode == config.ScoringModeAI {
		if completer == nil {
			return nil, fmt.Errorf("ai 评分模式需要配置 llm.api_key")
		}
		opts = append(opts, scoring.WithCompleter(completer, cfg.LLM.Temperature, cfg.LLM.MaxTokens))
	}
	return scoring.NewEngine(scoring.Weights{
		Skills:     w.Skills,
		Experience: w.Experience,
		Education:  w.Education,
		Keywords:   w.Keywords,
	}, opts...)
}
