package extractor

import (
	"context"
	"fmt"
	"strings"

	"resume-screener/internal/textclean"
)

// PDFStrategy 一种PDF数字提取方法，按顺序尝试，文本长度即质量信号
type PDFStrategy struct {
	Name    string
	Extract func(ctx context.Context, data []byte, filename string) (string, error)
}

func defaultPDFStrategies(ctx context.Context) ([]PDFStrategy, error) {
	eino, err := newEinoPDFExtractor(ctx)
	if err != nil {
		return nil, err
	}
	return []PDFStrategy{
		{Name: "layout", Extract: extractPDFLayout},
		eino.Strategy(),
	}, nil
}

// extractPDF 依次尝试数字提取，全部不足时光栅化后OCR，保留较长的结果
func (e *Engine) extractPDF(ctx context.Context, data []byte, filename string) (string, error) {
	best := ""
	bestLen := 0
	for _, s := range e.pdfStrategies {
		text := e.runPDFStrategy(ctx, s, data, filename)
		n := textclean.Length(text)
		e.logger.Debug().Str("file", filename).Str("method", s.Name).Int("chars", n).Msg("PDF提取方法完成")
		if n > bestLen {
			best, bestLen = text, n
		}
		if n >= e.minLength {
			return text, nil
		}
	}

	if !e.OCREnabled() || e.rasterizer == nil {
		return "", newInsufficientTextError(filename, "pdf", bestLen, e.minLength,
			"所有数字提取方法均不足，且OCR未启用")
	}

	e.logger.Info().Str("file", filename).Int("digital_chars", bestLen).Msg("数字提取不足，转为OCR识别")
	ocrText, err := e.ocrPDF(ctx, data)
	if err != nil {
		return "", newFailedError(filename, "ocr", "扫描版PDF识别失败", err)
	}
	if textclean.Length(ocrText) > bestLen {
		return ocrText, nil
	}
	return best, nil
}

// runPDFStrategy 单个方法的错误或panic都视为该方法没有提取到文本
func (e *Engine) runPDFStrategy(ctx context.Context, s PDFStrategy, data []byte, filename string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn().Str("file", filename).Str("method", s.Name).Interface("panic", r).Msg("PDF提取方法异常")
			text = ""
		}
	}()
	t, err := s.Extract(ctx, data, filename)
	if err != nil {
		e.logger.Debug().Err(err).Str("file", filename).Str("method", s.Name).Msg("PDF提取方法失败")
		return ""
	}
	return t
}

// ocrPDF 逐页识别，页与页之间用空行分隔
func (e *Engine) ocrPDF(ctx context.Context, data []byte) (string, error) {
	pages, err := e.rasterizer.Rasterize(ctx, data, e.dpi)
	if err != nil {
		return "", fmt.Errorf("光栅化失败: %w", err)
	}

	texts := make([]string, 0, len(pages))
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		t, err := e.ocrImage(ctx, page)
		if err != nil {
			return "", fmt.Errorf("第%d页识别失败: %w", i+1, err)
		}
		if t = strings.TrimSpace(t); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n\n"), nil
}
