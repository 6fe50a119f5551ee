// Package extractor 将简历文件(PDF/Word/图片)转换为清洗后的纯文本
package extractor

import (
	"context"
	"image"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"resume-screener/internal/textclean"
)

// DefaultMinTextLength 视为提取成功的最少字符数
const DefaultMinTextLength = 50

// DefaultOCRDPI 扫描件光栅化分辨率
const DefaultOCRDPI = 300.0

// Recognizer OCR识别接口
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// Rasterizer 将PDF每一页渲染为图片
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte, dpi float64) ([]image.Image, error)
}

// Preprocessor OCR前的图片预处理，出错时使用原图
type Preprocessor func(img image.Image) (image.Image, error)

// Engine 文本提取引擎，构建后不再修改，可并发使用
type Engine struct {
	minLength     int
	dpi           float64
	recognizer    Recognizer
	rasterizer    Rasterizer
	preprocess    Preprocessor
	cleaner       *textclean.Cleaner
	pdfStrategies []PDFStrategy
	tikaURL       string
	tikaTimeout   time.Duration
	logger        zerolog.Logger
}

// Option 引擎配置选项
type Option func(*Engine)

// WithMinTextLength 设置最少字符数
func WithMinTextLength(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.minLength = n
		}
	}
}

// WithOCR 启用OCR；rasterizer 为空时扫描版PDF无法走OCR
func WithOCR(recognizer Recognizer, rasterizer Rasterizer) Option {
	return func(e *Engine) {
		e.recognizer = recognizer
		e.rasterizer = rasterizer
	}
}

// WithDPI 设置光栅化分辨率，低于300按300处理
func WithDPI(dpi float64) Option {
	return func(e *Engine) {
		if dpi < DefaultOCRDPI {
			dpi = DefaultOCRDPI
		}
		e.dpi = dpi
	}
}

// WithPreprocessor 替换默认的图片预处理
func WithPreprocessor(p Preprocessor) Option {
	return func(e *Engine) {
		if p != nil {
			e.preprocess = p
		}
	}
}

// WithCleaner 替换文本清洗器
func WithCleaner(c *textclean.Cleaner) Option {
	return func(e *Engine) {
		if c != nil {
			e.cleaner = c
		}
	}
}

// WithTika 在数字提取策略末尾追加 Tika 服务器
func WithTika(serverURL string, timeout time.Duration) Option {
	return func(e *Engine) {
		e.tikaURL = serverURL
		e.tikaTimeout = timeout
	}
}

// WithPDFStrategies 替换PDF数字提取策略列表
func WithPDFStrategies(strategies ...PDFStrategy) Option {
	return func(e *Engine) {
		e.pdfStrategies = strategies
	}
}

// WithLogger 设置日志
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine 创建提取引擎
func NewEngine(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{
		minLength:  DefaultMinTextLength,
		dpi:        DefaultOCRDPI,
		preprocess: PreprocessForOCR,
		cleaner:    textclean.NewCleaner(),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.pdfStrategies == nil {
		strategies, err := defaultPDFStrategies(ctx)
		if err != nil {
			return nil, err
		}
		e.pdfStrategies = strategies
	}
	if e.tikaURL != "" {
		e.pdfStrategies = append(e.pdfStrategies, newTikaClient(e.tikaURL, e.tikaTimeout).Strategy())
	}
	return e, nil
}

// OCREnabled 是否配置了OCR
func (e *Engine) OCREnabled() bool {
	return e.recognizer != nil
}

// MinTextLength 最少字符数
func (e *Engine) MinTextLength() int {
	return e.minLength
}

// SupportedExtensions 按扩展名分派的格式
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".doc", ".jpg", ".jpeg", ".png"}
}

// Extract 按扩展名选择提取策略，返回清洗后的文本
func (e *Engine) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	log := e.logger.With().Str("file", filename).Str("ext", ext).Logger()

	var (
		raw string
		err error
		op  string
	)
	start := time.Now()
	switch ext {
	case ".pdf":
		op = "pdf"
		raw, err = e.extractPDF(ctx, data, filename)
	case ".docx", ".doc":
		op = "word"
		raw, err = e.extractWord(data, filename)
	case ".jpg", ".jpeg", ".png":
		op = "image"
		raw, err = e.extractImage(ctx, data, filename)
	default:
		return "", newUnsupportedFormatError(filename, ext)
	}
	if err != nil {
		log.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("文本提取失败")
		return "", err
	}

	if n := textclean.Length(raw); n < e.minLength {
		return "", newInsufficientTextError(filename, op, n, e.minLength, "")
	}

	cleaned := e.cleaner.Clean(raw)
	if n := textclean.Length(cleaned); n < e.minLength {
		return "", newInsufficientTextError(filename, op, n, e.minLength, "清洗后文本过短")
	}

	log.Debug().Int("chars", len([]rune(cleaned))).Dur("elapsed", time.Since(start)).Msg("文本提取完成")
	return cleaned, nil
}

// ocrImage 预处理后识别单张图片
func (e *Engine) ocrImage(ctx context.Context, img image.Image) (string, error) {
	return e.recognizer.Recognize(ctx, e.applyPreprocess(img))
}

// applyPreprocess 预处理失败(包括panic)时返回原图
func (e *Engine) applyPreprocess(img image.Image) (out image.Image) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn().Interface("panic", r).Msg("图片预处理异常，使用原图")
			out = img
		}
	}()
	processed, err := e.preprocess(img)
	if err != nil || processed == nil {
		e.logger.Warn().Err(err).Msg("图片预处理失败，使用原图")
		return img
	}
	return processed
}
