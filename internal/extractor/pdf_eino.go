package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
)

// einoPDFExtractor 使用 Eino PDF Parser 做结构化提取
type einoPDFExtractor struct {
	parser *pdf.PDFParser
}

func newEinoPDFExtractor(ctx context.Context) (*einoPDFExtractor, error) {
	// 不按页面分割，获取整个文档的连续文本
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	if err != nil {
		return nil, fmt.Errorf("创建Eino PDF解析器失败: %w", err)
	}
	return &einoPDFExtractor{parser: p}, nil
}

func (e *einoPDFExtractor) Strategy() PDFStrategy {
	return PDFStrategy{Name: "structural", Extract: e.extract}
}

func (e *einoPDFExtractor) extract(ctx context.Context, data []byte, filename string) (string, error) {
	docs, err := e.parser.Parse(ctx, bytes.NewReader(data), einoParser.WithURI(filename))
	if err != nil {
		return "", fmt.Errorf("eino PDF parser failed for %s: %w", filename, err)
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("eino PDF parser returned no documents for %s", filename)
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.Content)
	}
	return strings.Join(parts, "\n\n"), nil
}
