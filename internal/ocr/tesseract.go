// Package ocr 提供基于 Tesseract 的文字识别和基于 MuPDF 的PDF光栅化
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// TesseractRecognizer 每次识别创建独立的 tesseract 客户端
type TesseractRecognizer struct {
	languages []string
}

// NewTesseractRecognizer 默认识别英文
func NewTesseractRecognizer(languages ...string) *TesseractRecognizer {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractRecognizer{languages: languages}
}

// Recognize 识别单张图片中的文字
func (r *TesseractRecognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("图片编码为PNG失败: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(r.languages...); err != nil {
		return "", fmt.Errorf("设置OCR语言失败: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("加载图片失败: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract识别失败: %w", err)
	}
	return text, nil
}
