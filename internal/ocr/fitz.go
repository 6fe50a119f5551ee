package ocr

import (
	"context"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// FitzRasterizer 使用 MuPDF 渲染PDF页面
type FitzRasterizer struct{}

// NewFitzRasterizer 创建光栅化器
func NewFitzRasterizer() *FitzRasterizer {
	return &FitzRasterizer{}
}

// Rasterize 按给定DPI渲染每一页
func (FitzRasterizer) Rasterize(ctx context.Context, data []byte, dpi float64) ([]image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("打开PDF失败: %w", err)
	}
	defer doc.Close()

	pages := make([]image.Image, 0, doc.NumPage())
	for n := 0; n < doc.NumPage(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.ImageDPI(n, dpi)
		if err != nil {
			return nil, fmt.Errorf("渲染第%d页失败: %w", n+1, err)
		}
		pages = append(pages, img)
	}
	return pages, nil
}
