package extractor

import (
	"bytes"
	"context"
	"errors"
	"image"

	"github.com/disintegration/imaging"
)

// 预处理参数：对比度系数2.0，锐化系数1.5
const (
	contrastFactor  = 2.0
	sharpnessFactor = 1.5
)

// extractImage 图片只能通过OCR识别
func (e *Engine) extractImage(ctx context.Context, data []byte, filename string) (string, error) {
	if !e.OCREnabled() {
		return "", newOCRDisabledError(filename, "image")
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", newFailedError(filename, "image", "无法解码图片", err)
	}

	text, err := e.ocrImage(ctx, img)
	if err != nil {
		return "", newFailedError(filename, "ocr", "图片识别失败", err)
	}
	return text, nil
}

// PreprocessForOCR 灰度化、增强对比度、锐化
func PreprocessForOCR(img image.Image) (image.Image, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("空图片")
	}
	out := imaging.Grayscale(img)
	out = imaging.AdjustContrast(out, contrastPercentage(contrastFactor))
	out = imaging.Sharpen(out, sharpnessFactor-1)
	return out, nil
}

// contrastPercentage 把对比度系数换算为 imaging.AdjustContrast 的百分比
// 系数 f 对应斜率 1/(2-v)，v=(100+p)/100，解得 p=100*(1-1/f)
func contrastPercentage(factor float64) float64 {
	if factor <= 0 {
		return -100
	}
	p := 100 * (1 - 1/factor)
	if p > 100 {
		p = 100
	}
	return p
}
