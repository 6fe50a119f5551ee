package extractor

import (
	"errors"
	"fmt"
)

// 提取失败的基础错误类型
var (
	ErrUnsupportedFormat = errors.New("不支持的文件格式")
	ErrInsufficientText  = errors.New("提取的文本不足")
	ErrOCRDisabled       = errors.New("OCR已被禁用")
	ErrExtractionFailed  = errors.New("文本提取失败")
)

// ExtractionError 描述哪个文件在哪个阶段失败
type ExtractionError struct {
	Filename string
	Op       string // 失败的阶段，例如 pdf、word、image、ocr
	Kind     error  // 上面的基础错误之一
	Detail   string
	Err      error // 底层库返回的原始错误，可为空
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("%s (操作:%s, 文件:%s)", e.Kind, e.Op, e.Filename)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is 实现 errors.Is 接口，按基础错误类型比较
func (e *ExtractionError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

func newUnsupportedFormatError(filename, ext string) error {
	return &ExtractionError{
		Filename: filename,
		Op:       "dispatch",
		Kind:     ErrUnsupportedFormat,
		Detail:   fmt.Sprintf("扩展名 %q 不在支持列表 [.pdf .docx .doc .jpg .jpeg .png] 中", ext),
	}
}

func newInsufficientTextError(filename, op string, got, min int, detail string) error {
	d := fmt.Sprintf("得到 %d 个字符，至少需要 %d 个", got, min)
	if detail != "" {
		d += "；" + detail
	}
	return &ExtractionError{Filename: filename, Op: op, Kind: ErrInsufficientText, Detail: d}
}

func newOCRDisabledError(filename, op string) error {
	return &ExtractionError{
		Filename: filename,
		Op:       op,
		Kind:     ErrOCRDisabled,
		Detail:   "图片文件只能通过OCR识别",
	}
}

func newFailedError(filename, op, detail string, err error) error {
	return &ExtractionError{Filename: filename, Op: op, Kind: ErrExtractionFailed, Detail: detail, Err: err}
}
