package processor

import (
	"errors"
	"fmt"
)

// 基础错误类型
var (
	ErrValidation        = errors.New("请求参数无效")
	ErrJobNotSet         = errors.New("请先设置职位描述")
	ErrFileTooLarge      = errors.New("文件过大")
	ErrUnsupportedFile   = errors.New("不支持的文件类型")
	ErrDuplicateUpload   = errors.New("该简历文件已上传过")
	ErrCandidateNotFound = errors.New("候选人不存在")
	ErrResumeNotArchived = errors.New("原始简历未归档")
	ErrSourceUnavailable = errors.New("Google Drive 或 Sheets 未配置")
	ErrQueueUnavailable  = errors.New("批处理队列未配置")

	ErrDownloadFailed = errors.New("下载简历失败")
	ErrExtractFailed  = errors.New("提取简历文本失败")
	ErrScoreFailed    = errors.New("候选人评分失败")
	ErrStoreFailed    = errors.New("保存数据失败")
	ErrEnqueueFailed  = errors.New("发布批处理消息失败")
)

// 失败阶段
const (
	OpValidate = "validate"
	OpUpload   = "upload"
	OpDownload = "download"
	OpExtract  = "extract"
	OpScore    = "score"
	OpStore    = "store"
	OpEnqueue  = "enqueue"
)

// ScreeningError 记录哪个对象在哪个阶段失败
type ScreeningError struct {
	Ref     string // 文件名、候选人ID或表格行
	Op      string
	BaseErr error
	Detail  string
	Err     error // 下游返回的原始错误，可为空
}

func (e *ScreeningError) Error() string {
	msg := fmt.Sprintf("%s (操作:%s, 对象:%s)", e.BaseErr, e.Op, e.Ref)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap 同时暴露基础错误与原始错误，便于按提取或评分错误类型判断
func (e *ScreeningError) Unwrap() []error {
	errs := []error{e.BaseErr}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// OpOf 返回错误所在阶段，非 ScreeningError 返回空串
func OpOf(err error) string {
	var se *ScreeningError
	if errors.As(err, &se) {
		return se.Op
	}
	return ""
}

func NewValidationError(ref, detail string) error {
	return &ScreeningError{Ref: ref, Op: OpValidate, BaseErr: ErrValidation, Detail: detail}
}

func NewUploadError(ref string, base error, detail string) error {
	return &ScreeningError{Ref: ref, Op: OpUpload, BaseErr: base, Detail: detail}
}

func NewDownloadError(ref string, err error) error {
	return &ScreeningError{Ref: ref, Op: OpDownload, BaseErr: ErrDownloadFailed, Err: err}
}

func NewExtractError(ref string, err error) error {
	return &ScreeningError{Ref: ref, Op: OpExtract, BaseErr: ErrExtractFailed, Err: err}
}

func NewScoreError(ref string, err error) error {
	return &ScreeningError{Ref: ref, Op: OpScore, BaseErr: ErrScoreFailed, Err: err}
}

func NewStoreError(ref, detail string, err error) error {
	return &ScreeningError{Ref: ref, Op: OpStore, BaseErr: ErrStoreFailed, Detail: detail, Err: err}
}

func NewEnqueueError(ref string, err error) error {
	return &ScreeningError{Ref: ref, Op: OpEnqueue, BaseErr: ErrEnqueueFailed, Err: err}
}
