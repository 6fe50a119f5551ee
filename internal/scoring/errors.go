package scoring

import (
	"errors"
	"fmt"

	"resume-screener/internal/llm"
)

// 评分错误类型
var (
	ErrMissingField            = errors.New("缺少必需字段")
	ErrInvalidFieldType        = errors.New("字段类型无效")
	ErrUnparsableResponse      = errors.New("无法解析模型响应")
	ErrCollaboratorUnavailable = llm.ErrCollaboratorUnavailable

	ErrInvalidWeights = errors.New("评分权重无效")
)

// 评分调用的各个阶段
const (
	StageCollaborator = "collaborator"
	StageParse        = "parse"
	StageValidate     = "validate"
)

// payloadPreviewLimit 错误信息中模型输出的最大长度
const payloadPreviewLimit = 200

// ScoringError 评分失败，Stage 标明失败的阶段
type ScoringError struct {
	Stage  string
	Kind   error
	Field  string
	Detail string
	Err    error
}

func (e *ScoringError) Error() string {
	msg := fmt.Sprintf("评分失败 [%s]: %s", e.Stage, e.Detail)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap 返回底层错误
func (e *ScoringError) Unwrap() error {
	return e.Err
}

// Is 按错误类型比较
func (e *ScoringError) Is(target error) bool {
	return e.Kind == target
}

func newCollaboratorError(err error) error {
	return &ScoringError{Stage: StageCollaborator, Kind: ErrCollaboratorUnavailable, Detail: "AI scoring failed", Err: err}
}

func newUnparsableError(preview string) error {
	return &ScoringError{
		Stage:  StageParse,
		Kind:   ErrUnparsableResponse,
		Detail: "Could not parse JSON from response: " + preview,
	}
}

func newMissingFieldError(field string) error {
	return &ScoringError{
		Stage:  StageValidate,
		Kind:   ErrMissingField,
		Field:  field,
		Detail: "Missing required field: " + field,
	}
}

func newInvalidFieldTypeError(field string, value any) error {
	return &ScoringError{
		Stage:  StageValidate,
		Kind:   ErrInvalidFieldType,
		Field:  field,
		Detail: fmt.Sprintf("%s must be a number, got %T", field, value),
	}
}
