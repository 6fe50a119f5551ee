package handler

import (
	"context"
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.opentelemetry.io/otel/trace"

	"resume-screener/internal/processor"
	"resume-screener/internal/tracing"
)

// StatusFor 将服务层错误映射为 HTTP 状态码
func StatusFor(err error) int {
	switch {
	case errors.Is(err, processor.ErrFileTooLarge):
		return consts.StatusRequestEntityTooLarge
	case errors.Is(err, processor.ErrDuplicateUpload):
		return consts.StatusConflict
	case errors.Is(err, processor.ErrCandidateNotFound), errors.Is(err, processor.ErrResumeNotArchived):
		return consts.StatusNotFound
	case errors.Is(err, processor.ErrValidation), errors.Is(err, processor.ErrJobNotSet),
		errors.Is(err, processor.ErrUnsupportedFile):
		return consts.StatusBadRequest
	case errors.Is(err, processor.ErrExtractFailed):
		return consts.StatusUnprocessableEntity
	case errors.Is(err, processor.ErrScoreFailed):
		return consts.StatusBadGateway
	case errors.Is(err, processor.ErrSourceUnavailable), errors.Is(err, processor.ErrQueueUnavailable):
		return consts.StatusServiceUnavailable
	default:
		return consts.StatusInternalServerError
	}
}

func (h *ScreeningHandler) writeError(ctx context.Context, c *app.RequestContext, err error) {
	status := StatusFor(err)
	tracing.RecordHTTPError(trace.SpanFromContext(ctx), err, status)
	body := utils.H{"error": err.Error()}
	if op := processor.OpOf(err); op != "" {
		body["stage"] = op
	}
	if status >= consts.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", string(c.Path())).Int("status", status).Msg("请求处理失败")
	} else {
		h.logger.Debug().Err(err).Str("path", string(c.Path())).Int("status", status).Msg("请求被拒绝")
	}
	c.JSON(status, body)
}
