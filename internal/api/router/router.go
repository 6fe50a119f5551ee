package router

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/google/uuid"
	"github.com/hertz-contrib/keyauth"

	"resume-screener/internal/api/handler"
)

const (
	// APIKeyHeader 鉴权请求头
	APIKeyHeader = "X-API-Key"
	// RequestIDHeader 请求ID请求头，缺省时由服务端生成
	RequestIDHeader = "X-Request-ID"
)

var errInvalidAPIKey = errors.New("API Key 无效")

// RequestID 透传或生成请求ID，并在请求前后记录日志
func RequestID() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		id := string(ctx.GetHeader(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		ctx.Set("request_id", id)
		ctx.Header(RequestIDHeader, id)

		glog.CtxDebugf(c, "Request: %s %s request_id=%s", string(ctx.Method()), string(ctx.Path()), id)
		ctx.Next(c)
		glog.CtxDebugf(c, "Response: status %d request_id=%s", ctx.Response.StatusCode(), id)
	}
}

// APIKeyAuth 校验 X-API-Key，健康检查不需要鉴权
func APIKeyAuth(keys []string) app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:"+APIKeyHeader, ""),
		keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
			for _, k := range keys {
				if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
					return true, nil
				}
			}
			return false, errInvalidAPIKey
		}),
		keyauth.WithFilter(func(c context.Context, ctx *app.RequestContext) bool {
			return strings.HasSuffix(string(ctx.Path()), "/health")
		}),
		keyauth.WithErrorHandler(func(c context.Context, ctx *app.RequestContext, err error) {
			ctx.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "缺少或无效的 API Key"})
		}),
	)
}

// RegisterRoutes 注册 API 路由；apiKeys 为空时不启用鉴权
func RegisterRoutes(r *route.Engine, sh *handler.ScreeningHandler, apiKeys []string) {
	r.Use(RequestID())

	api := r.Group("/api/v1")
	if len(apiKeys) > 0 {
		api.Use(APIKeyAuth(apiKeys))
	}

	api.POST("/jd", sh.SetJob)
	api.GET("/jd", sh.GetJob)

	api.POST("/candidates/upload", sh.UploadResume)
	api.GET("/candidates", sh.ListCandidates)
	api.DELETE("/candidates", sh.ClearCandidates)
	api.GET("/candidates/:id", sh.GetCandidate)
	api.DELETE("/candidates/:id", sh.DeleteCandidate)
	api.GET("/candidates/:id/resume", sh.ResumeURL)

	api.GET("/stats", sh.Statistics)

	api.POST("/sheets/upload", sh.UploadSheet)
	api.POST("/sheets/import", sh.ImportSheet)
	api.GET("/sheets/failed", sh.FailedCandidates)
	api.DELETE("/sheets/failed", sh.ClearFailed)

	api.GET("/health", sh.Health)
}
