// Package handler 简历筛选 HTTP 接口
package handler

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"

	"resume-screener/internal/processor"
)

// ScreeningHandler 负责把 HTTP 请求转交给筛选服务
type ScreeningHandler struct {
	svc    *processor.Service
	logger zerolog.Logger
}

// NewScreeningHandler 创建处理器
func NewScreeningHandler(svc *processor.Service, logger zerolog.Logger) *ScreeningHandler {
	return &ScreeningHandler{svc: svc, logger: logger}
}

type setJobRequest struct {
	JDText string `json:"jd_text" form:"jd_text"`
}

// SetJob 设置职位描述，支持表单字段 jd_text 或 JSON
// POST /api/v1/jd
func (h *ScreeningHandler) SetJob(ctx context.Context, c *app.RequestContext) {
	text := c.PostForm("jd_text")
	if text == "" && strings.HasPrefix(string(c.ContentType()), "application/json") {
		var req setJobRequest
		if err := c.BindJSON(&req); err != nil {
			h.writeError(ctx, c, processor.NewValidationError("jd_text", "请求体不是合法的JSON"))
			return
		}
		text = req.JDText
	}

	job, err := h.svc.SetJobDescription(ctx, text)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{
		"message":      "职位描述已更新",
		"jd_length":    len([]rune(job.Text)),
		"requirements": job.Requirements,
	})
}

// GetJob 当前职位描述
// GET /api/v1/jd
func (h *ScreeningHandler) GetJob(ctx context.Context, c *app.RequestContext) {
	job, err := h.svc.CurrentJob(ctx)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, job)
}

func readFormFile(c *app.RequestContext, field string) (string, []byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return "", nil, processor.NewValidationError(field, "缺少上传文件")
	}
	data, err := readFileHeader(fh)
	if err != nil {
		return "", nil, fmt.Errorf("读取上传文件失败: %w", err)
	}
	return fh.Filename, data, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// UploadResume 上传单份简历并评分
// POST /api/v1/candidates/upload
func (h *ScreeningHandler) UploadResume(ctx context.Context, c *app.RequestContext) {
	filename, data, err := readFormFile(c, "resume")
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}

	res, err := h.svc.ScreenUpload(ctx, processor.UploadRequest{
		Name:            c.PostForm("name"),
		Email:           c.PostForm("email"),
		Phone:           c.PostForm("phone"),
		ExperienceYears: c.PostForm("experience_years"),
		CurrentLocation: c.PostForm("current_location"),
		NoticePeriod:    c.PostForm("notice_period"),
		Filename:        filename,
		Data:            data,
	})
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{
		"message":      "简历评分完成",
		"candidate_id": res.Candidate.ID,
		"candidate":    res.Candidate.Summary(),
		"scores":       res.Score.ScoringBreakdown,
		"explanation":  res.Score.Explanation,
		"scoring_mode": res.Score.Mode,
		"contact_info": res.Candidate.Contact,
	})
}

// ListCandidates 按总分排名的候选人列表
// GET /api/v1/candidates
func (h *ScreeningHandler) ListCandidates(ctx context.Context, c *app.RequestContext) {
	list, err := h.svc.ListRanked(ctx)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"total": len(list), "candidates": list})
}

func parseID(c *app.RequestContext) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, processor.NewValidationError(raw, "候选人ID必须是正整数")
	}
	return id, nil
}

// GetCandidate 候选人详情
// GET /api/v1/candidates/:id
func (h *ScreeningHandler) GetCandidate(ctx context.Context, c *app.RequestContext) {
	id, err := parseID(c)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	cand, err := h.svc.GetCandidate(ctx, id)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, cand)
}

// DeleteCandidate 删除候选人
// DELETE /api/v1/candidates/:id
func (h *ScreeningHandler) DeleteCandidate(ctx context.Context, c *app.RequestContext) {
	id, err := parseID(c)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	if err := h.svc.DeleteCandidate(ctx, id); err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"message": "候选人已删除", "id": id})
}

// ClearCandidates 清空候选人
// DELETE /api/v1/candidates
func (h *ScreeningHandler) ClearCandidates(ctx context.Context, c *app.RequestContext) {
	n, err := h.svc.ClearCandidates(ctx)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"message": "候选人已清空", "deleted": n})
}

// ResumeURL 原始简历下载链接
// GET /api/v1/candidates/:id/resume
func (h *ScreeningHandler) ResumeURL(ctx context.Context, c *app.RequestContext) {
	id, err := parseID(c)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	url, err := h.svc.ResumeURL(ctx, id)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"id": id, "url": url})
}

// Statistics 汇总统计
// GET /api/v1/stats
func (h *ScreeningHandler) Statistics(ctx context.Context, c *app.RequestContext) {
	stats, err := h.svc.Statistics(ctx)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, stats)
}

// UploadSheet 批量导入表格；排队模式返回 202
// POST /api/v1/sheets/upload
func (h *ScreeningHandler) UploadSheet(ctx context.Context, c *app.RequestContext) {
	filename, data, err := readFormFile(c, "sheet")
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	res, err := h.svc.ProcessSheet(ctx, filename, data)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	status := consts.StatusOK
	if res.Status == processor.BatchQueued {
		status = consts.StatusAccepted
	}
	c.JSON(status, res)
}

type importSheetRequest struct {
	SheetURL string `json:"sheet_url" form:"sheet_url"`
	Range    string `json:"range" form:"range"`
}

// ImportSheet 按 Google Sheets 链接批量导入
// POST /api/v1/sheets/import
func (h *ScreeningHandler) ImportSheet(ctx context.Context, c *app.RequestContext) {
	req := importSheetRequest{SheetURL: c.PostForm("sheet_url"), Range: c.PostForm("range")}
	if req.SheetURL == "" && strings.HasPrefix(string(c.ContentType()), "application/json") {
		if err := c.BindJSON(&req); err != nil {
			h.writeError(ctx, c, processor.NewValidationError("sheet_url", "请求体不是合法的JSON"))
			return
		}
	}
	if strings.TrimSpace(req.SheetURL) == "" {
		h.writeError(ctx, c, processor.NewValidationError("sheet_url", "缺少表格链接"))
		return
	}

	res, err := h.svc.ProcessSheetURL(ctx, strings.TrimSpace(req.SheetURL), req.Range)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	status := consts.StatusOK
	if res.Status == processor.BatchQueued {
		status = consts.StatusAccepted
	}
	c.JSON(status, res)
}

// FailedCandidates 批量导入失败的行
// GET /api/v1/sheets/failed
func (h *ScreeningHandler) FailedCandidates(ctx context.Context, c *app.RequestContext) {
	failed, err := h.svc.FailedCandidates(ctx)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"total": len(failed), "failed_candidates": failed})
}

// ClearFailed 清空失败记录
// DELETE /api/v1/sheets/failed
func (h *ScreeningHandler) ClearFailed(ctx context.Context, c *app.RequestContext) {
	n, err := h.svc.ClearFailed(ctx)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"message": "失败记录已清空", "deleted": n})
}

// Health 健康检查
// GET /api/v1/health
func (h *ScreeningHandler) Health(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, h.svc.Health(ctx))
}
