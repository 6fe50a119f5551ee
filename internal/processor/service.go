// Package processor 编排简历筛选流程：JD设置、简历上传评分、排名统计与表格批量导入
package processor

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"resume-screener/internal/constants"
	"resume-screener/internal/storage"
	"resume-screener/internal/textclean"
	"resume-screener/internal/tracing"
	"resume-screener/internal/types"
)

var tracer = otel.Tracer("resume-screener/processor")

// UploadRequest 单份简历上传
type UploadRequest struct {
	Name            string `validate:"required,max=255"`
	Email           string `validate:"required,email,max=255"`
	Phone           string `validate:"required,max=50"`
	ExperienceYears string `validate:"max=50"`
	CurrentLocation string `validate:"max=255"`
	NoticePeriod    string `validate:"max=100"`
	Filename        string `validate:"required,max=255"`
	Data            []byte `validate:"-"`
}

// UploadResult 上传评分结果
type UploadResult struct {
	Candidate *types.Candidate
	Score     *types.ScoreResult
}

// HealthStatus 健康检查结果
type HealthStatus struct {
	Status                 string            `json:"status"`
	CollaboratorConfigured bool              `json:"collaborator_configured"`
	OCREnabled             bool              `json:"ocr_enabled"`
	ScoringMode            string            `json:"scoring_mode"`
	JobSet                 bool              `json:"jd_set"`
	Storage                map[string]string `json:"storage,omitempty"`
}

// Service 简历筛选服务，可并发使用
type Service struct {
	components Components
	settings   Settings
	validate   *validator.Validate
	logger     zerolog.Logger
}

// NewService 创建筛选服务
func NewService(components Components, opts ...Option) (*Service, error) {
	if err := components.validate(); err != nil {
		return nil, err
	}
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	return &Service{
		components: components,
		settings:   settings,
		validate:   validator.New(),
		logger:     settings.Logger,
	}, nil
}

// SetJobDescription 校验并保存JD，同时解析需求
func (s *Service) SetJobDescription(ctx context.Context, text string) (*types.JobPosting, error) {
	ctx, span := tracer.Start(ctx, "Service.SetJobDescription")
	defer span.End()

	text = strings.TrimSpace(text)
	n := utf8.RuneCountInString(text)
	span.SetAttributes(attribute.Int("jd.length", n))
	if n < s.settings.JobMinLength {
		err := NewValidationError("jd_text", fmt.Sprintf("职位描述过短，至少需要 %d 个字符", s.settings.JobMinLength))
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	if n > s.settings.JobMaxLength {
		err := NewValidationError("jd_text", fmt.Sprintf("职位描述过长，最多 %d 个字符", s.settings.JobMaxLength))
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	reqs, err := s.components.Parser.ParseJD(ctx, text)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return nil, fmt.Errorf("解析职位需求失败: %w", err)
	}

	job := &types.JobPosting{Text: text, Requirements: reqs, UpdatedAt: s.settings.Now()}
	if err := s.components.Jobs.SetJob(ctx, job); err != nil {
		err = NewStoreError("jd", "保存职位描述失败", err)
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, err
	}

	s.logger.Info().
		Int("length", n).
		Int("skills", len(reqs.Skills)).
		Int("keywords", len(reqs.Keywords)).
		Msg("职位描述已更新")
	span.SetStatus(codes.Ok, "")
	return job, nil
}

// CurrentJob 当前JD，未设置时返回 ErrJobNotSet
func (s *Service) CurrentJob(ctx context.Context) (*types.JobPosting, error) {
	job, err := s.components.Jobs.GetJob(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrJobNotSet
	}
	if err != nil {
		return nil, fmt.Errorf("读取职位描述失败: %w", err)
	}
	return job, nil
}

func (s *Service) checkFile(filename string, size int) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(s.settings.AllowedExtensions, ext) {
		return NewUploadError(filename, ErrUnsupportedFile,
			fmt.Sprintf("文件类型 %q 不受支持，允许: %v", ext, s.settings.AllowedExtensions))
	}
	if size == 0 {
		return NewValidationError(filename, "文件内容为空")
	}
	if int64(size) > s.settings.MaxFileSize {
		return NewUploadError(filename, ErrFileTooLarge,
			fmt.Sprintf("最大允许 %.0fMB", float64(s.settings.MaxFileSize)/1024/1024))
	}
	return nil
}

func (s *Service) validationError(ref string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewValidationError(ref, err.Error())
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s 不满足 %s", fe.Field(), fe.Tag()))
	}
	return NewValidationError(ref, strings.Join(parts, "; "))
}

// ScreenUpload 校验 → 去重 → 提取 → 联系方式 → 评分 → 归档 → 入库
func (s *Service) ScreenUpload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	ctx, span := tracer.Start(ctx, "Service.ScreenUpload",
		trace.WithAttributes(
			attribute.String("resume.filename", req.Filename),
			attribute.Int("resume.size", len(req.Data)),
			attribute.String("candidate.email", tracing.SafeAttributeValue("email", req.Email, tracing.DefaultMaxLength)),
		))
	defer span.End()

	if err := s.validate.Struct(req); err != nil {
		err = s.validationError(req.Filename, err)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	if err := s.checkFile(req.Filename, len(req.Data)); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	job, err := s.CurrentJob(ctx)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	sum := md5.Sum(req.Data)
	fileMD5 := hex.EncodeToString(sum[:])
	registered := false
	if s.settings.Dedupe && s.components.Dedup != nil {
		exists, err := s.components.Dedup.CheckAndAdd(ctx, fileMD5)
		if err != nil {
			// 去重失败不阻塞上传
			s.logger.Warn().Err(err).Str("md5", fileMD5).Msg("文件去重检查失败")
		} else if exists {
			err := NewUploadError(req.Filename, ErrDuplicateUpload, "md5 "+fileMD5)
			tracing.RecordError(span, err, tracing.ErrorTypeValidation)
			return nil, err
		} else {
			registered = true
		}
	}
	rollback := func() {
		if registered {
			if err := s.components.Dedup.Remove(context.WithoutCancel(ctx), fileMD5); err != nil {
				s.logger.Warn().Err(err).Str("md5", fileMD5).Msg("回滚文件MD5失败")
			}
		}
	}

	candidate := &types.Candidate{
		Name:            strings.TrimSpace(req.Name),
		Email:           strings.TrimSpace(req.Email),
		Phone:           strings.TrimSpace(req.Phone),
		ExperienceYears: req.ExperienceYears,
		CurrentLocation: req.CurrentLocation,
		NoticePeriod:    req.NoticePeriod,
		Source:          constants.SourceUpload,
		ResumeFilename:  req.Filename,
		FileMD5:         fileMD5,
	}
	result, err := s.screen(ctx, span, job, candidate, req.Data)
	if err != nil {
		rollback()
		return nil, err
	}

	s.logger.Info().
		Int64("candidate_id", candidate.ID).
		Str("file", req.Filename).
		Float64("overall", result.OverallScore).
		Str("mode", result.Mode).
		Msg("候选人评分完成")
	span.SetStatus(codes.Ok, "")
	return &UploadResult{Candidate: candidate, Score: result}, nil
}

// screen 上传与批处理共用的 提取 → 评分 → 归档 → 入库 流程，成功后回填 candidate
func (s *Service) screen(ctx context.Context, span trace.Span, job *types.JobPosting, candidate *types.Candidate, data []byte) (*types.ScoreResult, error) {
	ref := candidate.ResumeFilename

	text, err := s.components.Extractor.Extract(ctx, data, candidate.ResumeFilename)
	if err != nil {
		err = NewExtractError(ref, err)
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("resume.text_length", utf8.RuneCountInString(text)),
		attribute.String("resume.preview", tracing.SafeResumeContent(text)),
	)

	contact := textclean.ExtractContactInfo(text)

	result, err := s.components.Scorer.Score(ctx, job.Text, text, job.Requirements)
	if err != nil {
		err = NewScoreError(ref, err)
		tracing.RecordError(span, err, tracing.ErrorTypeScoring)
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("生成候选人UUID失败: %w", err)
	}
	candidate.UUID = id.String()
	candidate.ResumeText = text
	candidate.Contact = contact
	candidate.Scores = result.ScoringBreakdown
	candidate.Explanation = result.Explanation
	candidate.ScoringMode = result.Mode
	candidate.Status = constants.StatusScreened
	candidate.CreatedAt = s.settings.Now()
	if candidate.Email == "" {
		candidate.Email = contact.Email
	}
	if candidate.Phone == "" {
		candidate.Phone = contact.Phone
	}

	if s.components.Archive != nil {
		key := constants.ObjectKeyPrefix + candidate.UUID + strings.ToLower(filepath.Ext(candidate.ResumeFilename))
		if err := s.components.Archive.Archive(ctx, key, data, storage.ContentTypeFor(key)); err != nil {
			// 归档失败不影响评分结果
			s.logger.Warn().Err(err).Str("key", key).Msg("归档原始简历失败")
		} else {
			candidate.ResumeObjectKey = key
		}
	}

	if err := s.components.Candidates.Create(ctx, candidate); err != nil {
		if candidate.ResumeObjectKey != "" {
			if rmErr := s.components.Archive.Remove(context.WithoutCancel(ctx), candidate.ResumeObjectKey); rmErr != nil {
				s.logger.Warn().Err(rmErr).Str("key", candidate.ResumeObjectKey).Msg("回滚归档简历失败")
			}
		}
		err = NewStoreError(ref, "保存候选人失败", err)
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64("candidate.id", candidate.ID),
		attribute.Float64("score.overall", result.OverallScore),
		attribute.String("score.mode", result.Mode),
	)
	return result, nil
}

// ListRanked 按总分降序排名，同分时 ID 小的在前
func (s *Service) ListRanked(ctx context.Context) ([]types.CandidateSummary, error) {
	candidates, err := s.components.Candidates.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取候选人列表失败: %w", err)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Scores.OverallScore != b.Scores.OverallScore {
			return a.Scores.OverallScore > b.Scores.OverallScore
		}
		return a.ID < b.ID
	})
	out := make([]types.CandidateSummary, len(candidates))
	for i, c := range candidates {
		out[i] = c.Summary()
		out[i].Rank = i + 1
	}
	return out, nil
}

// GetCandidate 候选人详情，包含简历全文
func (s *Service) GetCandidate(ctx context.Context, id int64) (*types.Candidate, error) {
	c, err := s.components.Candidates.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrCandidateNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("读取候选人失败: %w", err)
	}
	return c, nil
}

// DeleteCandidate 删除候选人并释放其文件MD5，允许重新上传
func (s *Service) DeleteCandidate(ctx context.Context, id int64) error {
	c, err := s.GetCandidate(ctx, id)
	if err != nil {
		return err
	}
	if err := s.components.Candidates.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrCandidateNotFound, id)
		}
		return NewStoreError(strconv.FormatInt(id, 10), "删除候选人失败", err)
	}
	if s.components.Dedup != nil && c.FileMD5 != "" {
		if err := s.components.Dedup.Remove(ctx, c.FileMD5); err != nil {
			s.logger.Warn().Err(err).Int64("candidate_id", id).Msg("释放文件MD5失败")
		}
	}
	s.logger.Info().Int64("candidate_id", id).Msg("候选人已删除")
	return nil
}

// ClearCandidates 清空候选人，返回删除条数
func (s *Service) ClearCandidates(ctx context.Context) (int64, error) {
	n, err := s.components.Candidates.Clear(ctx)
	if err != nil {
		return 0, NewStoreError("candidates", "清空候选人失败", err)
	}
	if s.components.Dedup != nil {
		if err := s.components.Dedup.Reset(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("清空文件MD5集合失败")
		}
	}
	s.logger.Info().Int64("count", n).Msg("候选人已清空")
	return n, nil
}

// ResumeURL 原始简历的限时下载链接
func (s *Service) ResumeURL(ctx context.Context, id int64) (string, error) {
	c, err := s.GetCandidate(ctx, id)
	if err != nil {
		return "", err
	}
	if s.components.Archive == nil || c.ResumeObjectKey == "" {
		return "", fmt.Errorf("%w: %d", ErrResumeNotArchived, id)
	}
	return s.components.Archive.PresignedURL(ctx, c.ResumeObjectKey)
}

// Statistics 候选人汇总统计；今日处理数按本地日历日计算
func (s *Service) Statistics(ctx context.Context) (*types.Statistics, error) {
	candidates, err := s.components.Candidates.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取候选人列表失败: %w", err)
	}
	_, jobErr := s.components.Jobs.GetJob(ctx)
	if jobErr != nil && !errors.Is(jobErr, storage.ErrNotFound) {
		return nil, fmt.Errorf("读取职位描述失败: %w", jobErr)
	}

	stats := &types.Statistics{
		TotalCandidates: len(candidates),
		JobSet:          jobErr == nil,
		Distribution:    types.ScoreDistribution{},
	}
	if len(candidates) == 0 {
		return stats, nil
	}

	for _, b := range types.ScoreBuckets {
		stats.Distribution[b] = 0
	}
	now := s.settings.Now()
	y, m, d := now.Date()
	var sum float64
	stats.TopScore = math.Inf(-1)
	stats.LowestScore = math.Inf(1)
	for _, c := range candidates {
		score := c.Scores.OverallScore
		sum += score
		stats.TopScore = math.Max(stats.TopScore, score)
		stats.LowestScore = math.Min(stats.LowestScore, score)
		stats.Distribution[types.BucketFor(score)]++

		cy, cm, cd := c.CreatedAt.In(now.Location()).Date()
		if cy == y && cm == m && cd == d {
			stats.ProcessedToday++
		}
	}
	stats.AverageScore = math.Round(sum/float64(len(candidates))*100) / 100
	return stats, nil
}

// Health 推理服务、OCR 与存储后端状态
func (s *Service) Health(ctx context.Context) *HealthStatus {
	h := &HealthStatus{
		Status:                 "healthy",
		CollaboratorConfigured: s.settings.CollaboratorConfigured,
		OCREnabled:             s.components.Extractor.OCREnabled(),
		ScoringMode:            s.components.Scorer.Mode(),
	}
	if _, err := s.components.Jobs.GetJob(ctx); err == nil {
		h.JobSet = true
	}
	if s.components.Pinger != nil {
		h.Storage = s.components.Pinger(ctx)
		for _, msg := range h.Storage {
			if msg != "" {
				h.Status = "degraded"
			}
		}
	}
	return h
}
