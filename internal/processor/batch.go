package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"resume-screener/internal/constants"
	"resume-screener/internal/ratelimit"
	"resume-screener/internal/source"
	"resume-screener/internal/storage"
	"resume-screener/internal/tracing"
	"resume-screener/internal/types"
)

// 批处理状态
const (
	BatchQueued    = "queued"
	BatchCompleted = "completed"
)

// BatchResult 一次表格导入的结果；排队模式下只有 TotalRows 与入队失败的行
type BatchResult struct {
	BatchID      string                  `json:"batch_id"`
	Status       string                  `json:"status"`
	TotalRows    int                     `json:"total_rows"`
	QueuedRows   int                     `json:"queued_rows,omitempty"`
	SuccessCount int                     `json:"success_count"`
	FailCount    int                     `json:"fail_count"`
	Failed       []types.FailedCandidate `json:"failed_candidates"`
}

// ProcessSheet 解析上传的表格并处理每一行。配置了队列时逐行入队，否则在本进程内并发处理
func (s *Service) ProcessSheet(ctx context.Context, filename string, data []byte) (*BatchResult, error) {
	ctx, span := tracer.Start(ctx, "Service.ProcessSheet",
		trace.WithAttributes(attribute.String("sheet.filename", filename)))
	defer span.End()

	job, err := s.batchPreconditions(ctx, span)
	if err != nil {
		return nil, err
	}

	rows, err := source.ParseSheet(filename, data)
	if err != nil {
		err = NewValidationError(filename, err.Error())
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	return s.processRows(ctx, span, job, filename, rows)
}

// ProcessSheetURL 读取 Google Sheets 在线表格，其余流程与 ProcessSheet 相同
func (s *Service) ProcessSheetURL(ctx context.Context, link, rangeName string) (*BatchResult, error) {
	ctx, span := tracer.Start(ctx, "Service.ProcessSheetURL",
		trace.WithAttributes(attribute.String("sheet.url", link), attribute.String("sheet.range", rangeName)))
	defer span.End()

	if s.components.Sheets == nil {
		return nil, ErrSourceUnavailable
	}
	job, err := s.batchPreconditions(ctx, span)
	if err != nil {
		return nil, err
	}

	rows, err := s.components.Sheets.ReadRows(ctx, link, rangeName)
	if err != nil {
		if errors.Is(err, source.ErrInvalidSheetURL) || errors.Is(err, source.ErrMissingResumeColumn) ||
			errors.Is(err, source.ErrEmptySheet) {
			err = NewValidationError(link, err.Error())
			tracing.RecordError(span, err, tracing.ErrorTypeValidation)
			return nil, err
		}
		err = NewDownloadError(link, err)
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return nil, err
	}
	return s.processRows(ctx, span, job, link, rows)
}

func (s *Service) batchPreconditions(ctx context.Context, span trace.Span) (*types.JobPosting, error) {
	job, err := s.CurrentJob(ctx)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	if s.components.Downloader == nil {
		return nil, ErrSourceUnavailable
	}
	return job, nil
}

func (s *Service) processRows(ctx context.Context, span trace.Span, job *types.JobPosting, filename string, rows []types.SheetRow) (*BatchResult, error) {
	result := &BatchResult{
		BatchID:   uuid.NewString(),
		TotalRows: len(rows),
		Failed:    []types.FailedCandidate{},
	}
	span.SetAttributes(
		attribute.String("batch.id", result.BatchID),
		attribute.Int("batch.rows", len(rows)),
	)
	log := s.logger.With().Str("batch_id", result.BatchID).Str("file", filename).Logger()
	log.Info().Int("rows", len(rows)).Msg("开始处理表格")

	pending := make([]types.SheetRow, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.ResumeLink) == "" {
			fc := s.recordFailure(ctx, result.BatchID, row, OpValidate, "缺少简历链接")
			result.Failed = append(result.Failed, fc)
			continue
		}
		pending = append(pending, row)
	}

	if s.components.Queue != nil {
		s.enqueueRows(ctx, filename, pending, result)
		result.Status = BatchQueued
		result.FailCount = len(result.Failed)
		log.Info().Int("queued", result.QueuedRows).Int("failed", result.FailCount).Msg("表格已入队")
		span.SetStatus(codes.Ok, "")
		return result, nil
	}

	failed := make([]*types.FailedCandidate, len(pending))
	var success atomic.Int64
	bucket := s.newRetryBucket()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.Workers)
	for i, row := range pending {
		g.Go(func() error {
			if err := s.processRowWithRetry(gctx, bucket, job, row); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				fc := s.recordFailure(gctx, result.BatchID, row, stageOf(err), err.Error())
				failed[i] = &fc
				return nil
			}
			success.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return nil, fmt.Errorf("批处理被中断: %w", err)
	}

	for _, fc := range failed {
		if fc != nil {
			result.Failed = append(result.Failed, *fc)
		}
	}
	result.Status = BatchCompleted
	result.SuccessCount = int(success.Load())
	result.FailCount = len(result.Failed)
	span.SetAttributes(
		attribute.Int("batch.success", result.SuccessCount),
		attribute.Int("batch.failed", result.FailCount),
	)
	log.Info().Int("success", result.SuccessCount).Int("failed", result.FailCount).Msg("表格处理完成")
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (s *Service) enqueueRows(ctx context.Context, filename string, rows []types.SheetRow, result *BatchResult) {
	for _, row := range rows {
		msg := &storage.BatchItemMessage{
			BatchID:    result.BatchID,
			SourceFile: filename,
			Row:        row,
			EnqueuedAt: s.settings.Now(),
		}
		if err := s.components.Queue.PublishBatchItem(ctx, msg); err != nil {
			err = NewEnqueueError(rowRef(row), err)
			fc := s.recordFailure(ctx, result.BatchID, row, OpEnqueue, err.Error())
			result.Failed = append(result.Failed, fc)
			continue
		}
		result.QueuedRows++
	}
}

// StartBatchConsumer 启动 workers 个队列消费者，workers<=0 时使用默认并发数；返回的函数停止全部消费
func (s *Service) StartBatchConsumer(ctx context.Context, workers int) (func(), error) {
	if s.components.Queue == nil {
		return nil, ErrQueueUnavailable
	}
	if s.components.Downloader == nil {
		return nil, ErrSourceUnavailable
	}
	if workers <= 0 {
		workers = s.settings.Workers
	}
	bucket := s.newRetryBucket()
	handler := func(msgCtx context.Context, msg *storage.BatchItemMessage) bool {
		if ctx.Err() != nil {
			return false
		}
		return s.HandleBatchItem(msgCtx, bucket, msg)
	}

	var once sync.Once
	stops := make([]chan<- struct{}, 0, workers)
	stopAll := func() {
		once.Do(func() {
			for _, stop := range stops {
				close(stop)
			}
		})
	}
	for i := 0; i < workers; i++ {
		stop, err := s.components.Queue.ConsumeBatchItems(handler)
		if err != nil {
			stopAll()
			return nil, fmt.Errorf("启动第 %d 个批处理消费者失败: %w", i+1, err)
		}
		stops = append(stops, stop)
	}
	s.logger.Info().Int("workers", workers).Msg("批处理消费者已启动")
	return stopAll, nil
}

// HandleBatchItem 处理一条队列消息。返回 false 表示需要重新投递，只在服务停止时发生
func (s *Service) HandleBatchItem(ctx context.Context, bucket *ratelimit.TokenBucket, msg *storage.BatchItemMessage) bool {
	log := s.logger.With().Str("batch_id", msg.BatchID).Int("row", msg.Row.RowNumber).Logger()

	job, err := s.CurrentJob(ctx)
	if err != nil {
		s.recordFailure(ctx, msg.BatchID, msg.Row, OpValidate, err.Error())
		return true
	}
	if bucket == nil {
		bucket = s.newRetryBucket()
	}
	if err := s.processRowWithRetry(ctx, bucket, job, msg.Row); err != nil {
		if ctx.Err() != nil {
			log.Warn().Err(err).Msg("处理中断，消息将重新投递")
			return false
		}
		s.recordFailure(ctx, msg.BatchID, msg.Row, stageOf(err), err.Error())
		log.Warn().Err(err).Msg("表格行处理失败")
		return true
	}
	log.Debug().Msg("表格行处理完成")
	return true
}

func (s *Service) newRetryBucket() *ratelimit.TokenBucket {
	return ratelimit.NewTokenBucket(s.settings.DriveQPM, s.settings.Workers).
		WithRetryPolicy(s.settings.RetryWait, s.settings.MaxRetries).
		WithRetryable(retryableRowError)
}

// retryableRowError 只重试下载、存储等临时性故障；文件本身的问题重试无意义
func retryableRowError(err error) bool {
	if errors.Is(err, ErrExtractFailed) || errors.Is(err, ErrValidation) || errors.Is(err, source.ErrInvalidDriveLink) {
		return false
	}
	return ratelimit.IsRetryableError(err)
}

func (s *Service) processRowWithRetry(ctx context.Context, bucket *ratelimit.TokenBucket, job *types.JobPosting, row types.SheetRow) error {
	return bucket.RetryWithBackoff(ctx, func() error {
		return s.processRow(ctx, job, row)
	})
}

// processRow 下载 → 提取 → 评分 → 入库
func (s *Service) processRow(ctx context.Context, job *types.JobPosting, row types.SheetRow) error {
	ctx, span := tracer.Start(ctx, "Service.processRow",
		trace.WithAttributes(attribute.Int("sheet.row", row.RowNumber)))
	defer span.End()

	ref := rowRef(row)
	data, filename, err := s.components.Downloader.Download(ctx, row.ResumeLink)
	if err != nil {
		err = NewDownloadError(ref, err)
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return err
	}
	if filename == "" {
		filename = fmt.Sprintf("row%d.pdf", row.RowNumber)
	}

	candidate := &types.Candidate{
		Name:            row.Name,
		Email:           strings.TrimSpace(row.Email),
		Phone:           strings.TrimSpace(row.Phone),
		ExperienceYears: row.Experience,
		ExpectedCTC:     row.ExpectedCTC,
		Source:          constants.SourceSheet,
		ResumeFilename:  filename,
	}
	if _, err := s.screen(ctx, span, job, candidate, data); err != nil {
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (s *Service) recordFailure(ctx context.Context, batchID string, row types.SheetRow, stage, msg string) types.FailedCandidate {
	fc := types.FailedCandidate{
		BatchID:     batchID,
		RowNumber:   row.RowNumber,
		Name:        row.Name,
		Email:       row.Email,
		Phone:       row.Phone,
		Experience:  row.Experience,
		ExpectedCTC: row.ExpectedCTC,
		ResumeLink:  row.ResumeLink,
		Stage:       stage,
		Error:       msg,
		Status:      constants.StatusFailed,
		CreatedAt:   s.settings.Now(),
	}
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.components.Failures.Add(storeCtx, &fc); err != nil {
		s.logger.Error().Err(err).Str("batch_id", batchID).Int("row", row.RowNumber).Msg("保存失败记录失败")
	}
	return fc
}

func stageOf(err error) string {
	if op := OpOf(err); op != "" {
		return op
	}
	return "unknown"
}

func rowRef(row types.SheetRow) string {
	return fmt.Sprintf("row %d", row.RowNumber)
}

// FailedCandidates 所有失败记录
func (s *Service) FailedCandidates(ctx context.Context) ([]*types.FailedCandidate, error) {
	return s.components.Failures.List(ctx)
}

// ClearFailed 清空失败记录
func (s *Service) ClearFailed(ctx context.Context) (int64, error) {
	n, err := s.components.Failures.Clear(ctx)
	if err != nil {
		return 0, NewStoreError("failed_candidates", "清空失败记录失败", err)
	}
	return n, nil
}
