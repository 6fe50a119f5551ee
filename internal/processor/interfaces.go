package processor

import (
	"context"

	"resume-screener/internal/source"
	"resume-screener/internal/storage"
	"resume-screener/internal/types"
)

// TextExtractor 从原始文件提取清洗后的文本
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, filename string) (string, error)
	OCREnabled() bool
}

// RequirementsParser 解析JD需求
type RequirementsParser interface {
	ParseJD(ctx context.Context, jobText string) (*types.JobRequirements, error)
}

// Scorer 按JD为简历评分
type Scorer interface {
	Score(ctx context.Context, jobText, resumeText string, reqs *types.JobRequirements) (*types.ScoreResult, error)
	Mode() string
}

// Components 服务依赖的组件；Dedup、Archive、Queue、Downloader、Sheets 可为空
type Components struct {
	Extractor TextExtractor
	Parser    RequirementsParser
	Scorer    Scorer

	Candidates storage.CandidateRepository
	Failures   storage.FailureRepository
	Jobs       storage.JobStore
	Dedup      storage.Deduplicator
	Archive    storage.ResumeArchive
	Queue      storage.BatchQueue

	Downloader source.Downloader
	Sheets     source.SheetReader
	// Pinger 返回各存储后端的连通性，名称 -> 错误信息(空为正常)
	Pinger func(ctx context.Context) map[string]string
}

// UseStorage 从存储聚合中填充仓储类组件
func (c *Components) UseStorage(s *storage.Storage) {
	c.Candidates = s.Candidates
	c.Failures = s.Failures
	c.Jobs = s.Jobs
	c.Dedup = s.Dedup
	c.Archive = s.Archive
	c.Queue = s.Queue
	c.Pinger = s.Ping
}

func (c *Components) validate() error {
	switch {
	case c.Extractor == nil:
		return errNotInit("extractor")
	case c.Parser == nil:
		return errNotInit("requirements parser")
	case c.Scorer == nil:
		return errNotInit("scorer")
	case c.Candidates == nil || c.Failures == nil || c.Jobs == nil:
		return errNotInit("storage")
	}
	return nil
}
