// Package storage 候选人、失败记录、当前JD等数据的持久化，以及原始简历归档和批量队列
package storage

import (
	"context"
	"errors"

	"resume-screener/internal/types"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("记录不存在")

// CandidateRepository 候选人持久化
type CandidateRepository interface {
	// Create 写入候选人，回填 ID 与 CreatedAt
	Create(ctx context.Context, c *types.Candidate) error
	// List 按 ID 升序返回全部候选人
	List(ctx context.Context) ([]*types.Candidate, error)
	Get(ctx context.Context, id int64) (*types.Candidate, error)
	Delete(ctx context.Context, id int64) error
	// Clear 删除全部候选人，返回删除条数
	Clear(ctx context.Context) (int64, error)
}

// FailureRepository 批量导入失败行
type FailureRepository interface {
	Add(ctx context.Context, f *types.FailedCandidate) error
	List(ctx context.Context) ([]*types.FailedCandidate, error)
	Clear(ctx context.Context) (int64, error)
}

// JobStore 保存当前生效的JD
type JobStore interface {
	SetJob(ctx context.Context, job *types.JobPosting) error
	// GetJob 未设置时返回 ErrNotFound
	GetJob(ctx context.Context) (*types.JobPosting, error)
}

// ResumeArchive 原始简历归档
type ResumeArchive interface {
	Archive(ctx context.Context, objectKey string, data []byte, contentType string) error
	PresignedURL(ctx context.Context, objectKey string) (string, error)
	// Remove 删除对象，对象不存在时不报错
	Remove(ctx context.Context, objectKey string) error
}

// Deduplicator 基于原始文件MD5的上传去重
type Deduplicator interface {
	// CheckAndAdd 原子地检查并登记，已存在时返回 true
	CheckAndAdd(ctx context.Context, md5Hex string) (bool, error)
	// Remove 处理失败或候选人被删除时撤销登记
	Remove(ctx context.Context, md5Hex string) error
	// Reset 清空全部登记
	Reset(ctx context.Context) error
}

// BatchQueue 批量导入的行消息队列
type BatchQueue interface {
	PublishBatchItem(ctx context.Context, msg *BatchItemMessage) error
	// ConsumeBatchItems 启动消费，handler 返回 false 时消息重新入队；关闭返回的通道即停止
	ConsumeBatchItems(handler func(ctx context.Context, msg *BatchItemMessage) bool) (chan<- struct{}, error)
}
