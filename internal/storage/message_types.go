package storage

import (
	"time"

	"resume-screener/internal/types"
)

// BatchItemMessage 批量导入中的一行，发布到批处理队列
type BatchItemMessage struct {
	BatchID    string         `json:"batch_id"`
	SourceFile string         `json:"source_file,omitempty"` // 原始表格文件名
	Row        types.SheetRow `json:"row"`
	Attempt    int            `json:"attempt"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}
