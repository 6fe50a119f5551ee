package models

import (
	"time"

	"gorm.io/datatypes"
)

// 发件箱消息状态
const (
	OutboxPending = "PENDING"
	OutboxSent    = "SENT"
	OutboxFailed  = "FAILED"
)

// OutboxMessage 待发布到 RabbitMQ 的批处理消息，由中继轮询发送
type OutboxMessage struct {
	ID               uint64         `gorm:"primaryKey;autoIncrement"`
	AggregateID      string         `gorm:"type:varchar(64);index:idx_outbox_aggregate"` // 批次ID
	EventType        string         `gorm:"type:varchar(64)"`
	Payload          datatypes.JSON `gorm:"type:json;not null"`
	TargetExchange   string         `gorm:"type:varchar(255);not null"`
	TargetRoutingKey string         `gorm:"type:varchar(255);not null"`
	Status           string         `gorm:"type:varchar(16);not null;default:'PENDING';index:idx_outbox_status_created,priority:1"`
	RetryCount       int            `gorm:"not null;default:0"`
	ErrorMessage     string         `gorm:"type:text"`
	CreatedAt        time.Time      `gorm:"type:datetime(6);index:idx_outbox_status_created,priority:2"`
	ProcessedAt      *time.Time     `gorm:"type:datetime(6)"`
}

// TableName 表名
func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
