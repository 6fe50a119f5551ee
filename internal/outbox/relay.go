// Package outbox 发件箱模式：批处理消息先写入 MySQL，再由中继发布到 RabbitMQ，
// RabbitMQ 短暂不可用时表格导入不会丢行
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"resume-screener/internal/storage"
	"resume-screener/internal/storage/models"
)

const (
	defaultPollingInterval = 2 * time.Second
	defaultBatchSize       = 50
	maxRetryCount          = 5

	// EventBatchItem 表格行事件
	EventBatchItem = "batch.item"
)

// Publisher 消息发布器，由 storage.RabbitMQ 实现
type Publisher interface {
	PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error
}

// Queue 写入发件箱的批处理队列；消费仍直接走 RabbitMQ
type Queue struct {
	db         *gorm.DB
	consumer   storage.BatchQueue
	exchange   string
	routingKey string
}

// NewQueue 创建发件箱队列
func NewQueue(db *gorm.DB, consumer storage.BatchQueue, exchange, routingKey string) *Queue {
	return &Queue{db: db, consumer: consumer, exchange: exchange, routingKey: routingKey}
}

// NewOutboxMessage 将批处理消息封装为待发送的发件箱记录
func NewOutboxMessage(msg *storage.BatchItemMessage, exchange, routingKey string) (*models.OutboxMessage, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("序列化批处理消息失败: %w", err)
	}
	return &models.OutboxMessage{
		AggregateID:      msg.BatchID,
		EventType:        EventBatchItem,
		Payload:          payload,
		TargetExchange:   exchange,
		TargetRoutingKey: routingKey,
		Status:           models.OutboxPending,
	}, nil
}

// PublishBatchItem 写入发件箱，实际发布由 MessageRelay 完成
func (q *Queue) PublishBatchItem(ctx context.Context, msg *storage.BatchItemMessage) error {
	record, err := NewOutboxMessage(msg, q.exchange, q.routingKey)
	if err != nil {
		return err
	}
	if err := q.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("写入发件箱失败: %w", err)
	}
	return nil
}

// ConsumeBatchItems 委托给底层队列
func (q *Queue) ConsumeBatchItems(handler func(ctx context.Context, msg *storage.BatchItemMessage) bool) (chan<- struct{}, error) {
	return q.consumer.ConsumeBatchItems(handler)
}

var _ storage.BatchQueue = (*Queue)(nil)

// MessageRelay 轮询发件箱表并发布到消息代理
type MessageRelay struct {
	db              *gorm.DB
	publisher       Publisher
	logger          zerolog.Logger
	pollingInterval time.Duration
	batchSize       int
	done            chan struct{}
	stopped         chan struct{}
	tracer          trace.Tracer
}

// RelayOption 中继选项
type RelayOption func(*MessageRelay)

// WithPollingInterval 轮询间隔
func WithPollingInterval(d time.Duration) RelayOption {
	return func(r *MessageRelay) {
		if d > 0 {
			r.pollingInterval = d
		}
	}
}

// WithBatchSize 每次轮询处理的条数
func WithBatchSize(n int) RelayOption {
	return func(r *MessageRelay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// NewMessageRelay 创建消息中继
func NewMessageRelay(db *gorm.DB, publisher Publisher, logger zerolog.Logger, opts ...RelayOption) *MessageRelay {
	r := &MessageRelay{
		db:              db,
		publisher:       publisher,
		logger:          logger,
		pollingInterval: defaultPollingInterval,
		batchSize:       defaultBatchSize,
		done:            make(chan struct{}),
		stopped:         make(chan struct{}),
		tracer:          otel.Tracer("resume-screener/outbox"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start 启动后台轮询
func (r *MessageRelay) Start() {
	r.logger.Info().Dur("interval", r.pollingInterval).Msg("消息中继启动")
	ticker := time.NewTicker(r.pollingInterval)

	go func() {
		defer close(r.stopped)
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				r.logger.Info().Msg("消息中继已停止")
				return
			case <-ticker.C:
				if _, err := r.ProcessPending(context.Background()); err != nil {
					r.logger.Error().Err(err).Msg("处理发件箱消息失败")
				}
			}
		}
	}()
}

// Stop 停止轮询并等待当前批次结束
func (r *MessageRelay) Stop() {
	close(r.done)
	<-r.stopped
}

// ProcessPending 发布一批待发送消息，返回成功发送的条数
func (r *MessageRelay) ProcessPending(ctx context.Context) (int, error) {
	var messages []models.OutboxMessage

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, tx.Error
	}
	defer tx.Rollback()

	// SKIP LOCKED 允许多个实例同时运行中继
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", models.OutboxPending).
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		return 0, fmt.Errorf("查询待发送消息失败: %w", err)
	}
	if len(messages) == 0 {
		return 0, tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
		trace.WithAttributes(attribute.Int("messaging.batch.message_count", len(messages))))
	defer span.End()

	sent := 0
	for i := range messages {
		msg := &messages[i]
		pubErr := r.publisher.PublishMessage(ctx, msg.TargetExchange, msg.TargetRoutingKey, msg.Payload, true)
		ApplyPublishResult(msg, pubErr, time.Now())
		if pubErr != nil {
			r.logger.Warn().Err(pubErr).
				Uint64("id", msg.ID).
				Str("batch_id", msg.AggregateID).
				Int("retries", msg.RetryCount).
				Msg("发布发件箱消息失败")
		} else {
			sent++
		}
		if err := tx.Save(msg).Error; err != nil {
			return 0, fmt.Errorf("更新发件箱消息 %d 失败: %w", msg.ID, err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int("messaging.batch.sent", sent))
	r.logger.Debug().Int("fetched", len(messages)).Int("sent", sent).Msg("发件箱批次处理完成")
	return sent, nil
}

// ApplyPublishResult 根据发布结果更新消息状态；失败达到上限后标记为 FAILED
func ApplyPublishResult(msg *models.OutboxMessage, err error, now time.Time) {
	if err != nil {
		msg.RetryCount++
		msg.ErrorMessage = err.Error()
		if msg.RetryCount >= maxRetryCount {
			msg.Status = models.OutboxFailed
		}
		return
	}
	msg.Status = models.OutboxSent
	msg.ProcessedAt = &now
	msg.ErrorMessage = ""
}
