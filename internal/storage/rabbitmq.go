package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"resume-screener/internal/config"
	"resume-screener/internal/logger"
	"resume-screener/internal/tracing"
)

var rabbitTracer = otel.Tracer("resume-screener/storage/rabbitmq")

// RabbitMQ 批量导入队列
type RabbitMQ struct {
	conn        *amqp.Connection
	channelPool sync.Pool
	cfg         *config.RabbitMQConfig
	logger      zerolog.Logger

	mu          sync.Mutex
	exchangeMap map[string]bool
	queueMap    map[string]bool
	bindingMap  map[string]bool // "exchange:queue:routingKey"

	publishMutex sync.Mutex

	batchExchange   string
	batchQueue      string
	batchRoutingKey string
}

// NewRabbitMQ 连接 RabbitMQ 并初始化通道池
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil {
		return nil, fmt.Errorf("RabbitMQ配置不能为空")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("RabbitMQ URL配置不能为空")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("无法连接到RabbitMQ服务器: %w", err)
	}

	mq := &RabbitMQ{
		conn:        conn,
		cfg:         cfg,
		logger:      logger.Component("rabbitmq"),
		exchangeMap: make(map[string]bool),
		queueMap:    make(map[string]bool),
		bindingMap:  make(map[string]bool),
	}
	mq.channelPool = sync.Pool{
		New: func() interface{} {
			ch, errPool := conn.Channel()
			if errPool != nil {
				mq.logger.Error().Err(errPool).Msg("创建RabbitMQ通道失败")
				return nil
			}
			return ch
		},
	}

	testCh := mq.getChannel()
	if testCh == nil {
		conn.Close()
		return nil, fmt.Errorf("无法创建RabbitMQ通道")
	}
	mq.putChannel(testCh)

	mq.logger.Info().Msg("成功连接到RabbitMQ服务器")
	return mq, nil
}

func (r *RabbitMQ) getChannel() *amqp.Channel {
	ch := r.channelPool.Get()
	if ch == nil {
		newCh, err := r.conn.Channel()
		if err != nil {
			r.logger.Error().Err(err).Msg("创建新RabbitMQ通道失败")
			return nil
		}
		return newCh
	}
	amqpCh := ch.(*amqp.Channel)
	if amqpCh.IsClosed() {
		return r.getChannel()
	}
	return amqpCh
}

func (r *RabbitMQ) putChannel(ch *amqp.Channel) {
	if ch != nil && !ch.IsClosed() {
		r.channelPool.Put(ch)
	}
}

func (r *RabbitMQ) Close() error {
	return r.conn.Close()
}

// Ping 连接是否仍然可用
func (r *RabbitMQ) Ping(_ context.Context) error {
	if r.conn.IsClosed() {
		return fmt.Errorf("RabbitMQ连接已关闭")
	}
	return nil
}

// EnsureExchange 确保exchange存在
func (r *RabbitMQ) EnsureExchange(exchangeName, exchangeType string, durable bool) error {
	if exchangeName == "" {
		return fmt.Errorf("exchange名称不能为空")
	}
	if exchangeName == "amq.default" || exchangeName == "default" {
		return fmt.Errorf("不能声明默认交换机 '%s'", exchangeName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exchangeMap[exchangeName] {
		return nil
	}

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)

	if err := ch.ExchangeDeclare(exchangeName, exchangeType, durable, false, false, false, nil); err != nil {
		return fmt.Errorf("声明exchange失败: %w", err)
	}
	r.exchangeMap[exchangeName] = true
	r.logger.Debug().Str("exchange", exchangeName).Str("type", exchangeType).Msg("已确保exchange存在")
	return nil
}

// EnsureQueue 确保队列存在
func (r *RabbitMQ) EnsureQueue(queueName string, durable bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queueMap[queueName] {
		return nil
	}

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)

	if _, err := ch.QueueDeclare(queueName, durable, false, false, false, nil); err != nil {
		return fmt.Errorf("声明队列失败: %w", err)
	}
	r.queueMap[queueName] = true
	r.logger.Debug().Str("queue", queueName).Msg("已确保队列存在")
	return nil
}

// BindQueue 绑定队列到exchange
func (r *RabbitMQ) BindQueue(queueName, exchangeName, routingKey string) error {
	bindingKey := fmt.Sprintf("%s:%s:%s", exchangeName, queueName, routingKey)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bindingMap[bindingKey] {
		return nil
	}

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)

	if err := ch.QueueBind(queueName, routingKey, exchangeName, false, nil); err != nil {
		return fmt.Errorf("绑定队列到exchange失败: %w", err)
	}
	r.bindingMap[bindingKey] = true
	return nil
}

// SetupBatchTopology 声明批处理用的 exchange、队列与绑定
func (r *RabbitMQ) SetupBatchTopology(exchange, queue, routingKey string) error {
	if err := r.EnsureExchange(exchange, "direct", true); err != nil {
		return err
	}
	if err := r.EnsureQueue(queue, true); err != nil {
		return err
	}
	if err := r.BindQueue(queue, exchange, routingKey); err != nil {
		return err
	}
	r.batchExchange, r.batchQueue, r.batchRoutingKey = exchange, queue, routingKey
	return nil
}

// PublishMessage 发布消息到exchange
func (r *RabbitMQ) PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error {
	r.publishMutex.Lock()
	defer r.publishMutex.Unlock()

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)

	deliveryMode := amqp.Transient
	if persistent {
		deliveryMode = amqp.Persistent
	}
	return ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		DeliveryMode: deliveryMode,
		ContentType:  "application/json",
		Body:         message,
		Timestamp:    time.Now(),
	})
}

// PublishJSON 发布JSON格式的消息
func (r *RabbitMQ) PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("JSON序列化失败: %w", err)
	}
	return r.PublishMessage(ctx, exchangeName, routingKey, jsonData, persistent)
}

// PublishBatchItem 发布一行批处理消息
func (r *RabbitMQ) PublishBatchItem(ctx context.Context, msg *BatchItemMessage) error {
	if r.batchExchange == "" {
		return fmt.Errorf("批处理队列尚未初始化")
	}
	ctx, span := rabbitTracer.Start(ctx, "RabbitMQ.PublishBatchItem",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination", r.batchExchange),
			attribute.String("batch.id", msg.BatchID),
			attribute.Int("batch.row", msg.Row.RowNumber),
		))
	defer span.End()

	if err := r.PublishJSON(ctx, r.batchExchange, r.batchRoutingKey, msg, true); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		return fmt.Errorf("发布批处理消息失败: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// ConsumeBatchItems 消费批处理队列；无法解析的消息直接确认丢弃
func (r *RabbitMQ) ConsumeBatchItems(handler func(ctx context.Context, msg *BatchItemMessage) bool) (chan<- struct{}, error) {
	if r.batchQueue == "" {
		return nil, fmt.Errorf("批处理队列尚未初始化")
	}
	return r.StartConsumer(r.batchQueue, r.cfg.PrefetchCount, func(body []byte) bool {
		ctx, span := rabbitTracer.Start(context.Background(), "RabbitMQ.ConsumeBatchItem",
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("messaging.system", "rabbitmq"),
				attribute.String("messaging.source", r.batchQueue),
			))
		defer span.End()

		var msg BatchItemMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeValidation)
			r.logger.Error().Err(err).Str("body", tracing.TruncateString(string(body), tracing.DefaultMaxLength)).Msg("批处理消息格式错误，已丢弃")
			return true
		}
		span.SetAttributes(attribute.String("batch.id", msg.BatchID), attribute.Int("batch.row", msg.Row.RowNumber))

		ok := handler(ctx, &msg)
		if !ok {
			tracing.RecordRabbitMQNack(span, msg.BatchID, "handler returned false")
		}
		return ok
	})
}

// StartConsumer 启动消费者；handler 返回 true 时 Ack，否则 Nack 并重新入队。关闭返回的通道即停止消费
func (r *RabbitMQ) StartConsumer(queueName string, prefetchCount int, handler func([]byte) bool) (chan<- struct{}, error) {
	ch := r.getChannel()
	if ch == nil {
		return nil, fmt.Errorf("无法获取RabbitMQ通道")
	}

	if prefetchCount <= 0 {
		prefetchCount = 1
	}
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("设置QoS失败: %w", err)
	}

	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("注册消费者失败: %w", err)
	}

	stopCh := make(chan struct{})
	go func() {
		// 消费通道设置过 QoS，不归还到池中
		defer ch.Close()
		r.logger.Info().Str("queue", queueName).Int("prefetch", prefetchCount).Msg("RabbitMQ消费者已启动")
		defer r.logger.Info().Str("queue", queueName).Msg("RabbitMQ消费者已停止")

		for {
			select {
			case <-stopCh:
				return
			case delivery, ok := <-deliveries:
				if !ok {
					r.logger.Warn().Str("queue", queueName).Msg("RabbitMQ投递通道已关闭")
					return
				}
				if handler(delivery.Body) {
					if err := delivery.Ack(false); err != nil {
						r.logger.Error().Err(err).Msg("确认消息失败")
					}
				} else if err := delivery.Nack(false, true); err != nil {
					r.logger.Error().Err(err).Msg("拒绝消息失败")
				}
			}
		}
	}()

	return stopCh, nil
}

var _ BatchQueue = (*RabbitMQ)(nil)
