package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorType 错误分类，写入 error.type 属性
type ErrorType string

const (
	ErrorTypeHTTP        ErrorType = "http"
	ErrorTypeDB          ErrorType = "db"
	ErrorTypeRedis       ErrorType = "redis"
	ErrorTypeRabbitMQ    ErrorType = "rabbitmq"
	ErrorTypeObjectStore ErrorType = "object_store"
	ErrorTypeValidation  ErrorType = "validation"
	// ErrorTypeExtraction 文本提取失败
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeScoring 评分失败
	ErrorTypeScoring  ErrorType = "scoring"
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeExternal Drive、推理服务等外部系统
	ErrorTypeExternal ErrorType = "external_system"
)

// RecordError 记录错误并把 span 状态置为 Error
func RecordError(span trace.Span, err error, errorType ErrorType, attributes ...attribute.KeyValue) {
	if span == nil || err == nil {
		return
	}

	span.RecordError(err)
	span.SetAttributes(
		attribute.String("error.type", string(errorType)),
		attribute.String("error.message", TruncateString(err.Error(), DefaultMaxLength)),
	)
	if len(attributes) > 0 {
		span.SetAttributes(attributes...)
	}
	span.SetStatus(codes.Error, err.Error())
}

// RecordHTTPError 记录HTTP错误，按状态码区分客户端/服务端错误
func RecordHTTPError(span trace.Span, err error, statusCode int) {
	if span == nil || err == nil {
		return
	}

	category := "unknown"
	switch {
	case statusCode >= 400 && statusCode < 500:
		category = "client_error"
	case statusCode >= 500:
		category = "server_error"
	}

	RecordError(span, err, ErrorTypeHTTP,
		attribute.Int("http.status_code", statusCode),
		attribute.String("error.category", category),
	)
}

// RecordRabbitMQNack 记录消息未被 broker 确认
func RecordRabbitMQNack(span trace.Span, messageID string, reason string) {
	if span == nil {
		return
	}

	errMsg := "message not acknowledged by broker"
	if reason != "" {
		errMsg = reason
	}

	span.SetAttributes(
		attribute.String("error.type", string(ErrorTypeRabbitMQ)),
		attribute.String("error.message", errMsg),
		attribute.String("messaging.message_id", messageID),
		attribute.String("messaging.error_type", "nack"),
		attribute.Bool("messaging.rabbitmq.confirmed", false),
	)
	span.SetStatus(codes.Error, errMsg)
}
