package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"resume-screener/internal/config"
	"resume-screener/internal/constants"
	"resume-screener/internal/tracing"
	"resume-screener/internal/types"
)

var redisTracer = otel.Tracer("resume-screener/storage/redis")

// 原子地检查成员并加入集合，同时刷新过期时间；返回 1 表示已存在
var checkAndAddScript = redis.NewScript(`
	local exists = redis.call('SISMEMBER', KEYS[1], ARGV[1])
	redis.call('SADD', KEYS[1], ARGV[1])
	redis.call('EXPIRE', KEYS[1], ARGV[2])
	return exists
`)

// Redis 保存当前JD，并提供上传文件去重
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建 Redis 客户端并挂载 OpenTelemetry 钩子
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		MaxRetries:   cfg.MaxRetries,
	})

	if err := redisotel.InstrumentTracing(client); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{Client: client, config: cfg}, nil
}

func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// MD5ExpireDuration MD5 去重集合的过期时间
func (r *Redis) MD5ExpireDuration() time.Duration {
	days := r.config.MD5RecordExpireDays
	if days <= 0 {
		days = 365
	}
	return time.Duration(days) * 24 * time.Hour
}

func (r *Redis) startSpan(ctx context.Context, name, operation, key string) (context.Context, trace.Span) {
	return redisTracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemRedis,
			attribute.String("db.redis.database", strconv.Itoa(r.config.DB)),
			attribute.String("net.peer.name", r.config.Address),
			attribute.String("db.operation", operation),
			attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
		))
}

// SetJob 覆盖当前JD
func (r *Redis) SetJob(ctx context.Context, job *types.JobPosting) error {
	ctx, span := r.startSpan(ctx, "Redis.SetJob", "SET", constants.KeyCurrentJob)
	defer span.End()

	data, err := json.Marshal(job)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return fmt.Errorf("序列化JD失败: %w", err)
	}
	if err := r.Client.Set(ctx, constants.KeyCurrentJob, data, 0).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("保存JD到Redis失败: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// GetJob 读取当前JD，未设置时返回 ErrNotFound
func (r *Redis) GetJob(ctx context.Context) (*types.JobPosting, error) {
	ctx, span := r.startSpan(ctx, "Redis.GetJob", "GET", constants.KeyCurrentJob)
	defer span.End()

	data, err := r.Client.Get(ctx, constants.KeyCurrentJob).Bytes()
	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrNotFound
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return nil, fmt.Errorf("从Redis读取JD失败: %w", err)
	}

	var job types.JobPosting
	if err := json.Unmarshal(data, &job); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return nil, fmt.Errorf("解析Redis中的JD失败: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return &job, nil
}

// CheckAndAdd 原子地检查并登记原始文件MD5
func (r *Redis) CheckAndAdd(ctx context.Context, md5Hex string) (bool, error) {
	ctx, span := r.startSpan(ctx, "Redis.CheckAndAddFileMD5", "EVAL", constants.KeyFileMD5Set)
	defer span.End()
	span.SetAttributes(attribute.String("db.redis.member", md5Hex))

	expiry := int64(r.MD5ExpireDuration().Seconds())
	res, err := checkAndAddScript.Run(ctx, r.Client, []string{constants.KeyFileMD5Set}, md5Hex, expiry).Int64()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return false, fmt.Errorf("执行原子检查和添加操作失败: %w", err)
	}

	exists := res == 1
	span.SetAttributes(attribute.Bool("already_exists", exists))
	span.SetStatus(codes.Ok, "")
	return exists, nil
}

// Remove 撤销MD5登记
func (r *Redis) Remove(ctx context.Context, md5Hex string) error {
	ctx, span := r.startSpan(ctx, "Redis.RemoveFileMD5", "SREM", constants.KeyFileMD5Set)
	defer span.End()

	if err := r.Client.SRem(ctx, constants.KeyFileMD5Set, md5Hex).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("移除文件MD5失败: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// Reset 删除整个MD5集合
func (r *Redis) Reset(ctx context.Context) error {
	ctx, span := r.startSpan(ctx, "Redis.ResetFileMD5", "DEL", constants.KeyFileMD5Set)
	defer span.End()

	if err := r.Client.Del(ctx, constants.KeyFileMD5Set).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("清空文件MD5集合失败: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

var (
	_ JobStore     = (*Redis)(nil)
	_ Deduplicator = (*Redis)(nil)
)
