package storage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"resume-screener/internal/config"
	"resume-screener/internal/logger"
	"resume-screener/internal/tracing"
)

var minioTracer = otel.Tracer("resume-screener/storage/minio")

// MinIO 原始简历归档
type MinIO struct {
	client *minio.Client
	cfg    *config.MinIOConfig
	bucket string
	logger zerolog.Logger
}

// NewMinIO 创建 MinIO 客户端，确保存储桶存在并设置过期规则
func NewMinIO(cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	log := logger.Component("minio")

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	bucket := cfg.BucketName
	if bucket == "" {
		bucket = "resume-originals"
	}
	m := &MinIO{client: client, cfg: cfg, bucket: bucket, logger: log}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.ensureBucketExists(ctx, cfg.Location); err != nil {
		return nil, err
	}
	if cfg.OriginalFileExpireDays > 0 {
		if err := m.setupLifecycle(ctx, cfg.OriginalFileExpireDays); err != nil {
			log.Warn().Err(err).Str("bucket", bucket).Msg("设置生命周期规则失败")
		}
	}

	log.Info().Str("endpoint", cfg.Endpoint).Str("bucket", bucket).Msg("MinIO客户端初始化成功")
	return m, nil
}

func (m *MinIO) ensureBucketExists(ctx context.Context, location string) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", m.bucket, err)
	}
	m.logger.Info().Str("bucket", m.bucket).Msg("存储桶已创建")
	return nil
}

func (m *MinIO) setupLifecycle(ctx context.Context, expiryDays int) error {
	lc := lifecycle.NewConfiguration()
	lc.Rules = []lifecycle.Rule{
		{
			ID:     "expire-originals",
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, m.bucket, lc)
}

func (m *MinIO) startSpan(ctx context.Context, name, objectKey string) (context.Context, trace.Span) {
	return minioTracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("object_store.bucket", m.bucket),
			attribute.String("object_store.key", objectKey),
		))
}

// Archive 上传原始简历
func (m *MinIO) Archive(ctx context.Context, objectKey string, data []byte, contentType string) error {
	ctx, span := m.startSpan(ctx, "MinIO.Archive", objectKey)
	defer span.End()

	if contentType == "" {
		contentType = ContentTypeFor(objectKey)
	}
	info, err := m.client.PutObject(ctx, m.bucket, objectKey, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return fmt.Errorf("上传对象 %s/%s 失败: %w", m.bucket, objectKey, err)
	}
	span.SetAttributes(attribute.Int64("object_store.size", info.Size))
	span.SetStatus(codes.Ok, "")
	m.logger.Debug().Str("key", objectKey).Str("etag", info.ETag).Msg("原始简历已归档")
	return nil
}

// PresignedURL 生成限时下载链接
func (m *MinIO) PresignedURL(ctx context.Context, objectKey string) (string, error) {
	ctx, span := m.startSpan(ctx, "MinIO.PresignedURL", objectKey)
	defer span.End()

	expiry := time.Duration(m.cfg.PresignExpiryMinutes) * time.Minute
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	u, err := m.client.PresignedGetObject(ctx, m.bucket, objectKey, expiry, nil)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return "", fmt.Errorf("生成MinIO预签名URL失败: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return u.String(), nil
}

// Remove 删除已归档的原始简历
func (m *MinIO) Remove(ctx context.Context, objectKey string) error {
	ctx, span := m.startSpan(ctx, "MinIO.Remove", objectKey)
	defer span.End()

	if err := m.client.RemoveObject(ctx, m.bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return fmt.Errorf("删除对象 %s/%s 失败: %w", m.bucket, objectKey, err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// Ping 检查存储桶可访问
func (m *MinIO) Ping(ctx context.Context) error {
	_, err := m.client.BucketExists(ctx, m.bucket)
	return err
}

// ContentTypeFor 按扩展名推断内容类型
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

var _ ResumeArchive = (*MinIO)(nil)
