package processor

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Settings 服务的可调参数
type Settings struct {
	JobMinLength      int
	JobMaxLength      int
	MaxFileSize       int64
	AllowedExtensions []string
	Dedupe            bool

	Workers    int
	MaxRetries int
	RetryWait  time.Duration
	DriveQPM   int

	CollaboratorConfigured bool
	Now                    func() time.Time
	Logger                 zerolog.Logger
}

// DefaultSettings 默认参数
func DefaultSettings() Settings {
	return Settings{
		JobMinLength:      50,
		JobMaxLength:      10000,
		MaxFileSize:       10 * 1024 * 1024,
		AllowedExtensions: []string{".pdf", ".docx", ".doc", ".jpg", ".jpeg", ".png"},
		Workers:           4,
		MaxRetries:        2,
		RetryWait:         2 * time.Second,
		DriveQPM:          120,
		Now:               time.Now,
		Logger:            zerolog.Nop(),
	}
}

// Option 服务选项
type Option func(*Settings)

// WithJobLength JD 长度范围(字符数)
func WithJobLength(min, max int) Option {
	return func(s *Settings) {
		s.JobMinLength = min
		s.JobMaxLength = max
	}
}

// WithFileLimits 上传文件大小上限与允许的扩展名
func WithFileLimits(maxBytes int64, extensions []string) Option {
	return func(s *Settings) {
		if maxBytes > 0 {
			s.MaxFileSize = maxBytes
		}
		if len(extensions) > 0 {
			s.AllowedExtensions = make([]string, len(extensions))
			for i, ext := range extensions {
				s.AllowedExtensions[i] = strings.ToLower(ext)
			}
		}
	}
}

// WithDedupe 开启基于原始文件MD5的上传去重
func WithDedupe(enabled bool) Option {
	return func(s *Settings) {
		s.Dedupe = enabled
	}
}

// WithBatchPolicy 批处理并发数与单行重试策略
func WithBatchPolicy(workers, maxRetries int, retryWait time.Duration) Option {
	return func(s *Settings) {
		if workers > 0 {
			s.Workers = workers
		}
		if maxRetries >= 0 {
			s.MaxRetries = maxRetries
		}
		if retryWait > 0 {
			s.RetryWait = retryWait
		}
	}
}

// WithDriveQPM Drive 下载速率上限(每分钟)
func WithDriveQPM(qpm int) Option {
	return func(s *Settings) {
		if qpm > 0 {
			s.DriveQPM = qpm
		}
	}
}

// WithCollaborator 标记推理服务是否已配置，仅用于健康检查
func WithCollaborator(configured bool) Option {
	return func(s *Settings) {
		s.CollaboratorConfigured = configured
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Settings) {
		if now != nil {
			s.Now = now
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Settings) {
		s.Logger = logger
	}
}

func errNotInit(name string) error {
	return fmt.Errorf("%s is not initialized", name)
}
