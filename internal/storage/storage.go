package storage

import (
	"context"
	"fmt"
	"strings"

	"resume-screener/internal/config"
	"resume-screener/internal/logger"
)

// Storage 聚合所有已配置的存储后端，未配置的部分回落到内存实现
type Storage struct {
	MySQL    *MySQL
	Redis    *Redis
	MinIO    *MinIO
	RabbitMQ *RabbitMQ

	Candidates CandidateRepository
	Failures   FailureRepository
	Jobs       JobStore
	Dedup      Deduplicator
	Archive    ResumeArchive // 未配置 MinIO 时为 nil
	Queue      BatchQueue    // 未配置 RabbitMQ 时为 nil，批处理改为内联执行
}

// NewMemoryStorage 纯内存存储
func NewMemoryStorage() *Storage {
	return &Storage{
		Candidates: NewMemoryCandidateRepository(),
		Failures:   NewMemoryFailureRepository(),
		Jobs:       NewMemoryJobStore(),
		Dedup:      NewMemoryDeduplicator(),
	}
}

// NewStorage 根据配置初始化各后端
// 已配置但初始化失败的后端记入错误；全部失败时返回错误，部分失败时记录警告并回落到内存实现
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	log := logger.Component("storage")
	s := NewMemoryStorage()

	var err error
	var configured int
	var initErrors []string

	if cfg.MySQL.Host != "" {
		configured++
		s.MySQL, err = NewMySQL(&cfg.MySQL)
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("MySQL: %v", err))
		} else {
			s.Candidates = s.MySQL.Candidates()
			s.Failures = s.MySQL.Failures()
		}
	}

	if cfg.Redis.Address != "" {
		configured++
		s.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		} else {
			s.Jobs = s.Redis
			s.Dedup = s.Redis
		}
	}

	if cfg.MinIO.Endpoint != "" {
		configured++
		s.MinIO, err = NewMinIO(&cfg.MinIO)
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
		} else {
			s.Archive = s.MinIO
		}
	}

	if cfg.RabbitMQ.URL != "" {
		configured++
		s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err == nil {
			err = s.RabbitMQ.SetupBatchTopology(cfg.Batch.Exchange, cfg.Batch.Queue, cfg.Batch.RoutingKey)
			if err != nil {
				s.RabbitMQ.Close()
				s.RabbitMQ = nil
			}
		}
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		} else {
			s.Queue = s.RabbitMQ
		}
	}

	if configured > 0 && len(initErrors) == configured {
		return nil, fmt.Errorf("所有存储组件初始化失败: %s", strings.Join(initErrors, "; "))
	}
	if len(initErrors) > 0 {
		log.Warn().Str("errors", strings.Join(initErrors, "; ")).Msg("部分存储组件初始化失败，已回落到内存实现")
	}

	log.Info().
		Bool("mysql", s.MySQL != nil).
		Bool("redis", s.Redis != nil).
		Bool("minio", s.MinIO != nil).
		Bool("rabbitmq", s.RabbitMQ != nil).
		Msg("存储初始化完成")
	return s, nil
}

// Ping 检查各已启用后端的连通性，返回 名称 -> 错误信息(空表示正常)
func (s *Storage) Ping(ctx context.Context) map[string]string {
	result := make(map[string]string)
	check := func(name string, err error) {
		if err != nil {
			result[name] = err.Error()
		} else {
			result[name] = ""
		}
	}
	if s.MySQL != nil {
		check("mysql", s.MySQL.Ping(ctx))
	}
	if s.Redis != nil {
		check("redis", s.Redis.Ping(ctx))
	}
	if s.MinIO != nil {
		check("minio", s.MinIO.Ping(ctx))
	}
	if s.RabbitMQ != nil {
		check("rabbitmq", s.RabbitMQ.Ping(ctx))
	}
	return result
}

// Close 关闭所有连接
func (s *Storage) Close() {
	log := logger.Component("storage")
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			log.Error().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			log.Error().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
}
