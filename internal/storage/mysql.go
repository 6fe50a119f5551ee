package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"resume-screener/internal/config"
	"resume-screener/internal/logger"
	"resume-screener/internal/storage/models"
	"resume-screener/internal/tracing"
	"resume-screener/internal/types"
)

var mysqlTracer = otel.Tracer("resume-screener/storage/mysql")

type spanContextKey struct{}

// GormTracingPlugin 为 GORM 的每次操作创建 OpenTelemetry span
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	disableErrSkip bool
}

func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册 Before/After 回调
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after()); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	return cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after())
}

func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}

		attrs := []attribute.KeyValue{
			semconv.DBSystemMySQL,
			attribute.String("db.name", p.dbName),
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", table),
		}
		if stmt := db.Statement.SQL.String(); stmt != "" {
			attrs = append(attrs, attribute.String("db.statement", tracing.SafeSQL(stmt)))
		}

		newCtx, span := p.tracer.Start(ctx, operation+" "+table,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attrs...))
		db.Statement.Context = context.WithValue(newCtx, spanContextKey{}, span)
	}
}

func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(spanContextKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		switch {
		case db.Error == nil:
			span.SetStatus(codes.Ok, "")
		case errors.Is(db.Error, gorm.ErrRecordNotFound):
			// 查无记录属于正常业务结果
			span.SetAttributes(attribute.String("error.type", "record_not_found"))
			span.SetStatus(codes.Ok, "record not found")
		default:
			tracing.RecordError(span, db.Error, tracing.ErrorTypeDB)
		}
	}
}

// NewGormTracingPlugin 创建 GORM 追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		disableErrSkip: true,
	}
}

// MySQL 候选人与失败行的关系库存储
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// BuildDSN 由配置拼接 go-sql-driver DSN
func BuildDSN(cfg *config.MySQLConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)
}

func gormLogLevel(level int) gormlogger.LogLevel {
	switch level {
	case 1:
		return gormlogger.Silent
	case 2:
		return gormlogger.Error
	case 3:
		return gormlogger.Warn
	default:
		return gormlogger.Info
	}
}

// NewMySQL 连接 MySQL、注册追踪插件并迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	db, err := gorm.Open(mysql.Open(BuildDSN(cfg)), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	silent := db.Session(&gorm.Session{Logger: db.Logger.LogMode(gormlogger.Silent)})
	if err := silent.AutoMigrate(&models.Candidate{}, &models.FailedCandidate{}, &models.OutboxMessage{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log := logger.Component("mysql")
	log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("成功连接到MySQL并完成表结构迁移")
	return &MySQL{db: db, cfg: cfg}, nil
}

// DB 返回 GORM 连接
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Ping 检查连接可用性
func (m *MySQL) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// Candidates 候选人仓储
func (m *MySQL) Candidates() *MySQLCandidateRepository {
	return &MySQLCandidateRepository{db: m.db}
}

// Failures 失败行仓储
func (m *MySQL) Failures() *MySQLFailureRepository {
	return &MySQLFailureRepository{db: m.db}
}

// MySQLCandidateRepository 基于 GORM 的候选人仓储
type MySQLCandidateRepository struct {
	db *gorm.DB
}

func (r *MySQLCandidateRepository) Create(ctx context.Context, c *types.Candidate) error {
	row, err := models.FromCandidate(c)
	if err != nil {
		return fmt.Errorf("序列化候选人失败: %w", err)
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("写入候选人失败: %w", err)
	}
	c.ID = row.ID
	c.CreatedAt = row.CreatedAt
	return nil
}

func (r *MySQLCandidateRepository) List(ctx context.Context) ([]*types.Candidate, error) {
	var rows []models.Candidate
	if err := r.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询候选人列表失败: %w", err)
	}
	out := make([]*types.Candidate, len(rows))
	for i := range rows {
		out[i] = rows[i].ToCandidate()
	}
	return out, nil
}

func (r *MySQLCandidateRepository) Get(ctx context.Context, id int64) (*types.Candidate, error) {
	var row models.Candidate
	err := r.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询候选人 %d 失败: %w", id, err)
	}
	return row.ToCandidate(), nil
}

func (r *MySQLCandidateRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&models.Candidate{}, id)
	if res.Error != nil {
		return fmt.Errorf("删除候选人 %d 失败: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MySQLCandidateRepository) Clear(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Candidate{})
	if res.Error != nil {
		return 0, fmt.Errorf("清空候选人失败: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// MySQLFailureRepository 基于 GORM 的失败行仓储
type MySQLFailureRepository struct {
	db *gorm.DB
}

func (r *MySQLFailureRepository) Add(ctx context.Context, f *types.FailedCandidate) error {
	row := models.FromFailedCandidate(f)
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("写入失败记录失败: %w", err)
	}
	f.ID = row.ID
	f.CreatedAt = row.CreatedAt
	return nil
}

func (r *MySQLFailureRepository) List(ctx context.Context) ([]*types.FailedCandidate, error) {
	var rows []models.FailedCandidate
	if err := r.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询失败记录失败: %w", err)
	}
	out := make([]*types.FailedCandidate, len(rows))
	for i := range rows {
		out[i] = rows[i].ToFailedCandidate()
	}
	return out, nil
}

func (r *MySQLFailureRepository) Clear(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.FailedCandidate{})
	if res.Error != nil {
		return 0, fmt.Errorf("清空失败记录失败: %w", res.Error)
	}
	return res.RowsAffected, nil
}

var (
	_ CandidateRepository = (*MySQLCandidateRepository)(nil)
	_ FailureRepository   = (*MySQLFailureRepository)(nil)
)
