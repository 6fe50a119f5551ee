package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"resume-screener/internal/api/handler"
	"resume-screener/internal/api/router"
	"resume-screener/internal/bootstrap"
	"resume-screener/internal/config"
	"resume-screener/internal/logger"
	"resume-screener/internal/outbox"
	"resume-screener/internal/processor"
	"resume-screener/internal/source"
	"resume-screener/internal/storage"
	"resume-screener/internal/tracing"
)

var (
	version     = "1.0.0"           //nolint:gochecknoglobals
	serviceName = "resume-screener" //nolint:gochecknoglobals
)

func main() {
	_ = godotenv.Load()

	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}

	logCloser, err := logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
		File:         cfg.Logger.File,
	})
	if err != nil {
		glog.Fatalf("初始化日志失败: %v", err)
	}
	defer logCloser.Close()
	glog.SetLogger(hertzadapter.From(logger.Logger))
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     version,
		SampleRatio: cfg.Tracing.SampleRatio,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		glog.Fatalf("初始化链路追踪失败: %v", err)
	}

	store, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer store.Close()
	glog.Info("存储服务初始化成功")

	extractorEngine, err := bootstrap.NewExtractor(ctx, cfg, logger.Component("extractor"))
	if err != nil {
		glog.Fatalf("%v", err)
	}
	completer, err := bootstrap.NewCompleter(cfg, logger.Component("llm"))
	if err != nil {
		glog.Fatalf("%v", err)
	}
	scorer, err := bootstrap.NewScorer(cfg, completer, logger.Component("scoring"))
	if err != nil {
		glog.Fatalf("初始化评分引擎失败: %v", err)
	}
	glog.Infof("引擎初始化成功，评分模式: %s，OCR: %v", scorer.Mode(), extractorEngine.OCREnabled())

	components := processor.Components{
		Extractor: extractorEngine,
		Parser:    bootstrap.NewParser(cfg, completer, logger.Component("requirements")),
		Scorer:    scorer,
	}
	components.UseStorage(store)

	var relay *outbox.MessageRelay
	if store.MySQL != nil && store.RabbitMQ != nil {
		components.Queue = outbox.NewQueue(store.MySQL.DB(), store.RabbitMQ, cfg.Batch.Exchange, cfg.Batch.RoutingKey)
		relay = outbox.NewMessageRelay(store.MySQL.DB(), store.RabbitMQ, logger.Component("outbox"))
		relay.Start()
		glog.Info("发件箱消息中继已启动")
	}

	if cfg.Google.CredentialsPath != "" {
		drive, err := source.NewDriveDownloader(ctx, cfg.Google.CredentialsPath)
		if err != nil {
			glog.Warnf("初始化 Google Drive 失败，表格导入不可用: %v", err)
		} else {
			drive.SetMaxBytes(cfg.Extraction.MaxFileSizeBytes())
			components.Downloader = drive
		}
		sheets, err := source.NewSheetsReader(ctx, cfg.Google.CredentialsPath)
		if err != nil {
			glog.Warnf("初始化 Google Sheets 失败，在线表格导入不可用: %v", err)
		} else {
			components.Sheets = sheets
		}
	}

	svc, err := processor.NewService(components,
		processor.WithJobLength(cfg.Job.MinLength, cfg.Job.MaxLength),
		processor.WithFileLimits(cfg.Extraction.MaxFileSizeBytes(), cfg.Extraction.AllowedExtensions),
		processor.WithDedupe(cfg.Redis.Address != ""),
		processor.WithBatchPolicy(cfg.Batch.Workers, cfg.Batch.MaxRetries, config.GetDuration(cfg.Batch.RetryWait, 2*time.Second)),
		processor.WithDriveQPM(cfg.Google.QPM),
		processor.WithCollaborator(completer != nil),
		processor.WithLogger(logger.Component("processor")),
	)
	if err != nil {
		glog.Fatalf("初始化筛选服务失败: %v", err)
	}

	var stopConsumers func()
	if components.Queue != nil && components.Downloader != nil {
		stopConsumers, err = svc.StartBatchConsumer(ctx, cfg.Batch.Workers)
		if err != nil {
			glog.Fatalf("启动批处理消费者失败: %v", err)
		}
	}

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.Default(
		tracer,
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		server.WithMaxRequestBodySize(int(cfg.Extraction.MaxFileSizeBytes())+1<<20),
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	router.RegisterRoutes(h.Engine, handler.NewScreeningHandler(svc, logger.Component("api")), cfg.Server.APIKeys)
	glog.Info("HTTP路由注册成功")

	glog.Infof("%s %s 启动中，监听地址: %s", serviceName, version, cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	cancel()
	if relay != nil {
		relay.Stop()
	}
	if stopConsumers != nil {
		stopConsumers()
		glog.Info("批处理消费者已停止")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		glog.Errorf("关闭链路追踪失败: %v", err)
	}
	glog.Info("优雅退出完成")
}
