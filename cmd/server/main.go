package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"voicebox/backend/internal/config"
	"voicebox/backend/internal/logger"
	"voicebox/backend/internal/monitoring"
	"voicebox/backend/internal/service"
	"voicebox/backend/internal/sharecode"
	"voicebox/backend/internal/storage"
	"voicebox/backend/internal/storage/memory"
	redisstore "voicebox/backend/internal/storage/redis"
	"voicebox/backend/internal/telephony/agi"
	httptransport "voicebox/backend/internal/transport/http"

	"github.com/prometheus/client_golang/prometheus"
)

// main 启动同时包含 FastAGI 呼叫面与运维 HTTP 面的语音信箱服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.LogFile,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting voicebox server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.String("storage", cfg.Storage.Type),
	)

	// 初始化凭证存储
	var kv storage.KV
	switch cfg.Storage.Type {
	case "redis":
		kv, err = redisstore.NewStore(&cfg.Redis, log)
		if err != nil {
			panic(fmt.Sprintf("failed to connect to redis: %v", err))
		}
		log.Info("using redis storage", zap.String("address", cfg.Redis.Address))
	default:
		kv = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}
	creds := storage.NewCredentials(kv)

	// 初始化监控系统
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())

	// 来电控制器
	controller := service.NewController(creds, sharecode.New(), cfg, metrics, log)

	// FastAGI 服务器
	agiAddr := fmt.Sprintf("%s:%d", cfg.AGI.Host, cfg.AGI.Port)
	agiServer := agi.NewServer(agiAddr, controller, cfg.AGI.MaxCallsPerSecond, log)

	// 运维 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:     cfg,
		Controller: controller,
		Creds:      creds,
		Store:      kv,
		Metrics:    metrics,
		Logger:     log,
	})
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// FastAGI 服务器 goroutine
	group.Go(func() error {
		log.Info("starting AGI server", zap.String("address", agiAddr))
		if err := agiServer.ListenAndServe(groupCtx); err != nil {
			log.Error("AGI server error", zap.Error(err))
			return err
		}
		return nil
	})

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 告警巡检 goroutine
	watcher := monitoring.NewAlertWatcher(log, metrics,
		monitoring.StorageHealthRule(kv),
		monitoring.GoroutineCountRule(500),
		monitoring.MemoryUsageRule(1024),
	)
	group.Go(func() error {
		watcher.Run(groupCtx, 30*time.Second)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		if err := agiServer.Close(); err != nil {
			log.Warn("AGI server close warning", zap.Error(err))
		}
		if err := kv.Close(); err != nil {
			log.Warn("storage close warning", zap.Error(err))
		}

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
