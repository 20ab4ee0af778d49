package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cashmine/internal/config"
	"cashmine/internal/handler"
	"cashmine/internal/infrastructure/cache"
	"cashmine/internal/infrastructure/database"
	"cashmine/internal/infrastructure/lock"
	"cashmine/internal/infrastructure/mq"
	"cashmine/internal/job"
	"cashmine/internal/service"
	"cashmine/pkg/idgen"
	"cashmine/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.Name, cfg.App.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("服务异常退出", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	// 初始化 ID 生成器
	if err := idgen.Init(cfg.App.WorkerID); err != nil {
		return fmt.Errorf("init idgen: %w", err)
	}

	// 初始化数据库
	db, err := database.Open(cfg, log)
	if err != nil {
		return err
	}

	// 初始化用户锁
	var locker lock.Locker
	switch cfg.Lock.Driver {
	case "redis":
		redisClient, err := cache.NewRedis(&cfg.Redis, log)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient, cfg.Lock.TTL, cfg.Lock.RetryInterval, cfg.Lock.MaxRetries)
	default:
		log.Warn("using in-process user lock, run a single instance only")
		locker = lock.NewLocalLocker(cfg.Lock.RetryInterval, cfg.Lock.MaxRetries)
	}

	// 初始化 Kafka
	var publisher mq.Publisher
	if cfg.Kafka.Enabled {
		producer, err := mq.NewKafkaProducer(&cfg.Kafka)
		if err != nil {
			return err
		}
		publisher = mq.NewKafkaPublisher(producer)
	} else {
		publisher = mq.NewLogPublisher(log)
	}
	defer publisher.Close()

	svc := service.New(db, locker, cfg, log)

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer bootCancel()
	if err := svc.VIP.EnsureDefaults(bootCtx); err != nil {
		return fmt.Errorf("seed vip levels: %w", err)
	}
	if err := svc.Auth.EnsureAdmin(bootCtx, cfg.Auth.AdminLogin, cfg.Auth.AdminPassword); err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	outboxSender := job.NewOutboxSender(db, publisher, cfg, log)
	go outboxSender.Start(ctx)

	offerExpiryJob := job.NewOfferExpiryJob(svc.Order, cfg, log)
	go offerExpiryJob.Start(ctx)

	reconcileJob := job.NewReconcileJob(db, svc.Ledger, cfg, log)
	go reconcileJob.Start(ctx)

	// 设置路由
	router := handler.SetupRouter(svc, cfg, log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("服务启动", zap.Int("port", cfg.Server.Port), zap.String("env", cfg.App.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	log.Info("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("服务关闭异常", zap.Error(err))
	}

	log.Info("服务已关闭")
	return nil
}
