package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"AlertRadar/pkg/api"
	"AlertRadar/pkg/cache"
	"AlertRadar/pkg/clock"
	"AlertRadar/pkg/config"
	"AlertRadar/pkg/database"
	"AlertRadar/pkg/delivery"
	"AlertRadar/pkg/engine"
	"AlertRadar/pkg/logger"
	"AlertRadar/pkg/messaging"
	"AlertRadar/pkg/monitor"
	"AlertRadar/pkg/scheduler"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "通知服务异常退出: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 加载配置
	cfg, err := config.LoadConfig(config.GetDefaultConfigPath())
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Info("启动提醒通知服务...", zap.String("env", cfg.App.Env))

	clk := clock.SystemClock{}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitor.NewMetrics(registry)

	health := monitor.NewMonitor(clk, func(component, status, message string) {
		log.Warn("组件状态异常", zap.String("component", component), zap.String("status", status), zap.String("message", message))
	})

	// 连接数据库
	db, err := database.Open(cfg.Database, log, clk)
	if err != nil {
		return err
	}
	defer db.Close()
	health.RegisterComponent("database", db.Ping)

	var store engine.Store = db
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password.Value(),
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		health.RegisterComponent("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		store = cache.NewClaimStore(db, rdb, cfg.Redis.Prefix, log)
		log.Info("已启用 redis claim 缓存", zap.String("addr", cfg.Redis.Addr))
	}

	// 投递渠道
	email := delivery.NewEmailDelivery(cfg.SMTP, cfg.App.WebURL, db, clk, log)
	if !cfg.SMTP.Configured() {
		log.Warn("SMTP 未配置，邮件渠道将跳过")
	}

	var push *delivery.PushDelivery
	if cfg.APNS.Enabled {
		client, err := delivery.NewAPNsClient(cfg.APNS)
		if err != nil {
			return err
		}
		push = delivery.NewPushDelivery(client, cfg.APNS.Topic, db, clk, log, metrics)
	}
	inApp := delivery.NewInAppDelivery(db, push, log)
	router := delivery.NewRouter(email, inApp, log, metrics)

	evaluator := engine.New(store, router, log, engine.WithClock(clk), engine.WithMetrics(metrics))

	// 连接NATS
	natsClient, err := messaging.NewNATSClient(cfg.NATS, log)
	if err != nil {
		return err
	}
	defer natsClient.Close()
	health.RegisterComponent("nats", natsClient.Ping)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := natsClient.EnsureStream(ctx); err != nil {
		return err
	}
	consumer, err := natsClient.NewConsumer(ctx, evaluator.HandlePriceUpdate)
	if err != nil {
		return err
	}
	health.RegisterComponent("consumer", consumer.Probe)

	sched := scheduler.NewScheduler(cfg.Scheduler, db, health, metrics, clk, log)
	if err := sched.Start(); err != nil {
		return err
	}

	handlers := api.NewHandlers(api.Deps{
		DB:          db,
		Broker:      natsClient,
		Consumer:    consumer,
		Monitor:     health,
		Canary:      email,
		CanaryToken: cfg.Canary.Token,
		AlertLogs:   db,
		Gatherer:    registry,
	}, log)
	server := api.NewServer(cfg.API, handlers, log)
	serverErr := server.Start()

	consumerDone := make(chan error, 1)
	go func() { consumerDone <- consumer.Run(ctx) }()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("收到停止信号，正在关闭...")
	case err := <-serverErr:
		runErr = err
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	runErr = multierr.Append(runErr, server.Shutdown(shutdownCtx))
	sched.Stop()
	select {
	case err := <-consumerDone:
		runErr = multierr.Append(runErr, err)
	case <-shutdownCtx.Done():
		log.Warn("等待消费者退出超时")
	}

	log.Info("提醒通知服务已关闭")
	return runErr
}
