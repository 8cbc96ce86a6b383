package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"AlertRadar/pkg/clock"
	"AlertRadar/pkg/config"
	"AlertRadar/pkg/monitor"
)

// auditWindow 未发送通知的统计范围
const auditWindow = 24 * time.Hour

const jobTimeout = 10 * time.Second

// UnsentCounter 统计 notification_sent=false 的 alert_logs
type UnsentCounter interface {
	CountUnsentSince(since time.Time) (int64, error)
}

// Scheduler 任务调度器
type Scheduler struct {
	cron    *cron.Cron
	recover cron.JobWrapper
	cfg     config.SchedulerConfig
	store   UnsentCounter
	health  *monitor.Monitor
	metrics *monitor.Metrics
	clock   clock.Clock
	logger  *zap.Logger
}

// NewScheduler 创建任务调度器
func NewScheduler(cfg config.SchedulerConfig, store UnsentCounter, health *monitor.Monitor, metrics *monitor.Metrics, clk clock.Clock, logger *zap.Logger) *Scheduler {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler")
	cl := cronLogger{logger: logger.Sugar()}
	recoverJob := cron.Recover(cl)

	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(recoverJob)),
		recover: recoverJob,
		cfg:     cfg,
		store:   store,
		health:  health,
		metrics: metrics,
		clock:   clk,
		logger:  logger,
	}
}

// cronLogger 把 cron 的日志（包括任务 panic）写入 zap
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Start 注册任务并启动调度器
func (s *Scheduler) Start() error {
	if s.cfg.UnsentAuditSpec != "" && s.store != nil {
		if _, err := s.cron.AddFunc(s.cfg.UnsentAuditSpec, s.auditUnsent); err != nil {
			return fmt.Errorf("注册未发送通知审计任务失败: %w", err)
		}
	}
	if s.cfg.HealthCheckSpec != "" && s.health != nil {
		if _, err := s.cron.AddFunc(s.cfg.HealthCheckSpec, s.checkHealth); err != nil {
			return fmt.Errorf("注册健康检查任务失败: %w", err)
		}
	}

	s.cron.Start()
	s.logger.Info("调度器已启动", zap.Int("jobs", len(s.cron.Entries())))
	return nil
}

// Stop 停止调度器，等待正在执行的任务结束
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("调度器已停止")
}

// auditUnsent 只做统计，不重发
func (s *Scheduler) auditUnsent() {
	since := s.clock.Now().Add(-auditWindow)
	n, err := s.store.CountUnsentSince(since)
	if err != nil {
		s.logger.Error("统计未发送通知失败", zap.Error(err))
		return
	}

	s.metrics.SetUnsentLogs(n)
	if n > 0 {
		s.logger.Warn("存在未成功投递的提醒", zap.Int64("count", n), zap.Time("since", since))
		return
	}
	s.logger.Debug("未发送通知审计完成", zap.Int64("count", n))
}

// checkHealth 执行所有组件探活
func (s *Scheduler) checkHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	s.health.CheckAll(ctx)
	if !s.health.Healthy() {
		s.logger.Warn("存在不健康的组件", zap.Any("components", s.health.GetAllStatus()))
	}
}
