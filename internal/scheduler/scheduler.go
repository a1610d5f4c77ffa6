// Package scheduler 后台周期任务：会话清理、限流窗口清理、数据库备份
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Task 周期任务，返回的错误只记录日志
type Task func(ctx context.Context) error

// Scheduler 基于 gocron 的任务调度器
type Scheduler struct {
	cron gocron.Scheduler
	log  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New 创建调度器，clock 为 nil 时使用真实时钟
func New(clock clockwork.Clock, log *zap.Logger) (*Scheduler, error) {
	opts := []gocron.SchedulerOption{
		gocron.WithLogger(zapLogger{log.Sugar()}),
	}
	if clock != nil {
		opts = append(opts, gocron.WithClock(clock))
	}

	cron, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("创建调度器失败: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{cron: cron, log: log, ctx: ctx, cancel: cancel}, nil
}

// Every 注册一个固定间隔执行的任务
// 上一次还没执行完时跳过本次
func (s *Scheduler) Every(name string, interval time.Duration, task Task) error {
	if interval <= 0 {
		return fmt.Errorf("任务 %s 的间隔必须大于0", name)
	}

	_, err := s.cron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			start := time.Now()
			if err := task(s.ctx); err != nil {
				s.log.Error("定时任务失败", zap.String("job", name), zap.Error(err))
				return
			}
			s.log.Debug("定时任务完成", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("注册任务 %s 失败: %w", name, err)
	}

	s.log.Info("注册定时任务", zap.String("job", name), zap.Duration("interval", interval))
	return nil
}

// Jobs 已注册的任务名
func (s *Scheduler) Jobs() []string {
	jobs := s.cron.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	return names
}

// Start 开始调度
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop() error {
	s.cancel()
	return s.cron.Shutdown()
}

// zapLogger 把 gocron 的日志接到 zap
type zapLogger struct {
	l *zap.SugaredLogger
}

func (z zapLogger) Debug(msg string, args ...any) { z.l.Debugw(msg, args...) }
func (z zapLogger) Info(msg string, args ...any)  { z.l.Infow(msg, args...) }
func (z zapLogger) Warn(msg string, args ...any)  { z.l.Warnw(msg, args...) }
func (z zapLogger) Error(msg string, args ...any) { z.l.Errorw(msg, args...) }
