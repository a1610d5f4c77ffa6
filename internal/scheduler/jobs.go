package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wfunc/casino-bot/internal/backup"
	"github.com/wfunc/casino-bot/internal/ratelimit"
	"github.com/wfunc/casino-bot/internal/session"
)

// 任务名
const (
	JobSessionSweep = "session_sweep"
	JobLimiterPrune = "ratelimit_prune"
	JobBackup       = "db_backup"
)

// Jobs 后台任务依赖，为 nil 的项不注册
type Jobs struct {
	Sessions       *session.Manager
	Limiter        ratelimit.Limiter
	Backups        *backup.Manager
	SweepInterval  time.Duration
	BackupInterval time.Duration
}

// pruner 需要主动清理过期窗口的限流器
type pruner interface {
	Prune() int
}

// Register 注册服务进程的后台任务
func (s *Scheduler) Register(jobs Jobs) error {
	if jobs.Sessions != nil {
		err := s.Every(JobSessionSweep, jobs.SweepInterval, func(ctx context.Context) error {
			if n := jobs.Sessions.Sweep(); n > 0 {
				s.log.Info("清理空闲会话", zap.Int("count", n), zap.Int("active", jobs.Sessions.Active()))
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	if p, ok := jobs.Limiter.(pruner); ok {
		err := s.Every(JobLimiterPrune, jobs.SweepInterval, func(ctx context.Context) error {
			p.Prune()
			return nil
		})
		if err != nil {
			return err
		}
	}

	if jobs.Backups != nil {
		err := s.Every(JobBackup, jobs.BackupInterval, func(ctx context.Context) error {
			_, err := jobs.Backups.Run(ctx)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}
