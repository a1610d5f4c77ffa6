package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wfunc/casino-bot/internal/config"
)

// ActionRound 开局动作
const ActionRound = "round"

// Limiter 按玩家和动作限制频率
type Limiter interface {
	// Allow 记录一次动作，超出限额时返回 false
	Allow(ctx context.Context, userID int64, action string) (bool, error)
	// Reset 清除玩家的计数
	Reset(ctx context.Context, userID int64, action string) error
}

// New 根据配置选择 Redis 或进程内限流
// limit <= 0 表示不限流
func New(cfg *config.RedisConfig, limit int, window time.Duration, clock clockwork.Clock, log *zap.Logger) (Limiter, func() error, error) {
	if limit <= 0 {
		return Unlimited{}, func() error { return nil }, nil
	}
	if cfg == nil || !cfg.Enabled {
		log.Info("使用进程内限流", zap.Int("limit", limit), zap.Duration("window", window))
		return NewMemoryLimiter(limit, window, clock), func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("连接 redis 失败: %w", err)
	}

	log.Info("使用 Redis 限流", zap.String("addr", cfg.Addr), zap.Int("limit", limit))
	return NewRedisLimiter(client, cfg.Prefix, limit, window), client.Close, nil
}

// Unlimited 不做限制
type Unlimited struct{}

// Allow 总是允许
func (Unlimited) Allow(context.Context, int64, string) (bool, error) { return true, nil }

// Reset 无操作
func (Unlimited) Reset(context.Context, int64, string) error { return nil }

// RedisLimiter 固定窗口计数，多实例共享
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewRedisLimiter 创建 Redis 限流器
func NewRedisLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

func (l *RedisLimiter) key(userID int64, action string) string {
	return fmt.Sprintf("%s:ratelimit:%d:%s", l.prefix, userID, action)
}

// Allow INCR 计数，首次计数时设置过期时间
func (l *RedisLimiter) Allow(ctx context.Context, userID int64, action string) (bool, error) {
	key := l.key(userID, action)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("检查限流失败: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("设置限流窗口失败: %w", err)
		}
	}
	return count <= int64(l.limit), nil
}

// Reset 删除计数
func (l *RedisLimiter) Reset(ctx context.Context, userID int64, action string) error {
	return l.client.Del(ctx, l.key(userID, action)).Err()
}

// MemoryLimiter 进程内滑动窗口
type MemoryLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	clock  clockwork.Clock
	events map[string][]time.Time
}

// NewMemoryLimiter 创建进程内限流器
func NewMemoryLimiter(limit int, window time.Duration, clock clockwork.Clock) *MemoryLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		clock:  clock,
		events: make(map[string][]time.Time),
	}
}

// Allow 窗口内次数未满时记录并允许
func (l *MemoryLimiter) Allow(_ context.Context, userID int64, action string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := fmt.Sprintf("%d:%s", userID, action)
	now := l.clock.Now()
	cutoff := now.Add(-l.window)

	recent := l.events[key][:0]
	for _, t := range l.events[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) >= l.limit {
		l.events[key] = recent
		return false, nil
	}
	l.events[key] = append(recent, now)
	return true, nil
}

// Reset 清除计数
func (l *MemoryLimiter) Reset(_ context.Context, userID int64, action string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.events, fmt.Sprintf("%d:%s", userID, action))
	return nil
}

// Prune 清理窗口外的记录，返回剩余的键数量
func (l *MemoryLimiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.clock.Now().Add(-l.window)
	for key, events := range l.events {
		if len(events) == 0 || !events[len(events)-1].After(cutoff) {
			delete(l.events, key)
		}
	}
	return len(l.events)
}
