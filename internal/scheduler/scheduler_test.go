package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wfunc/casino-bot/internal/ratelimit"
	"github.com/wfunc/casino-bot/internal/session"
)

func TestScheduler_RunsTasks(t *testing.T) {
	s, err := New(nil, zap.NewNop())
	require.NoError(t, err)

	var ok, failed atomic.Int32
	require.NoError(t, s.Every("tick", 20*time.Millisecond, func(ctx context.Context) error {
		ok.Add(1)
		return nil
	}))
	require.NoError(t, s.Every("broken", 20*time.Millisecond, func(ctx context.Context) error {
		failed.Add(1)
		return errors.New("boom")
	}))
	assert.ElementsMatch(t, []string{"tick", "broken"}, s.Jobs())

	s.Start()
	assert.Eventually(t, func() bool {
		return ok.Load() >= 2 && failed.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Stop())
}

func TestScheduler_RejectsZeroInterval(t *testing.T) {
	s, err := New(nil, zap.NewNop())
	require.NoError(t, err)
	defer s.Stop()

	assert.Error(t, s.Every("never", 0, func(context.Context) error { return nil }))
}

func TestScheduler_Register(t *testing.T) {
	s, err := New(nil, zap.NewNop())
	require.NoError(t, err)
	defer s.Stop()

	clock := clockwork.NewFakeClock()
	err = s.Register(Jobs{
		Sessions:      session.NewManager(zap.NewNop(), time.Minute, session.WithClock(clock)),
		Limiter:       ratelimit.NewMemoryLimiter(5, time.Minute, clock),
		SweepInterval: time.Minute,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{JobSessionSweep, JobLimiterPrune}, s.Jobs())

	// 没有内存状态的限流器不需要清理任务
	s2, err := New(nil, zap.NewNop())
	require.NoError(t, err)
	defer s2.Stop()
	require.NoError(t, s2.Register(Jobs{Limiter: ratelimit.Unlimited{}, SweepInterval: time.Minute}))
	assert.Empty(t, s2.Jobs())
}

func TestScheduler_SweepsIdleSessions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sessions := session.NewManager(zap.NewNop(), time.Millisecond, session.WithClock(clock))
	_, release := sessions.Acquire(1)
	release()
	require.Equal(t, 1, sessions.Active())
	clock.Advance(time.Second)

	s, err := New(nil, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Register(Jobs{Sessions: sessions, SweepInterval: 20 * time.Millisecond}))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return sessions.Active() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
