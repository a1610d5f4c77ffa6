package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/casino-bot/internal/game"
	"go.uber.org/zap"
)

func TestManager_AcquireSerializesSameUser(t *testing.T) {
	m := NewManager(zap.NewNop(), time.Minute)

	var inside int32
	var maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, release := m.Acquire(42)
			defer release()

			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 1, m.Active())
}

func TestManager_DifferentUsersDoNotBlock(t *testing.T) {
	m := NewManager(zap.NewNop(), time.Minute)

	_, releaseA := m.Acquire(1)
	defer releaseA()

	done := make(chan struct{})
	go func() {
		_, releaseB := m.Acquire(2)
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("不同玩家之间不应互相阻塞")
	}
}

func TestManager_StatePersistsBetweenActions(t *testing.T) {
	m := NewManager(zap.NewNop(), time.Minute)

	sm, release := m.Acquire(7)
	require.NoError(t, sm.Trigger(context.Background(), EventSelectGame, Payload{Game: game.KindSlots}))
	release()
	release() // 重复释放无副作用

	assert.Equal(t, StateAwaitingBet, m.Peek(7).Kind)
	assert.Equal(t, StateIdle, m.Peek(8).Kind)
}

func TestManager_PeekDoesNotCreateSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewManager(zap.NewNop(), 10*time.Minute, WithClock(clock))

	state := m.Peek(99)
	assert.Equal(t, StateIdle, state.Kind)
	assert.False(t, state.Pending())
	assert.Equal(t, 0, m.Active())

	sm, release := m.Acquire(5)
	require.NoError(t, sm.Trigger(context.Background(), EventSelectPromo, Payload{}))
	release()

	// 查看不算活跃，超时后照常清理
	clock.Advance(11 * time.Minute)
	assert.Equal(t, StateAwaitingPromoCode, m.Peek(5).Kind)
	assert.Equal(t, 1, m.Active())
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 0, m.Active())
}

func TestManager_Sweep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewManager(zap.NewNop(), 10*time.Minute, WithClock(clock))

	// 空闲会话随时可清理
	_, release := m.Acquire(1)
	release()

	// 进行中的会话在超时前保留
	sm, release := m.Acquire(2)
	require.NoError(t, sm.Trigger(context.Background(), EventSelectPromo, Payload{}))
	release()

	// 正在持有锁的会话不清理
	sm3, release3 := m.Acquire(3)
	require.NoError(t, sm3.Trigger(context.Background(), EventSelectPromo, Payload{}))

	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 2, m.Active())

	clock.Advance(11 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Active())

	release3()
	assert.Equal(t, 0, m.Sweep())
	clock.Advance(11 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 0, m.Active())
}

func TestManager_StateChangeHook(t *testing.T) {
	var events []Event
	m := NewManager(zap.NewNop(), time.Minute, WithStateChangeHook(func(userID int64, from, to Kind, event Event) {
		events = append(events, event)
	}))

	sm, release := m.Acquire(1)
	defer release()
	require.NoError(t, sm.Trigger(context.Background(), EventSelectGame, Payload{Game: game.KindDice}))
	assert.Equal(t, []Event{EventSelectGame}, events)
}
