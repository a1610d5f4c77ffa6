package session

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// entry 单个玩家的会话与互斥锁
type entry struct {
	mu           sync.Mutex
	machine      *StateMachine
	lastActivity time.Time
	refs         int // 持有或等待锁的调用数，受 Manager.mu 保护
}

// Manager 会话管理器
// 每个玩家一把锁，不同玩家之间互不阻塞
type Manager struct {
	mu          sync.Mutex
	entries     map[int64]*entry
	logger      *zap.Logger
	clock       clockwork.Clock
	idleTimeout time.Duration

	onStateChange func(userID int64, from, to Kind, event Event)
}

// Option 管理器选项
type Option func(*Manager)

// WithClock 指定时钟
func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithStateChangeHook 状态变更回调
func WithStateChangeHook(fn func(userID int64, from, to Kind, event Event)) Option {
	return func(m *Manager) { m.onStateChange = fn }
}

// NewManager 创建会话管理器
func NewManager(logger *zap.Logger, idleTimeout time.Duration, opts ...Option) *Manager {
	m := &Manager{
		entries:     make(map[int64]*entry),
		logger:      logger,
		clock:       clockwork.NewRealClock(),
		idleTimeout: idleTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire 进入玩家的互斥区，返回状态机和释放函数
// 同一玩家的并发动作在这里排队，整个动作处理期间持有锁
func (m *Manager) Acquire(userID int64) (*StateMachine, func()) {
	m.mu.Lock()
	e, ok := m.entries[userID]
	if !ok {
		sm := NewStateMachine(userID, m.logger, m.clock)
		if m.onStateChange != nil {
			sm.OnStateChange(m.onStateChange)
		}
		e = &entry{machine: sm, lastActivity: m.clock.Now()}
		m.entries[userID] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			e.lastActivity = m.clock.Now()
			e.mu.Unlock()

			m.mu.Lock()
			e.refs--
			m.mu.Unlock()
		})
	}
	return e.machine, release
}

// Peek 查看玩家当前状态，不存在时为空闲
// 只读，不创建会话也不刷新活跃时间
func (m *Manager) Peek(userID int64) State {
	m.mu.Lock()
	e, ok := m.entries[userID]
	if !ok {
		m.mu.Unlock()
		return State{Kind: StateIdle, UpdatedAt: m.clock.Now()}
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
	state := e.machine.State()
	e.mu.Unlock()

	m.mu.Lock()
	e.refs--
	m.mu.Unlock()
	return state
}

// Sweep 清理超时或空闲的会话，返回清理数量
// 正在被使用的会话不会被清理
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	removed := 0
	for userID, e := range m.entries {
		if e.refs > 0 {
			continue
		}
		state := e.machine.State()
		inactive := now.Sub(e.lastActivity)
		if state.Pending() && inactive <= m.idleTimeout {
			continue
		}
		if state.Pending() {
			m.logger.Info("清理超时会话",
				zap.Int64("user_id", userID),
				zap.String("state", string(state.Kind)),
				zap.String("game", string(state.Game)),
				zap.Int64("bet", state.Bet),
				zap.Duration("inactive", inactive))
		}
		delete(m.entries, userID)
		removed++
	}
	return removed
}

// Active 当前内存中的会话数
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
