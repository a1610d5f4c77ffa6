package session

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	apperrors "github.com/wfunc/casino-bot/internal/errors"
	"github.com/wfunc/casino-bot/internal/game"
	"go.uber.org/zap"
)

// Kind 会话状态（封闭枚举）
type Kind string

const (
	StateIdle              Kind = "idle"                // 空闲
	StateAwaitingBet       Kind = "awaiting_bet"        // 已选游戏，等待下注金额
	StateAwaitingChoice    Kind = "awaiting_choice"     // 已扣注，等待玩家选择
	StateAwaitingPromoCode Kind = "awaiting_promo_code" // 等待输入促销码
)

// Event 会话事件
type Event string

const (
	EventSelectGame  Event = "select_game"
	EventStakeBet    Event = "stake_bet" // 两步游戏扣注后等待选择
	EventResolve     Event = "resolve"   // 一局结算完成
	EventSelectPromo Event = "select_promo"
	EventSubmitCode  Event = "submit_code"
	EventCancel      Event = "cancel"
)

var allStates = []Kind{StateIdle, StateAwaitingBet, StateAwaitingChoice, StateAwaitingPromoCode}

// State 会话数据快照
type State struct {
	Kind      Kind      `json:"kind"`
	Game      game.Kind `json:"game,omitempty"`
	Bet       int64     `json:"bet,omitempty"`
	RoundID   string    `json:"round_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Pending 是否有未完成的流程
func (s State) Pending() bool {
	return s.Kind != StateIdle
}

// Payload 事件携带的数据
type Payload struct {
	Game    game.Kind
	Bet     int64
	RoundID string
}

// StateTransition 状态转换定义
type StateTransition struct {
	From   Kind
	Event  Event
	To     Kind
	Action func(ctx context.Context, sm *StateMachine, p Payload) error
}

// StateMachine 单个玩家的会话状态机
// 调用方需持有 Manager 给出的用户锁
type StateMachine struct {
	userID      int64
	state       State
	transitions map[string]StateTransition
	logger      *zap.Logger
	clock       clockwork.Clock

	onStateChange func(userID int64, from, to Kind, event Event)
}

// NewStateMachine 创建状态机
func NewStateMachine(userID int64, logger *zap.Logger, clock clockwork.Clock) *StateMachine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	sm := &StateMachine{
		userID:      userID,
		transitions: make(map[string]StateTransition),
		logger:      logger,
		clock:       clock,
	}
	sm.state = State{Kind: StateIdle, UpdatedAt: clock.Now()}
	sm.initTransitions()
	return sm
}

// initTransitions 初始化状态转换规则
func (sm *StateMachine) initTransitions() {
	for _, from := range allStates {
		// 任何状态下选择游戏都会丢弃之前的占位数据（已扣的注不退）
		sm.addTransition(StateTransition{
			From:  from,
			Event: EventSelectGame,
			To:    StateAwaitingBet,
			Action: func(ctx context.Context, sm *StateMachine, p Payload) error {
				if _, err := game.ParseKind(string(p.Game)); err != nil {
					return apperrors.New(apperrors.ErrUnknownGame, string(p.Game))
				}
				sm.state.Game = p.Game
				sm.state.Bet = 0
				sm.state.RoundID = ""
				return nil
			},
		})

		sm.addTransition(StateTransition{
			From:   from,
			Event:  EventSelectPromo,
			To:     StateAwaitingPromoCode,
			Action: clearData,
		})

		sm.addTransition(StateTransition{
			From:   from,
			Event:  EventCancel,
			To:     StateIdle,
			Action: clearData,
		})
	}

	// 等待下注 -> 等待选择（两步游戏，注金已扣）
	sm.addTransition(StateTransition{
		From:  StateAwaitingBet,
		Event: EventStakeBet,
		To:    StateAwaitingChoice,
		Action: func(ctx context.Context, sm *StateMachine, p Payload) error {
			if !sm.state.Game.NeedsChoice() {
				return apperrors.Newf(apperrors.ErrInvalidStateTransition, "%s 不需要二次选择", sm.state.Game)
			}
			if p.Bet <= 0 || p.RoundID == "" {
				return apperrors.New(apperrors.ErrInvalidBet, "缺少注金或回合ID")
			}
			sm.state.Bet = p.Bet
			sm.state.RoundID = p.RoundID
			return nil
		},
	})

	// 等待下注 -> 空闲（一步游戏直接结算）
	sm.addTransition(StateTransition{
		From:  StateAwaitingBet,
		Event: EventResolve,
		To:    StateIdle,
		Action: func(ctx context.Context, sm *StateMachine, p Payload) error {
			if sm.state.Game.NeedsChoice() {
				return apperrors.Newf(apperrors.ErrInvalidStateTransition, "%s 需要先选择", sm.state.Game)
			}
			return clearData(ctx, sm, p)
		},
	})

	// 等待选择 -> 空闲（结算完成）
	sm.addTransition(StateTransition{
		From:   StateAwaitingChoice,
		Event:  EventResolve,
		To:     StateIdle,
		Action: clearData,
	})

	// 等待促销码 -> 空闲（无论兑换成功与否）
	sm.addTransition(StateTransition{
		From:   StateAwaitingPromoCode,
		Event:  EventSubmitCode,
		To:     StateIdle,
		Action: clearData,
	})
}

func clearData(ctx context.Context, sm *StateMachine, p Payload) error {
	sm.state.Game = ""
	sm.state.Bet = 0
	sm.state.RoundID = ""
	return nil
}

// addTransition 添加状态转换
func (sm *StateMachine) addTransition(transition StateTransition) {
	sm.transitions[transitionKey(transition.From, transition.Event)] = transition
}

// transitionKey 生成转换键
func transitionKey(state Kind, event Event) string {
	return fmt.Sprintf("%s:%s", state, event)
}

// Trigger 触发事件，失败时保持原状态
func (sm *StateMachine) Trigger(ctx context.Context, event Event, p Payload) error {
	transition, ok := sm.transitions[transitionKey(sm.state.Kind, event)]
	if !ok {
		return apperrors.Newf(apperrors.ErrInvalidStateTransition, "状态=%s, 事件=%s", sm.state.Kind, event)
	}

	before := sm.state
	if transition.Action != nil {
		if err := transition.Action(ctx, sm, p); err != nil {
			sm.state = before
			return err
		}
	}

	sm.state.Kind = transition.To
	sm.state.UpdatedAt = sm.clock.Now()

	if sm.onStateChange != nil {
		sm.onStateChange(sm.userID, before.Kind, sm.state.Kind, event)
	}

	sm.logger.Debug("状态转换",
		zap.Int64("user_id", sm.userID),
		zap.String("from", string(before.Kind)),
		zap.String("to", string(sm.state.Kind)),
		zap.String("event", string(event)))
	return nil
}

// CanTrigger 当前状态能否处理事件
func (sm *StateMachine) CanTrigger(event Event) bool {
	_, ok := sm.transitions[transitionKey(sm.state.Kind, event)]
	return ok
}

// State 当前状态快照
func (sm *StateMachine) State() State {
	return sm.state
}

// UserID 所属玩家
func (sm *StateMachine) UserID() int64 {
	return sm.userID
}

// OnStateChange 设置状态变更回调
func (sm *StateMachine) OnStateChange(fn func(userID int64, from, to Kind, event Event)) {
	sm.onStateChange = fn
}
