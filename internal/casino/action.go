package casino

import (
	"github.com/shopspring/decimal"

	apperrors "github.com/wfunc/casino-bot/internal/errors"
	"github.com/wfunc/casino-bot/internal/game"
	"github.com/wfunc/casino-bot/internal/session"
)

// ActionKind 入站动作类型
type ActionKind string

const (
	ActionText     ActionKind = "text"     // 玩家输入的文字
	ActionCallback ActionKind = "callback" // 按钮回调标签
)

// Action 来自聊天传输层的一个动作
type Action struct {
	UserID      int64      `json:"user_id"`
	DisplayName string     `json:"display_name"`
	Kind        ActionKind `json:"kind"`
	Content     string     `json:"content"`
}

// Text 文字动作
func Text(userID int64, displayName, content string) Action {
	return Action{UserID: userID, DisplayName: displayName, Kind: ActionText, Content: content}
}

// Callback 按钮动作
func Callback(userID int64, displayName, tag string) Action {
	return Action{UserID: userID, DisplayName: displayName, Kind: ActionCallback, Content: tag}
}

// Reply 返回给传输层的结果
// 只描述逻辑菜单结构，不关心具体的消息格式
type Reply struct {
	Text    string              `json:"text"`
	Menu    Menu                `json:"menu"`
	Round   *RoundResult        `json:"round,omitempty"`
	Err     *apperrors.AppError `json:"-"`
	Code    apperrors.ErrorCode `json:"error_code,omitempty"`
	State   session.Kind        `json:"state"`
	Balance int64               `json:"balance"`
}

// RoundResult 一局的结算结果
type RoundResult struct {
	RoundID     string          `json:"round_id"`
	Game        game.Kind       `json:"game"`
	Bet         int64           `json:"bet"`
	Won         bool            `json:"won"`
	Payout      int64           `json:"payout"`
	Multiplier  decimal.Decimal `json:"multiplier"`
	Description string          `json:"description"`
}

// Net 本局净输赢
func (r *RoundResult) Net() int64 {
	return r.Payout - r.Bet
}
