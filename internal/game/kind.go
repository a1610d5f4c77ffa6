package game

import (
	"fmt"
	"strings"
)

// Kind 游戏类型（封闭枚举）
type Kind string

const (
	KindCoinFlip  Kind = "coinflip"
	KindDice      Kind = "dice"
	KindSlots     Kind = "slots"
	KindRoulette  Kind = "roulette"
	KindBlackjack Kind = "blackjack"
	KindCrash     Kind = "crash"
)

// Kinds 菜单中展示的顺序
var Kinds = []Kind{KindCoinFlip, KindDice, KindSlots, KindRoulette, KindBlackjack, KindCrash}

// ParseKind 解析游戏类型
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindCoinFlip, KindDice, KindSlots, KindRoulette, KindBlackjack, KindCrash:
		return k, nil
	}
	return "", fmt.Errorf("未知的游戏类型: %q", s)
}

// NeedsChoice 下注后是否还需要玩家选择
func (k Kind) NeedsChoice() bool {
	switch k {
	case KindCoinFlip, KindRoulette:
		return true
	case KindDice, KindSlots, KindBlackjack, KindCrash:
		return false
	}
	return false
}

// Title 游戏名称
func (k Kind) Title() string {
	switch k {
	case KindCoinFlip:
		return "🪙 抛硬币"
	case KindDice:
		return "🎲 骰子"
	case KindSlots:
		return "🎰 老虎机"
	case KindRoulette:
		return "🎡 轮盘"
	case KindBlackjack:
		return "🃏 21点"
	case KindCrash:
		return "🚀 火箭"
	}
	return string(k)
}

func (k Kind) String() string {
	return string(k)
}
