package game

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Outcome 一局的结果
type Outcome struct {
	Won         bool            `json:"won"`
	Description string          `json:"description"`
	Multiplier  decimal.Decimal `json:"multiplier"`
}

// Choice 玩家的二次选择
type Choice struct {
	Side     Side
	Roulette RouletteBet
}

// SlotSymbols 老虎机符号
var SlotSymbols = []string{"🍎", "🍊", "🍇", "🍋", "🍒", "⭐"}

// Engine 游戏引擎
// 引擎只依赖随机源和赔率表，不做任何 I/O，可以并发使用
type Engine struct {
	rng     RandomGenerator
	payouts Payouts
}

// NewEngine 创建游戏引擎
func NewEngine(rng RandomGenerator, payouts Payouts) *Engine {
	if rng == nil {
		rng = NewCryptoRandomGenerator()
	}
	return &Engine{rng: rng, payouts: payouts}
}

// Payouts 当前赔率表
func (e *Engine) Payouts() Payouts {
	return e.payouts
}

// Play 结算一局
func (e *Engine) Play(kind Kind, choice Choice) (Outcome, error) {
	switch kind {
	case KindCoinFlip:
		if choice.Side != Heads && choice.Side != Tails {
			return Outcome{}, fmt.Errorf("抛硬币需要选择正面或反面")
		}
		return e.CoinFlip(choice.Side), nil
	case KindDice:
		return e.Dice(), nil
	case KindSlots:
		return e.Slots(), nil
	case KindRoulette:
		if choice.Roulette.Type == "" {
			return Outcome{}, fmt.Errorf("轮盘需要下注类型")
		}
		return e.Roulette(choice.Roulette), nil
	case KindBlackjack:
		return e.Blackjack(), nil
	case KindCrash:
		return e.Crash(), nil
	}
	return Outcome{}, fmt.Errorf("未知的游戏类型: %q", kind)
}

func lose(desc string) Outcome {
	return Outcome{Won: false, Description: desc, Multiplier: decimal.Zero}
}

func win(desc string, m decimal.Decimal) Outcome {
	return Outcome{Won: true, Description: desc, Multiplier: m}
}

// CoinFlip 抛硬币
func (e *Engine) CoinFlip(choice Side) Outcome {
	result := Heads
	if e.rng.NextInt(0, 2) == 1 {
		result = Tails
	}

	desc := fmt.Sprintf("结果: %s，你选择了 %s", result.Label(), choice.Label())
	if result == choice {
		return win(desc, e.payouts.CoinFlip)
	}
	return lose(desc)
}

// Dice 掷骰子：6 点高倍，4、5 点低倍
func (e *Engine) Dice() Outcome {
	roll := e.rng.NextInt(1, 7)
	desc := fmt.Sprintf("🎲 掷出 %d 点", roll)

	switch {
	case roll == 6:
		return win(desc, e.payouts.DiceSix)
	case roll >= 4:
		return win(desc, e.payouts.DiceHigh)
	default:
		return lose(desc)
	}
}

// Slots 三个转轮
func (e *Engine) Slots() Outcome {
	var reels [3]int
	for i := range reels {
		reels[i] = e.rng.NextInt(0, len(SlotSymbols))
	}

	symbols := make([]string, len(reels))
	for i, r := range reels {
		symbols[i] = SlotSymbols[r]
	}
	desc := "| " + strings.Join(symbols, " | ") + " |"

	switch {
	case reels[0] == reels[1] && reels[1] == reels[2]:
		return win(desc+" 三连！", e.payouts.SlotsTriple)
	case reels[0] == reels[1] || reels[1] == reels[2] || reels[0] == reels[2]:
		return win(desc+" 两个相同", e.payouts.SlotsPair)
	default:
		return lose(desc)
	}
}

// Roulette 轮盘 0-36
func (e *Engine) Roulette(bet RouletteBet) Outcome {
	n := e.rng.NextInt(0, 37)
	color := ColorOf(n)
	desc := fmt.Sprintf("🎡 落在 %d %s，你押了 %s", n, color.Label(), bet.Label())

	switch bet.Type {
	case BetNumber:
		if n == bet.Number {
			return win(desc, e.payouts.RouletteNumber)
		}
	case BetColor:
		if color != Green && color == bet.Color {
			return win(desc, e.payouts.RouletteColor)
		}
	case BetEven:
		if n != 0 && n%2 == 0 {
			return win(desc, e.payouts.RouletteParity)
		}
	case BetOdd:
		if n%2 == 1 {
			return win(desc, e.payouts.RouletteParity)
		}
	}
	return lose(desc)
}

// Blackjack 简化21点：双方各两张 1-10 的牌
func (e *Engine) Blackjack() Outcome {
	player := e.rng.NextInt(1, 11) + e.rng.NextInt(1, 11)
	dealer := e.rng.NextInt(1, 11) + e.rng.NextInt(1, 11)
	desc := fmt.Sprintf("🃏 你的点数 %d，庄家 %d", player, dealer)

	switch {
	case player > 21:
		return lose(desc + "，爆牌")
	case dealer > 21 || player > dealer:
		return win(desc, e.payouts.BlackjackWin)
	case player == dealer:
		return win(desc+"，平局退还", e.payouts.BlackjackPush)
	default:
		return lose(desc)
	}
}

// Crash 火箭：自动兑现倍数低于爆炸点即获胜
func (e *Engine) Crash() Outcome {
	crash := decimal.New(int64(100+e.rng.NextInt(0, 500)), -2)
	cashout := decimal.New(int64(100+e.rng.NextInt(0, 300)), -2)
	desc := fmt.Sprintf("🚀 爆炸点 x%s，自动兑现 x%s", crash.StringFixed(2), cashout.StringFixed(2))

	if cashout.LessThan(crash) {
		return win(desc, cashout)
	}
	return lose(desc)
}
