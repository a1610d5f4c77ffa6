package game

import (
	"github.com/shopspring/decimal"
	"github.com/wfunc/casino-bot/internal/config"
)

// Payouts 赔率表
type Payouts struct {
	CoinFlip       decimal.Decimal
	DiceSix        decimal.Decimal
	DiceHigh       decimal.Decimal
	SlotsTriple    decimal.Decimal
	SlotsPair      decimal.Decimal
	RouletteNumber decimal.Decimal
	RouletteColor  decimal.Decimal
	RouletteParity decimal.Decimal
	BlackjackWin   decimal.Decimal
	BlackjackPush  decimal.Decimal
}

// NewPayouts 从配置构建赔率表
func NewPayouts(cfg config.PayoutConfig) Payouts {
	return Payouts{
		CoinFlip:       decimal.NewFromFloat(cfg.CoinFlip),
		DiceSix:        decimal.NewFromFloat(cfg.DiceSix),
		DiceHigh:       decimal.NewFromFloat(cfg.DiceHigh),
		SlotsTriple:    decimal.NewFromFloat(cfg.SlotsTriple),
		SlotsPair:      decimal.NewFromFloat(cfg.SlotsPair),
		RouletteNumber: decimal.NewFromFloat(cfg.RouletteNumber),
		RouletteColor:  decimal.NewFromFloat(cfg.RouletteColor),
		RouletteParity: decimal.NewFromFloat(cfg.RouletteParity),
		BlackjackWin:   decimal.NewFromFloat(cfg.BlackjackWin),
		BlackjackPush:  decimal.NewFromFloat(cfg.BlackjackPush),
	}
}

// DefaultPayouts 默认赔率表
func DefaultPayouts() Payouts {
	return NewPayouts(config.Default().Casino.Payouts)
}

// Payout 计算派彩：floor(bet × multiplier)
func Payout(bet int64, multiplier decimal.Decimal) int64 {
	if bet <= 0 || !multiplier.IsPositive() {
		return 0
	}
	return decimal.NewFromInt(bet).Mul(multiplier).Floor().IntPart()
}
