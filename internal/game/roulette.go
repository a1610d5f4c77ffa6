package game

import (
	"fmt"
	"strconv"
	"strings"
)

// Side 硬币的面
type Side string

const (
	Heads Side = "heads"
	Tails Side = "tails"
)

// ParseSide 解析硬币选择
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case Heads:
		return Heads, nil
	case Tails:
		return Tails, nil
	}
	return "", fmt.Errorf("无效的硬币选择: %q", s)
}

// Label 显示名称
func (s Side) Label() string {
	if s == Heads {
		return "🦅 正面"
	}
	return "🪙 反面"
}

// Color 轮盘颜色
type Color string

const (
	Red   Color = "red"
	Black Color = "black"
	Green Color = "green"
)

// Label 显示名称
func (c Color) Label() string {
	switch c {
	case Red:
		return "🔴 红"
	case Black:
		return "⚫ 黑"
	default:
		return "🟢 绿"
	}
}

// ColorOf 数字对应的颜色：0 为绿，奇数为红，偶数为黑
func ColorOf(n int) Color {
	switch {
	case n == 0:
		return Green
	case n%2 == 1:
		return Red
	default:
		return Black
	}
}

// BetType 轮盘下注类型
type BetType string

const (
	BetNumber BetType = "number"
	BetColor  BetType = "color"
	BetEven   BetType = "even"
	BetOdd    BetType = "odd"
)

// RouletteBet 轮盘下注
type RouletteBet struct {
	Type   BetType `json:"type"`
	Number int     `json:"number,omitempty"`
	Color  Color   `json:"color,omitempty"`
}

// NumberBet 押单个数字
func NumberBet(n int) (RouletteBet, error) {
	if n < 0 || n > 36 {
		return RouletteBet{}, fmt.Errorf("轮盘数字必须在 0-36 之间: %d", n)
	}
	return RouletteBet{Type: BetNumber, Number: n}, nil
}

// ParseRouletteBet 解析下注描述
// 支持 "color:red"、"color:black"、"even"、"odd"、"number:17" 以及纯数字
func ParseRouletteBet(s string) (RouletteBet, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		return NumberBet(n)
	}

	kind, value, _ := strings.Cut(s, ":")
	switch BetType(kind) {
	case BetEven:
		return RouletteBet{Type: BetEven}, nil
	case BetOdd:
		return RouletteBet{Type: BetOdd}, nil
	case BetColor:
		switch Color(value) {
		case Red, Black:
			return RouletteBet{Type: BetColor, Color: Color(value)}, nil
		}
		return RouletteBet{}, fmt.Errorf("只能押红或黑: %q", value)
	case BetNumber:
		n, err := strconv.Atoi(value)
		if err != nil {
			return RouletteBet{}, fmt.Errorf("无效的数字: %q", value)
		}
		return NumberBet(n)
	}
	return RouletteBet{}, fmt.Errorf("无效的轮盘下注: %q", s)
}

// Label 显示名称
func (b RouletteBet) Label() string {
	switch b.Type {
	case BetNumber:
		return fmt.Sprintf("数字 %d", b.Number)
	case BetColor:
		return b.Color.Label()
	case BetEven:
		return "双数"
	case BetOdd:
		return "单数"
	}
	return string(b.Type)
}
