package game

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(values ...int) *Engine {
	return NewEngine(NewFixedGenerator(values...), DefaultPayouts())
}

func mult(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCoinFlip(t *testing.T) {
	out := newTestEngine(0).CoinFlip(Heads)
	assert.True(t, out.Won)
	assert.True(t, out.Multiplier.Equal(mult("2")))

	out = newTestEngine(1).CoinFlip(Heads)
	assert.False(t, out.Won)
	assert.True(t, out.Multiplier.IsZero())

	out = newTestEngine(1).CoinFlip(Tails)
	assert.True(t, out.Won)
}

func TestDice(t *testing.T) {
	cases := []struct {
		roll int
		won  bool
		mult string
	}{
		{1, false, "0"},
		{3, false, "0"},
		{4, true, "2"},
		{5, true, "2"},
		{6, true, "5"},
	}
	for _, tc := range cases {
		out := newTestEngine(tc.roll).Dice()
		assert.Equal(t, tc.won, out.Won, "roll %d", tc.roll)
		assert.True(t, out.Multiplier.Equal(mult(tc.mult)), "roll %d", tc.roll)
		assert.Contains(t, out.Description, "掷出")
	}
}

func TestSlots(t *testing.T) {
	out := newTestEngine(5, 5, 5).Slots()
	assert.True(t, out.Won)
	assert.True(t, out.Multiplier.Equal(mult("10")))
	assert.Contains(t, out.Description, "⭐ | ⭐ | ⭐")

	for _, reels := range [][]int{{0, 0, 1}, {0, 1, 1}, {1, 0, 1}} {
		out = newTestEngine(reels...).Slots()
		assert.True(t, out.Won, "%v", reels)
		assert.True(t, out.Multiplier.Equal(mult("3")), "%v", reels)
	}

	out = newTestEngine(0, 1, 2).Slots()
	assert.False(t, out.Won)
}

func TestRoulette(t *testing.T) {
	red, err := ParseRouletteBet("color:red")
	require.NoError(t, err)
	even, _ := ParseRouletteBet("even")
	odd, _ := ParseRouletteBet("odd")
	black, _ := ParseRouletteBet("color:black")

	// 17 为红色单数
	out := newTestEngine(17).Roulette(red)
	assert.True(t, out.Won)
	assert.True(t, out.Multiplier.Equal(mult("2")))

	out = newTestEngine(17).Roulette(even)
	assert.False(t, out.Won)

	out = newTestEngine(17).Roulette(odd)
	assert.True(t, out.Won)

	num, _ := NumberBet(17)
	out = newTestEngine(17).Roulette(num)
	assert.True(t, out.Won)
	assert.True(t, out.Multiplier.Equal(mult("36")))

	out = newTestEngine(18).Roulette(black)
	assert.True(t, out.Won)

	// 0 为绿色，颜色与单双都不中
	for _, bet := range []RouletteBet{red, black, even, odd} {
		out = newTestEngine(0).Roulette(bet)
		assert.False(t, out.Won, bet.Label())
	}
	zero, _ := NumberBet(0)
	assert.True(t, newTestEngine(0).Roulette(zero).Won)
}

func TestBlackjack(t *testing.T) {
	// 玩家 10+9，庄家 10+8
	out := newTestEngine(10, 9, 10, 8).Blackjack()
	assert.True(t, out.Won)
	assert.True(t, out.Multiplier.Equal(mult("2")))

	// 平局退还本金
	out = newTestEngine(10, 5, 7, 8).Blackjack()
	assert.True(t, out.Won)
	assert.True(t, out.Multiplier.Equal(mult("1")))

	out = newTestEngine(2, 3, 10, 10).Blackjack()
	assert.False(t, out.Won)
}

func TestCrash(t *testing.T) {
	// 爆炸点 1.00+2.50=3.50，兑现 1.00+1.25=2.25
	out := newTestEngine(250, 125).Crash()
	assert.True(t, out.Won)
	assert.True(t, out.Multiplier.Equal(mult("2.25")))
	assert.Contains(t, out.Description, "x3.50")

	out = newTestEngine(50, 125).Crash()
	assert.False(t, out.Won)

	// 相等视为爆炸
	out = newTestEngine(100, 100).Crash()
	assert.False(t, out.Won)
}

func TestPlayDispatch(t *testing.T) {
	e := newTestEngine(0)

	out, err := e.Play(KindCoinFlip, Choice{Side: Heads})
	require.NoError(t, err)
	assert.True(t, out.Won)

	_, err = e.Play(KindCoinFlip, Choice{})
	assert.Error(t, err)

	_, err = e.Play(KindRoulette, Choice{})
	assert.Error(t, err)

	_, err = e.Play(Kind("poker"), Choice{})
	assert.Error(t, err)

	for _, k := range []Kind{KindDice, KindSlots, KindBlackjack, KindCrash} {
		_, err := e.Play(k, Choice{})
		assert.NoError(t, err, k)
	}
}

func TestPayout(t *testing.T) {
	assert.Equal(t, int64(200), Payout(100, mult("2.0")))
	assert.Equal(t, int64(151), Payout(101, mult("1.5")))
	assert.Equal(t, int64(224), Payout(100, mult("2.249")))
	assert.Equal(t, int64(0), Payout(100, decimal.Zero))
	assert.Equal(t, int64(0), Payout(0, mult("2")))
}

func TestParseHelpers(t *testing.T) {
	k, err := ParseKind(" Roulette ")
	require.NoError(t, err)
	assert.Equal(t, KindRoulette, k)
	assert.True(t, k.NeedsChoice())
	assert.False(t, KindDice.NeedsChoice())
	_, err = ParseKind("poker")
	assert.Error(t, err)

	side, err := ParseSide("TAILS")
	require.NoError(t, err)
	assert.Equal(t, Tails, side)
	_, err = ParseSide("edge")
	assert.Error(t, err)

	bet, err := ParseRouletteBet("number:36")
	require.NoError(t, err)
	assert.Equal(t, RouletteBet{Type: BetNumber, Number: 36}, bet)
	bet, err = ParseRouletteBet("7")
	require.NoError(t, err)
	assert.Equal(t, 7, bet.Number)

	for _, bad := range []string{"37", "-1", "color:green", "number:x", "high"} {
		_, err := ParseRouletteBet(bad)
		assert.Error(t, err, bad)
	}

	assert.Equal(t, Green, ColorOf(0))
	assert.Equal(t, Red, ColorOf(17))
	assert.Equal(t, Black, ColorOf(36))
}

func TestCryptoRandomGeneratorRange(t *testing.T) {
	g := NewCryptoRandomGenerator()
	seen := make(map[int]bool)
	for i := 0; i < 1000; i++ {
		n := g.NextInt(0, 6)
		require.GreaterOrEqual(t, n, 0)
		require.Less(t, n, 6)
		seen[n] = true
	}
	assert.Len(t, seen, 6)
	assert.Equal(t, 3, g.NextInt(3, 3))
}

func TestFixedGeneratorWrapsOutOfRange(t *testing.T) {
	g := NewFixedGenerator(7, 2)
	assert.Equal(t, 1, g.NextInt(0, 6))
	assert.Equal(t, 2, g.NextInt(0, 6))
	assert.Equal(t, 1, g.NextInt(0, 6))

	g.Reset(4)
	assert.Equal(t, 4, g.NextInt(1, 7))
}
