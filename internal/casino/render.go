package casino

import (
	"fmt"
	"strings"

	"github.com/wfunc/casino-bot/internal/config"
	"github.com/wfunc/casino-bot/internal/game"
	"github.com/wfunc/casino-bot/internal/models"
)

var medals = []string{"🥇", "🥈", "🥉"}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "匿名玩家"
	}
	return name
}

func renderWelcome(balance int64) string {
	return fmt.Sprintf("🎰 欢迎来到娱乐场 🎰\n\n💰 余额: %d 积分\n🎮 %d 款游戏\n🎁 每日奖励等你来领！", balance, len(game.Kinds))
}

func renderMainMenu(balance int64) string {
	return fmt.Sprintf("🎰 主菜单\n💰 余额: %d 积分", balance)
}

// payoutTable 赔率说明，与配置保持一致
func payoutTable(p game.Payouts) []string {
	return []string{
		fmt.Sprintf("%s ×%s", game.KindCoinFlip.Title(), p.CoinFlip),
		fmt.Sprintf("%s ×%s / ×%s", game.KindDice.Title(), p.DiceHigh, p.DiceSix),
		fmt.Sprintf("%s ×%s / ×%s", game.KindSlots.Title(), p.SlotsPair, p.SlotsTriple),
		fmt.Sprintf("%s ×%s / ×%s", game.KindRoulette.Title(), p.RouletteColor, p.RouletteNumber),
		fmt.Sprintf("%s ×%s（平局 ×%s）", game.KindBlackjack.Title(), p.BlackjackWin, p.BlackjackPush),
		fmt.Sprintf("%s 自动兑现倍数", game.KindCrash.Title()),
	}
}

func renderGames(p game.Payouts) string {
	return "🎮 选择游戏:\n\n" + strings.Join(payoutTable(p), "\n")
}

func renderHelp(cfg config.CasinoConfig, p game.Payouts) string {
	var b strings.Builder
	b.WriteString("ℹ️ 帮助\n\n")
	fmt.Fprintf(&b, "💰 初始余额: %d 积分\n", cfg.StartBalance)
	fmt.Fprintf(&b, "🎁 每日奖励: %d 积分\n", cfg.DailyBonus)
	fmt.Fprintf(&b, "🎮 下注范围: %d - %d 积分\n\n", cfg.MinBet, cfg.MaxBet)
	b.WriteString("🎯 赔率:\n")
	for _, line := range payoutTable(p) {
		b.WriteString("• " + line + "\n")
	}
	b.WriteString("\n/start 回到主菜单")
	return b.String()
}

func renderProfile(a *models.Account) string {
	return fmt.Sprintf("👤 个人资料\n\n🆔 %s\n💰 %d 积分\n🎮 对局: %d\n🏆 胜局: %d\n📊 胜率: %.1f%%",
		displayName(a.DisplayName), a.Balance, a.TotalGames, a.TotalWins, a.WinRate()*100)
}

func renderLeaderboard(accounts []*models.Account) string {
	if len(accounts) == 0 {
		return "🏆 排行榜\n\n暂无玩家"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 排行榜 TOP %d\n\n", len(accounts))
	for i, a := range accounts {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		fmt.Fprintf(&b, "%s %s - %d (%.0f%%)\n", rank, displayName(a.DisplayName), a.Balance, a.WinRate()*100)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderHistory(records []*models.GameRecord) string {
	if len(records) == 0 {
		return "📜 最近对局\n\n还没有对局记录"
	}
	var b strings.Builder
	b.WriteString("📜 最近对局\n\n")
	for _, r := range records {
		mark := "😔"
		if r.Won() {
			mark = "🎉"
		}
		fmt.Fprintf(&b, "%s %s 下注 %d → %d (x%s) %s\n",
			mark, game.Kind(r.GameType).Title(), r.Bet, r.Payout, r.Multiplier.String(), r.CreatedAt.Format("01-02 15:04"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderBetPrompt(kind game.Kind, cfg config.CasinoConfig, balance int64) string {
	return fmt.Sprintf("%s\n💰 余额: %d\n请输入下注金额（%d - %d）:", kind.Title(), balance, cfg.MinBet, cfg.MaxBet)
}

func renderChoicePrompt(kind game.Kind, bet int64) string {
	if kind == game.KindRoulette {
		return fmt.Sprintf("🎡 已下注 %d，请选择颜色或单双，也可以直接输入 0-36 的数字:", bet)
	}
	return fmt.Sprintf("🪙 已下注 %d，请选择:", bet)
}

func renderRound(r *RoundResult, balance int64) string {
	var b strings.Builder
	b.WriteString(r.Description)
	b.WriteString("\n\n")
	if r.Won {
		fmt.Fprintf(&b, "🎉 赢得 %d 积分！", r.Payout)
	} else {
		b.WriteString("😔 没有中奖")
	}
	fmt.Fprintf(&b, "\n💰 余额: %d", balance)
	return b.String()
}

func renderBonus(claimed bool, amount, balance int64) string {
	if claimed {
		return fmt.Sprintf("🎁 领取成功！\n💰 +%d 积分\n余额: %d", amount, balance)
	}
	return "🎁 每日奖励\n❌ 今天已经领过了，明天再来"
}
