package casino

import (
	"fmt"
	"strings"

	"github.com/wfunc/casino-bot/internal/game"
)

// 回调标签
const (
	TagMain    = "main"
	TagGames   = "games"
	TagProfile = "profile"
	TagBonus   = "bonus"
	TagRating  = "rating"
	TagPromo   = "promo"
	TagHelp    = "help"
	TagHistory = "history"
	TagCancel  = "cancel"

	tagGamePrefix     = "game:"
	tagChoicePrefix   = "choice:"
	tagRoulettePrefix = "roulette:"
)

// MenuKind 菜单类型
type MenuKind string

const (
	MenuMain           MenuKind = "main"
	MenuGames          MenuKind = "games"
	MenuGameChoice     MenuKind = "game_choice"
	MenuRouletteChoice MenuKind = "roulette_choice"
	MenuBack           MenuKind = "back"
)

// Button 按钮：显示文字和回调标签
type Button struct {
	Label string `json:"label"`
	Tag   string `json:"tag"`
}

// Menu 按行排列的按钮
type Menu struct {
	Kind    MenuKind   `json:"kind"`
	Buttons [][]Button `json:"buttons"`
}

// Tags 菜单中全部的回调标签
func (m Menu) Tags() []string {
	var tags []string
	for _, row := range m.Buttons {
		for _, b := range row {
			tags = append(tags, b.Tag)
		}
	}
	return tags
}

// GameTag 选择游戏的回调标签
func GameTag(kind game.Kind) string {
	return tagGamePrefix + string(kind)
}

func mainMenu() Menu {
	return Menu{
		Kind: MenuMain,
		Buttons: [][]Button{
			{{Label: "🎮 游戏", Tag: TagGames}},
			{{Label: "👤 个人资料", Tag: TagProfile}, {Label: "🎁 每日奖励", Tag: TagBonus}},
			{{Label: "🏆 排行榜", Tag: TagRating}, {Label: "🏷 促销码", Tag: TagPromo}},
			{{Label: "📜 最近对局", Tag: TagHistory}, {Label: "ℹ️ 帮助", Tag: TagHelp}},
		},
	}
}

func gamesMenu() Menu {
	var rows [][]Button
	var row []Button
	for _, kind := range game.Kinds {
		row = append(row, Button{Label: kind.Title(), Tag: GameTag(kind)})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []Button{{Label: "🔙 返回", Tag: TagMain}})
	return Menu{Kind: MenuGames, Buttons: rows}
}

func coinChoiceMenu() Menu {
	return Menu{
		Kind: MenuGameChoice,
		Buttons: [][]Button{
			{
				{Label: "🪙 " + game.Heads.Label(), Tag: tagChoicePrefix + string(game.Heads)},
				{Label: "🪙 " + game.Tails.Label(), Tag: tagChoicePrefix + string(game.Tails)},
			},
			{{Label: "✖️ 放弃", Tag: TagCancel}},
		},
	}
}

func rouletteChoiceMenu() Menu {
	return Menu{
		Kind: MenuRouletteChoice,
		Buttons: [][]Button{
			{
				{Label: "🔴 红色", Tag: tagRoulettePrefix + "color:" + string(game.Red)},
				{Label: "⚫ 黑色", Tag: tagRoulettePrefix + "color:" + string(game.Black)},
			},
			{
				{Label: "📈 双数", Tag: tagRoulettePrefix + string(game.BetEven)},
				{Label: "📉 单数", Tag: tagRoulettePrefix + string(game.BetOdd)},
			},
			{{Label: "✖️ 放弃", Tag: TagCancel}},
		},
	}
}

// choiceMenu 两步游戏的选择菜单
func choiceMenu(kind game.Kind) Menu {
	if kind == game.KindRoulette {
		return rouletteChoiceMenu()
	}
	return coinChoiceMenu()
}

func backMenu() Menu {
	return Menu{
		Kind:    MenuBack,
		Buttons: [][]Button{{{Label: "🔙 返回", Tag: TagMain}}},
	}
}

// parseTag 拆分形如 "prefix:value" 的标签
func parseTag(tag, prefix string) (string, bool) {
	if !strings.HasPrefix(tag, prefix) {
		return "", false
	}
	return strings.TrimPrefix(tag, prefix), true
}

// NumberTag 押单个数字的回调标签
func NumberTag(n int) string {
	return fmt.Sprintf("%snumber:%d", tagRoulettePrefix, n)
}
