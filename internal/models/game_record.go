package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GameRecord 游戏结果记录表（只追加）
type GameRecord struct {
	ID         uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	RoundID    string          `gorm:"uniqueIndex;size:64;not null" json:"round_id"`
	UserID     int64           `gorm:"not null;index" json:"user_id"`
	GameType   string          `gorm:"size:20;not null;index" json:"game_type"`
	Bet        int64           `gorm:"not null" json:"bet"`
	Payout     int64           `gorm:"not null;default:0" json:"payout"`
	Multiplier decimal.Decimal `gorm:"type:varchar(32);not null" json:"multiplier"`
	Outcome    string          `gorm:"size:255" json:"outcome"`
	CreatedAt  time.Time       `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (GameRecord) TableName() string {
	return "game_records"
}

// Won 是否赢得本局
func (r *GameRecord) Won() bool {
	return r.Payout > 0
}
