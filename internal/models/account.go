package models

// Account 玩家账户表
type Account struct {
	BaseModel
	UserID        int64   `gorm:"uniqueIndex;not null" json:"user_id"`
	DisplayName   string  `gorm:"size:128" json:"display_name"`
	Balance       int64   `gorm:"not null;default:0" json:"balance"`
	LastBonusDate *string `gorm:"size:10" json:"last_bonus_date,omitempty"` // YYYY-MM-DD
	TotalGames    int64   `gorm:"not null;default:0" json:"total_games"`
	TotalWins     int64   `gorm:"not null;default:0" json:"total_wins"`
	TotalStaked   int64   `gorm:"not null;default:0" json:"total_staked"`
	TotalPaidOut  int64   `gorm:"not null;default:0" json:"total_paid_out"`
}

// TableName 指定表名
func (Account) TableName() string {
	return "accounts"
}

// WinRate 胜率（0~1）
func (a *Account) WinRate() float64 {
	if a.TotalGames == 0 {
		return 0
	}
	return float64(a.TotalWins) / float64(a.TotalGames)
}
