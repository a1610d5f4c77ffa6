package models

import (
	"time"
)

// PromoCode 促销码表
type PromoCode struct {
	Code        string    `gorm:"primaryKey;size:32" json:"code"`
	Reward      int64     `gorm:"not null" json:"reward"`
	MaxUses     int64     `gorm:"not null" json:"max_uses"`
	CurrentUses int64     `gorm:"not null;default:0" json:"current_uses"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 指定表名
func (PromoCode) TableName() string {
	return "promo_codes"
}

// Remaining 剩余可用次数
func (p *PromoCode) Remaining() int64 {
	if p.CurrentUses >= p.MaxUses {
		return 0
	}
	return p.MaxUses - p.CurrentUses
}

// PromoRedemption 促销码使用记录，(user_id, code) 复合主键
type PromoRedemption struct {
	UserID    int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Code      string    `gorm:"primaryKey;size:32" json:"code"`
	Reward    int64     `gorm:"not null" json:"reward"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (PromoRedemption) TableName() string {
	return "promo_redemptions"
}
