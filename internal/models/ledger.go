package models

import (
	"time"
)

// EntryType 账本流水类型
type EntryType string

const (
	EntryStake  EntryType = "stake"
	EntryPayout EntryType = "payout"
	EntryBonus  EntryType = "bonus"
	EntryPromo  EntryType = "promo"
	EntryRefund EntryType = "refund"
	EntryAdjust EntryType = "adjust"
)

// LedgerEntry 余额变动流水（只追加）
// 每次余额变动在同一事务内写入一条
type LedgerEntry struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	EntryNo       string    `gorm:"uniqueIndex;size:64;not null" json:"entry_no"`
	UserID        int64     `gorm:"not null;index" json:"user_id"`
	Type          EntryType `gorm:"size:20;not null;index" json:"type"`
	Amount        int64     `gorm:"not null" json:"amount"`
	BeforeBalance int64     `json:"before_balance"`
	AfterBalance  int64     `json:"after_balance"`
	RefID         string    `gorm:"size:64;index" json:"ref_id"`
	Description   string    `gorm:"size:255" json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName 指定表名
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
