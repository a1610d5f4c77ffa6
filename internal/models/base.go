package models

import (
	"time"
)

// BaseModel 自增主键与时间戳
// 自增ID同时作为创建顺序，排行榜以此打破平局
type BaseModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
