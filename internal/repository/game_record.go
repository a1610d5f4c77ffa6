package repository

import (
	"context"

	"github.com/wfunc/casino-bot/internal/models"
	"gorm.io/gorm"
)

// GameRecordRepository 游戏记录仓储接口
type GameRecordRepository interface {
	BaseRepository
	WithTx(tx *gorm.DB) GameRecordRepository
	Create(ctx context.Context, record *models.GameRecord) error
	FindByRoundID(ctx context.Context, roundID string) (*models.GameRecord, error)
	FindRecentByUserID(ctx context.Context, userID int64, limit int) ([]*models.GameRecord, error)
	Totals(ctx context.Context) (*GameTotals, error)
	TotalsByGame(ctx context.Context) ([]*GameTotals, error)
}

// GameTotals 对局汇总
type GameTotals struct {
	GameType    string `json:"game_type,omitempty"`
	Rounds      int64  `json:"rounds"`
	Wins        int64  `json:"wins"`
	TotalBet    int64  `json:"total_bet"`
	TotalPayout int64  `json:"total_payout"`
}

// Profit 庄家盈利
func (t *GameTotals) Profit() int64 {
	return t.TotalBet - t.TotalPayout
}

// gameRecordRepo 游戏记录仓储实现
type gameRecordRepo struct {
	*BaseRepo
}

// NewGameRecordRepository 创建游戏记录仓储
func NewGameRecordRepository(db *gorm.DB) GameRecordRepository {
	return &gameRecordRepo{BaseRepo: NewBaseRepo(db)}
}

// WithTx 使用事务
func (r *gameRecordRepo) WithTx(tx *gorm.DB) GameRecordRepository {
	return &gameRecordRepo{BaseRepo: NewBaseRepo(tx)}
}

// Create 写入游戏记录
func (r *gameRecordRepo) Create(ctx context.Context, record *models.GameRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// FindByRoundID 根据回合ID查找
func (r *gameRecordRepo) FindByRoundID(ctx context.Context, roundID string) (*models.GameRecord, error) {
	var record models.GameRecord
	err := r.db.WithContext(ctx).Where("round_id = ?", roundID).First(&record).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &record, nil
}

// FindRecentByUserID 用户最近的对局
func (r *gameRecordRepo) FindRecentByUserID(ctx context.Context, userID int64, limit int) ([]*models.GameRecord, error) {
	var records []*models.GameRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

const totalsSelect = "COUNT(*) AS rounds, " +
	"COALESCE(SUM(CASE WHEN payout > 0 THEN 1 ELSE 0 END), 0) AS wins, " +
	"COALESCE(SUM(bet), 0) AS total_bet, " +
	"COALESCE(SUM(payout), 0) AS total_payout"

// Totals 全部对局汇总
func (r *gameRecordRepo) Totals(ctx context.Context) (*GameTotals, error) {
	var totals GameTotals
	err := r.db.WithContext(ctx).
		Model(&models.GameRecord{}).
		Select(totalsSelect).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

// TotalsByGame 按游戏类型汇总
func (r *gameRecordRepo) TotalsByGame(ctx context.Context) ([]*GameTotals, error) {
	var totals []*GameTotals
	err := r.db.WithContext(ctx).
		Model(&models.GameRecord{}).
		Select("game_type, " + totalsSelect).
		Group("game_type").
		Order("game_type").
		Scan(&totals).Error
	return totals, err
}
