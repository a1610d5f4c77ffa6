package repository

import (
	"context"
	"errors"

	"github.com/wfunc/casino-bot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountRepository 账户仓储接口
type AccountRepository interface {
	BaseRepository
	WithTx(tx *gorm.DB) AccountRepository
	// Ensure 不存在时以初始余额创建账户，返回是否新建
	Ensure(ctx context.Context, userID int64, displayName string, startBalance int64) (bool, error)
	FindByUserID(ctx context.Context, userID int64) (*models.Account, error)
	UpdateDisplayName(ctx context.Context, userID int64, displayName string) error
	// AddBalance 变更余额，结果为负时返回 ErrInsufficientBalance
	AddBalance(ctx context.Context, userID int64, delta int64) error
	// ClaimBonus 仅当 last_bonus_date 早于 today 时发放奖励
	ClaimBonus(ctx context.Context, userID int64, today string, amount int64) (bool, error)
	UpdateRoundStats(ctx context.Context, userID int64, bet, payout int64) error
	Top(ctx context.Context, limit int) ([]*models.Account, error)
	Count(ctx context.Context) (int64, error)
	SumBalance(ctx context.Context) (int64, error)
	FindHighWinRate(ctx context.Context, minGames int64, maxWinRate float64) ([]*models.Account, error)
}

// accountRepo 账户仓储实现
type accountRepo struct {
	*BaseRepo
}

// NewAccountRepository 创建账户仓储
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// WithTx 使用事务
func (r *accountRepo) WithTx(tx *gorm.DB) AccountRepository {
	return &accountRepo{BaseRepo: &BaseRepo{db: tx}}
}

// Ensure 首次访问时创建账户，已有账户不被覆盖
func (r *accountRepo) Ensure(ctx context.Context, userID int64, displayName string, startBalance int64) (bool, error) {
	account := &models.Account{
		UserID:      userID,
		DisplayName: displayName,
		Balance:     startBalance,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(account)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// FindByUserID 根据用户ID查找账户
func (r *accountRepo) FindByUserID(ctx context.Context, userID int64) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

// UpdateDisplayName 更新显示名
func (r *accountRepo) UpdateDisplayName(ctx context.Context, userID int64, displayName string) error {
	return r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("user_id = ?", userID).
		Update("display_name", displayName).Error
}

// AddBalance 增减余额
func (r *accountRepo) AddBalance(ctx context.Context, userID int64, delta int64) error {
	query := r.db.WithContext(ctx).Model(&models.Account{}).Where("user_id = ?", userID)
	if delta < 0 {
		query = query.Where("balance >= ?", -delta)
	}

	result := query.Update("balance", gorm.Expr("balance + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByUserID(ctx, userID); err != nil {
			return err
		}
		return ErrInsufficientBalance
	}
	return nil
}

// ClaimBonus 领取每日奖励
func (r *accountRepo) ClaimBonus(ctx context.Context, userID int64, today string, amount int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("user_id = ? AND (last_bonus_date IS NULL OR last_bonus_date < ?)", userID, today).
		Updates(map[string]interface{}{
			"balance":         gorm.Expr("balance + ?", amount),
			"last_bonus_date": today,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UpdateRoundStats 更新对局统计
func (r *accountRepo) UpdateRoundStats(ctx context.Context, userID int64, bet, payout int64) error {
	wins := 0
	if payout > 0 {
		wins = 1
	}
	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"total_games":    gorm.Expr("total_games + 1"),
			"total_wins":     gorm.Expr("total_wins + ?", wins),
			"total_staked":   gorm.Expr("total_staked + ?", bet),
			"total_paid_out": gorm.Expr("total_paid_out + ?", payout),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Top 余额排行，余额相同按创建顺序
func (r *accountRepo) Top(ctx context.Context, limit int) ([]*models.Account, error) {
	var accounts []*models.Account
	err := r.db.WithContext(ctx).
		Order("balance DESC").
		Order("id ASC").
		Limit(limit).
		Find(&accounts).Error
	return accounts, err
}

// Count 账户数量
func (r *accountRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Account{}).Count(&count).Error
	return count, err
}

// SumBalance 全部账户余额之和
func (r *accountRepo) SumBalance(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Select("COALESCE(SUM(balance), 0)").
		Scan(&total).Error
	return total, err
}

// FindHighWinRate 查找胜率超过阈值的账户
func (r *accountRepo) FindHighWinRate(ctx context.Context, minGames int64, maxWinRate float64) ([]*models.Account, error) {
	if maxWinRate < 0 {
		return nil, errors.New("胜率阈值不能为负数")
	}
	if minGames < 1 {
		minGames = 1
	}
	var accounts []*models.Account
	err := r.db.WithContext(ctx).
		Where("total_games >= ? AND total_wins > total_games * ?", minGames, maxWinRate).
		Order("total_wins * 1.0 / total_games DESC").
		Order("id ASC").
		Find(&accounts).Error
	return accounts, err
}
