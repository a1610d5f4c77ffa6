package repository

import (
	"context"
	"time"

	"github.com/wfunc/casino-bot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PromoRepository 促销码仓储接口
type PromoRepository interface {
	BaseRepository
	WithTx(tx *gorm.DB) PromoRepository
	// Upsert 创建或覆盖促销码，覆盖时使用次数归零
	Upsert(ctx context.Context, code string, reward, maxUses int64) error
	FindByCode(ctx context.Context, code string) (*models.PromoCode, error)
	List(ctx context.Context) ([]*models.PromoCode, error)
	HasRedeemed(ctx context.Context, userID int64, code string) (bool, error)
	CreateRedemption(ctx context.Context, redemption *models.PromoRedemption) error
	// IncrementUses 仅当未达上限时加一
	IncrementUses(ctx context.Context, code string) (bool, error)
}

// promoRepo 促销码仓储实现
type promoRepo struct {
	*BaseRepo
}

// NewPromoRepository 创建促销码仓储
func NewPromoRepository(db *gorm.DB) PromoRepository {
	return &promoRepo{BaseRepo: NewBaseRepo(db)}
}

// WithTx 使用事务
func (r *promoRepo) WithTx(tx *gorm.DB) PromoRepository {
	return &promoRepo{BaseRepo: NewBaseRepo(tx)}
}

// Upsert 创建或覆盖促销码
func (r *promoRepo) Upsert(ctx context.Context, code string, reward, maxUses int64) error {
	promo := &models.PromoCode{
		Code:    code,
		Reward:  reward,
		MaxUses: maxUses,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "code"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"reward":       reward,
				"max_uses":     maxUses,
				"current_uses": 0,
				"updated_at":   time.Now(),
			}),
		}).
		Create(promo).Error
}

// FindByCode 根据促销码查找
func (r *promoRepo) FindByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&promo).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &promo, nil
}

// List 列出全部促销码
func (r *promoRepo) List(ctx context.Context) ([]*models.PromoCode, error) {
	var promos []*models.PromoCode
	err := r.db.WithContext(ctx).Order("code").Find(&promos).Error
	return promos, err
}

// HasRedeemed 用户是否已使用该促销码
func (r *promoRepo) HasRedeemed(ctx context.Context, userID int64, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PromoRedemption{}).
		Where("user_id = ? AND code = ?", userID, code).
		Count(&count).Error
	return count > 0, err
}

// CreateRedemption 写入使用记录，同一玩家重复写入返回 ErrDuplicate
func (r *promoRepo) CreateRedemption(ctx context.Context, redemption *models.PromoRedemption) error {
	return duplicate(r.db.WithContext(ctx).Create(redemption).Error)
}

// IncrementUses 使用次数加一
func (r *promoRepo) IncrementUses(ctx context.Context, code string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PromoCode{}).
		Where("code = ? AND current_uses < max_uses", code).
		Update("current_uses", gorm.Expr("current_uses + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
