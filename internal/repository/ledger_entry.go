package repository

import (
	"context"

	"github.com/wfunc/casino-bot/internal/models"
	"gorm.io/gorm"
)

// LedgerEntryRepository 账本流水仓储接口
type LedgerEntryRepository interface {
	BaseRepository
	WithTx(tx *gorm.DB) LedgerEntryRepository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	FindByRef(ctx context.Context, userID int64, refID string, entryType models.EntryType) (*models.LedgerEntry, error)
	FindByUserID(ctx context.Context, userID int64, p *Pagination) ([]*models.LedgerEntry, error)
	SumByType(ctx context.Context, entryType models.EntryType) (int64, error)
}

// ledgerEntryRepo 账本流水仓储实现
type ledgerEntryRepo struct {
	*BaseRepo
}

// NewLedgerEntryRepository 创建账本流水仓储
func NewLedgerEntryRepository(db *gorm.DB) LedgerEntryRepository {
	return &ledgerEntryRepo{BaseRepo: NewBaseRepo(db)}
}

// WithTx 使用事务
func (r *ledgerEntryRepo) WithTx(tx *gorm.DB) LedgerEntryRepository {
	return &ledgerEntryRepo{BaseRepo: NewBaseRepo(tx)}
}

// Create 写入流水
func (r *ledgerEntryRepo) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindByRef 根据关联ID查找流水
func (r *ledgerEntryRepo) FindByRef(ctx context.Context, userID int64, refID string, entryType models.EntryType) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND ref_id = ? AND type = ?", userID, refID, entryType).
		First(&entry).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}

// FindByUserID 分页查询用户流水，最新的在前
func (r *ledgerEntryRepo) FindByUserID(ctx context.Context, userID int64, p *Pagination) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry
	query := r.db.WithContext(ctx).Model(&models.LedgerEntry{}).Where("user_id = ?", userID).Session(&gorm.Session{})

	if err := query.Count(&p.Total).Error; err != nil {
		return nil, err
	}
	err := query.Order("id DESC").Scopes(Paginate(p)).Find(&entries).Error
	return entries, err
}

// SumByType 按类型汇总金额
func (r *ledgerEntryRepo) SumByType(ctx context.Context, entryType models.EntryType) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("type = ?", entryType).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}
