package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/casino-bot/internal/config"
	apperrors "github.com/wfunc/casino-bot/internal/errors"
	"github.com/wfunc/casino-bot/internal/models"
	"github.com/wfunc/casino-bot/internal/repository"
)

// MaxPromoCodeLength 促销码最大长度
const MaxPromoCodeLength = 32

// promoService 促销码服务实现
type promoService struct {
	db          *gorm.DB
	promoRepo   repository.PromoRepository
	accountRepo repository.AccountRepository
	entryRepo   repository.LedgerEntryRepository
	log         *zap.Logger
}

// NewPromoService 创建促销码服务
func NewPromoService(
	db *gorm.DB,
	promoRepo repository.PromoRepository,
	accountRepo repository.AccountRepository,
	entryRepo repository.LedgerEntryRepository,
	log *zap.Logger,
) PromoService {
	return &promoService{
		db:          db,
		promoRepo:   promoRepo,
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		log:         log,
	}
}

// NormalizeCode 去空格并转大写，空串或过长时报错
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", apperrors.New(apperrors.ErrPromoInvalid, "促销码不能为空")
	}
	if len([]rune(code)) > MaxPromoCodeLength {
		return "", apperrors.Newf(apperrors.ErrPromoInvalid, "促销码不能超过 %d 个字符", MaxPromoCodeLength)
	}
	return code, nil
}

// CreateCode 创建促销码，已存在时覆盖并重置使用次数
func (s *promoService) CreateCode(ctx context.Context, code string, reward, maxUses int64) (*models.PromoCode, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	if reward <= 0 {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "奖励必须为正数")
	}
	if maxUses <= 0 {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "使用次数必须为正数")
	}

	if err := s.promoRepo.Upsert(ctx, code, reward, maxUses); err != nil {
		return nil, storeError(err, "创建促销码")
	}
	promo, err := s.promoRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, storeError(err, "创建促销码")
	}

	s.log.Info("创建促销码",
		zap.String("code", code),
		zap.Int64("reward", reward),
		zap.Int64("max_uses", maxUses))
	return promo, nil
}

// Redeem 兑换促销码
// 依次检查：不存在、已兑换、已用完；成功时记录、计数、入账在同一事务
func (s *promoService) Redeem(ctx context.Context, userID int64, code string) (*RedeemResult, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}

	result := &RedeemResult{Code: code}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		promos := s.promoRepo.WithTx(tx)
		promo, err := promos.FindByCode(ctx, code)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.New(apperrors.ErrPromoNotFound, code)
		}
		if err != nil {
			return err
		}

		redeemed, err := promos.HasRedeemed(ctx, userID, code)
		if err != nil {
			return err
		}
		if redeemed {
			return apperrors.New(apperrors.ErrPromoAlreadyRedeemed, code)
		}
		if promo.Remaining() <= 0 {
			return apperrors.New(apperrors.ErrPromoExhausted, code)
		}

		// 多实例并发兑换时由复合主键兜底
		err = promos.CreateRedemption(ctx, &models.PromoRedemption{
			UserID: userID,
			Code:   code,
			Reward: promo.Reward,
		})
		if errors.Is(err, repository.ErrDuplicate) {
			return apperrors.New(apperrors.ErrPromoAlreadyRedeemed, code)
		}
		if err != nil {
			return err
		}

		ok, err := promos.IncrementUses(ctx, code)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.New(apperrors.ErrPromoExhausted, code)
		}

		accounts := s.accountRepo.WithTx(tx)
		if err := accounts.AddBalance(ctx, userID, promo.Reward); err != nil {
			return err
		}
		account, err := accounts.FindByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if err := journal(ctx, s.entryRepo.WithTx(tx), account, promo.Reward, models.EntryPromo, code, "促销码奖励"); err != nil {
			return err
		}

		result.Reward = promo.Reward
		result.Balance = account.Balance
		return nil
	})
	if err != nil {
		return nil, storeError(err, "兑换促销码")
	}

	s.log.Info("兑换促销码",
		zap.Int64("user_id", userID),
		zap.String("code", code),
		zap.Int64("reward", result.Reward))
	return result, nil
}

// GetCode 查询促销码
func (s *promoService) GetCode(ctx context.Context, code string) (*models.PromoCode, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	promo, err := s.promoRepo.FindByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.New(apperrors.ErrPromoNotFound, code)
	}
	if err != nil {
		return nil, storeError(err, "查询促销码")
	}
	return promo, nil
}

// ListCodes 列出全部促销码
func (s *promoService) ListCodes(ctx context.Context) ([]*models.PromoCode, error) {
	promos, err := s.promoRepo.List(ctx)
	if err != nil {
		return nil, storeError(err, "促销码列表")
	}
	return promos, nil
}

// SeedDefaults 写入默认促销码，已存在的保持不变，返回新增数量
func (s *promoService) SeedDefaults(ctx context.Context, defaults map[string]config.PromoSeed) (int, error) {
	codes := make([]string, 0, len(defaults))
	for code := range defaults {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	created := 0
	for _, raw := range codes {
		seed := defaults[raw]
		code, err := NormalizeCode(raw)
		if err != nil {
			s.log.Warn("跳过无效的默认促销码", zap.String("code", raw), zap.Error(err))
			continue
		}
		if seed.Reward <= 0 || seed.MaxUses <= 0 {
			s.log.Warn("跳过无效的默认促销码", zap.String("code", code))
			continue
		}

		_, err = s.promoRepo.FindByCode(ctx, code)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return created, storeError(err, "默认促销码")
		}
		if err := s.promoRepo.Upsert(ctx, code, seed.Reward, seed.MaxUses); err != nil {
			return created, storeError(err, "默认促销码")
		}
		created++
	}

	if created > 0 {
		s.log.Info("写入默认促销码", zap.Int("count", created))
	}
	return created, nil
}
