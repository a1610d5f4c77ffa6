package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/casino-bot/internal/config"
	apperrors "github.com/wfunc/casino-bot/internal/errors"
	"github.com/wfunc/casino-bot/internal/game"
	"github.com/wfunc/casino-bot/internal/logger"
	"github.com/wfunc/casino-bot/internal/models"
	"github.com/wfunc/casino-bot/internal/repository"
)

const bonusDateLayout = "2006-01-02"

// ledgerService 账本服务实现
type ledgerService struct {
	db          *gorm.DB
	accountRepo repository.AccountRepository
	entryRepo   repository.LedgerEntryRepository
	recordRepo  repository.GameRecordRepository
	cfg         config.CasinoConfig
	clock       clockwork.Clock
	log         *zap.Logger
}

// NewLedgerService 创建账本服务
func NewLedgerService(
	db *gorm.DB,
	accountRepo repository.AccountRepository,
	entryRepo repository.LedgerEntryRepository,
	recordRepo repository.GameRecordRepository,
	cfg config.CasinoConfig,
	clock clockwork.Clock,
	log *zap.Logger,
) LedgerService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ledgerService{
		db:          db,
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		recordRepo:  recordRepo,
		cfg:         cfg,
		clock:       clock,
		log:         log,
	}
}

// storeError 把仓储错误转换成应用错误
func storeError(err error, op string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrInsufficientBalance):
		return apperrors.New(apperrors.ErrInsufficientFunds)
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.New(apperrors.ErrAccountNotFound)
	case errors.Is(err, context.Canceled):
		return apperrors.Wrap(err, apperrors.ErrCanceled, op)
	}
	return apperrors.Wrap(err, apperrors.ErrStoreUnavailable, op)
}

// transaction 在单个事务内执行
func (s *ledgerService) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// applyDelta 在事务内变更余额并记录流水，返回变更后的余额
func (s *ledgerService) applyDelta(ctx context.Context, tx *gorm.DB, userID, delta int64, entryType models.EntryType, refID, desc string) (int64, error) {
	accounts := s.accountRepo.WithTx(tx)
	if err := accounts.AddBalance(ctx, userID, delta); err != nil {
		return 0, err
	}
	account, err := accounts.FindByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := journal(ctx, s.entryRepo.WithTx(tx), account, delta, entryType, refID, desc); err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// journal 写入一条流水，account 为变更后的账户
func journal(ctx context.Context, repo repository.LedgerEntryRepository, account *models.Account, delta int64, entryType models.EntryType, refID, desc string) error {
	return repo.Create(ctx, &models.LedgerEntry{
		EntryNo:       uuid.NewString(),
		UserID:        account.UserID,
		Type:          entryType,
		Amount:        delta,
		BeforeBalance: account.Balance - delta,
		AfterBalance:  account.Balance,
		RefID:         refID,
		Description:   desc,
	})
}

// GetOrCreateAccount 获取账户，首次访问时以初始余额创建
func (s *ledgerService) GetOrCreateAccount(ctx context.Context, userID int64, displayName string) (*models.Account, error) {
	var account *models.Account
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		accounts := s.accountRepo.WithTx(tx)
		created, err := accounts.Ensure(ctx, userID, displayName, s.cfg.StartBalance)
		if err != nil {
			return err
		}

		account, err = accounts.FindByUserID(ctx, userID)
		if err != nil {
			return err
		}

		if created {
			s.log.Info("新建账户",
				zap.Int64("user_id", userID),
				zap.String("display_name", displayName),
				zap.Int64("balance", account.Balance))
			if account.Balance != 0 {
				return journal(ctx, s.entryRepo.WithTx(tx), account, account.Balance, models.EntryAdjust, "", "初始余额")
			}
			return nil
		}

		// 显示名只在为空时补全
		if account.DisplayName == "" && displayName != "" {
			if err := accounts.UpdateDisplayName(ctx, userID, displayName); err != nil {
				return err
			}
			account.DisplayName = displayName
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err, "获取账户")
	}
	return account, nil
}

// GetAccount 获取账户，不存在时返回 ErrAccountNotFound
func (s *ledgerService) GetAccount(ctx context.Context, userID int64) (*models.Account, error) {
	account, err := s.accountRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, storeError(err, "查询账户")
	}
	return account, nil
}

// GetBalance 查询余额，账户不存在时为 0
func (s *ledgerService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	account, err := s.accountRepo.FindByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, storeError(err, "查询余额")
	}
	return account.Balance, nil
}

// AdjustBalance 增减余额，扣减不会让余额变成负数
func (s *ledgerService) AdjustBalance(ctx context.Context, userID int64, delta int64, entryType models.EntryType, refID string) (int64, error) {
	if entryType == "" {
		entryType = models.EntryAdjust
	}

	var balance int64
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var err error
		balance, err = s.applyDelta(ctx, tx, userID, delta, entryType, refID, "余额调整")
		return err
	})
	if err != nil {
		return 0, storeError(err, "调整余额")
	}
	return balance, nil
}

// today 按配置时区计算的当天日期
func (s *ledgerService) today() string {
	return s.clock.Now().In(s.cfg.Location()).Format(bonusDateLayout)
}

// CanClaimDailyBonus 今天是否还能领取
func (s *ledgerService) CanClaimDailyBonus(ctx context.Context, userID int64) (bool, error) {
	account, err := s.accountRepo.FindByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, storeError(err, "查询奖励")
	}
	return account.LastBonusDate == nil || *account.LastBonusDate < s.today(), nil
}

// ClaimDailyBonus 领取每日奖励
// 条件更新保证同一天并发领取只会入账一次
func (s *ledgerService) ClaimDailyBonus(ctx context.Context, userID int64) (*BonusResult, error) {
	today := s.today()
	result := &BonusResult{Date: today}

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		accounts := s.accountRepo.WithTx(tx)
		claimed, err := accounts.ClaimBonus(ctx, userID, today, s.cfg.DailyBonus)
		if err != nil {
			return err
		}

		account, err := accounts.FindByUserID(ctx, userID)
		if err != nil {
			return err
		}
		result.Balance = account.Balance

		if !claimed {
			return nil
		}
		result.Claimed = true
		result.Amount = s.cfg.DailyBonus
		return journal(ctx, s.entryRepo.WithTx(tx), account, s.cfg.DailyBonus, models.EntryBonus, today, "每日奖励")
	})
	if err != nil {
		return nil, storeError(err, "领取奖励")
	}

	if result.Claimed {
		s.log.Info("领取每日奖励",
			zap.Int64("user_id", userID),
			zap.Int64("amount", result.Amount),
			zap.Int64("balance", result.Balance))
	}
	return result, nil
}

// PlaceStake 两步游戏先扣注，返回扣注后的余额
func (s *ledgerService) PlaceStake(ctx context.Context, userID int64, roundID string, kind game.Kind, bet int64) (int64, error) {
	if bet <= 0 {
		return 0, apperrors.New(apperrors.ErrInvalidBet, "注金必须为正数")
	}
	if roundID == "" {
		return 0, apperrors.New(apperrors.ErrInvalidParam, "缺少回合ID")
	}

	var balance int64
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var err error
		balance, err = s.applyDelta(ctx, tx, userID, -bet, models.EntryStake, roundID, kind.String()+" 下注")
		return err
	})
	if err != nil {
		return 0, storeError(err, "扣注")
	}

	s.log.Debug("扣注", logger.RoundFields(userID, roundID, kind.String(), bet, 0)...)
	return balance, nil
}

// validateSettlement 检查结算数据
func validateSettlement(st *Settlement) error {
	if st == nil || st.RoundID == "" {
		return apperrors.New(apperrors.ErrInvalidParam, "缺少回合ID")
	}
	if _, err := game.ParseKind(string(st.Kind)); err != nil {
		return apperrors.New(apperrors.ErrUnknownGame, string(st.Kind))
	}
	if st.Bet <= 0 {
		return apperrors.New(apperrors.ErrInvalidBet, "注金必须为正数")
	}
	if st.Payout < 0 {
		return apperrors.New(apperrors.ErrInvalidParam, "派彩不能为负数")
	}
	return nil
}

// settle 在事务内写记录、更新统计、派彩
// 同一回合已结算时直接返回已有记录；staked 为 true 时要求回合已有扣注流水且金额一致
func (s *ledgerService) settle(ctx context.Context, tx *gorm.DB, st *Settlement, staked bool) (*models.GameRecord, bool, error) {
	records := s.recordRepo.WithTx(tx)
	existing, err := records.FindByRoundID(ctx, st.RoundID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	if staked {
		stake, err := s.entryRepo.WithTx(tx).FindByRef(ctx, st.UserID, st.RoundID, models.EntryStake)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, apperrors.New(apperrors.ErrInvalidStateTransition, "回合尚未扣注")
		}
		if err != nil {
			return nil, false, err
		}
		if -stake.Amount != st.Bet {
			return nil, false, apperrors.New(apperrors.ErrDataIntegrity,
				fmt.Sprintf("结算注金 %d 与扣注 %d 不一致", st.Bet, -stake.Amount))
		}
	} else {
		if _, err := s.applyDelta(ctx, tx, st.UserID, -st.Bet, models.EntryStake, st.RoundID, st.Kind.String()+" 下注"); err != nil {
			return nil, false, err
		}
	}

	record := &models.GameRecord{
		RoundID:    st.RoundID,
		UserID:     st.UserID,
		GameType:   string(st.Kind),
		Bet:        st.Bet,
		Payout:     st.Payout,
		Multiplier: st.Multiplier,
		Outcome:    truncate(st.Outcome, 255),
	}
	if err := records.Create(ctx, record); err != nil {
		return nil, false, err
	}

	if err := s.accountRepo.WithTx(tx).UpdateRoundStats(ctx, st.UserID, st.Bet, st.Payout); err != nil {
		return nil, false, err
	}

	if st.Payout > 0 {
		if _, err := s.applyDelta(ctx, tx, st.UserID, st.Payout, models.EntryPayout, st.RoundID, st.Kind.String()+" 派彩"); err != nil {
			return nil, false, err
		}
	}
	return record, true, nil
}

// SettleRound 结算已通过 PlaceStake 扣注的回合（按回合ID幂等），不再重复扣注
func (s *ledgerService) SettleRound(ctx context.Context, st *Settlement) (*models.GameRecord, error) {
	if err := validateSettlement(st); err != nil {
		return nil, err
	}
	return s.run(ctx, st, true)
}

// PlayRound 扣注、记录、派彩在同一个事务内完成
func (s *ledgerService) PlayRound(ctx context.Context, st *Settlement) (*models.GameRecord, error) {
	if err := validateSettlement(st); err != nil {
		return nil, err
	}
	return s.run(ctx, st, false)
}

func (s *ledgerService) run(ctx context.Context, st *Settlement, staked bool) (*models.GameRecord, error) {
	var (
		record  *models.GameRecord
		applied bool
	)
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var err error
		record, applied, err = s.settle(ctx, tx, st, staked)
		return err
	})
	if err != nil {
		return nil, storeError(err, "结算")
	}

	if applied {
		s.log.Info("对局结算", logger.RoundFields(st.UserID, st.RoundID, st.Kind.String(), st.Bet, st.Payout)...)
	} else {
		s.log.Warn("重复结算被忽略", zap.String("round_id", st.RoundID), zap.Int64("user_id", st.UserID))
	}
	return record, nil
}

// RecordGameOutcome 以新回合ID完成一局（扣注和派彩同时发生）
func (s *ledgerService) RecordGameOutcome(ctx context.Context, userID int64, kind game.Kind, bet, payout int64, multiplier decimal.Decimal) (*models.GameRecord, error) {
	return s.PlayRound(ctx, &Settlement{
		RoundID:    uuid.NewString(),
		UserID:     userID,
		Kind:       kind,
		Bet:        bet,
		Payout:     payout,
		Multiplier: multiplier,
		Outcome:    fmt.Sprintf("x%s", multiplier.String()),
	})
}

// TopAccounts 余额排行，余额相同按创建顺序
func (s *ledgerService) TopAccounts(ctx context.Context, limit int) ([]*models.Account, error) {
	if limit <= 0 {
		limit = s.cfg.LeaderboardSize
	}
	accounts, err := s.accountRepo.Top(ctx, limit)
	if err != nil {
		return nil, storeError(err, "排行榜")
	}
	return accounts, nil
}

// History 最近的对局
func (s *ledgerService) History(ctx context.Context, userID int64, limit int) ([]*models.GameRecord, error) {
	if limit <= 0 {
		limit = s.cfg.HistorySize
	}
	records, err := s.recordRepo.FindRecentByUserID(ctx, userID, limit)
	if err != nil {
		return nil, storeError(err, "对局历史")
	}
	return records, nil
}

// Entries 分页查询余额流水
func (s *ledgerService) Entries(ctx context.Context, userID int64, page, pageSize int) ([]*models.LedgerEntry, int64, error) {
	p := repository.NewPagination(page, pageSize)
	entries, err := s.entryRepo.FindByUserID(ctx, userID, p)
	if err != nil {
		return nil, 0, storeError(err, "查询流水")
	}
	return entries, p.Total, nil
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
