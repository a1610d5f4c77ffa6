package service

import (
	"context"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/wfunc/casino-bot/internal/config"
	"github.com/wfunc/casino-bot/internal/models"
	"github.com/wfunc/casino-bot/internal/repository"
)

// statsService 统计服务实现
type statsService struct {
	accountRepo repository.AccountRepository
	entryRepo   repository.LedgerEntryRepository
	recordRepo  repository.GameRecordRepository
	antiCheat   config.AntiCheatConfig
	clock       clockwork.Clock
	log         *zap.Logger
}

// NewStatsService 创建统计服务
func NewStatsService(
	accountRepo repository.AccountRepository,
	entryRepo repository.LedgerEntryRepository,
	recordRepo repository.GameRecordRepository,
	antiCheat config.AntiCheatConfig,
	clock clockwork.Clock,
	log *zap.Logger,
) StatsService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &statsService{
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		recordRepo:  recordRepo,
		antiCheat:   antiCheat,
		clock:       clock,
		log:         log,
	}
}

// Overview 汇总统计
func (s *statsService) Overview(ctx context.Context) (*Stats, error) {
	stats := &Stats{GeneratedAt: s.clock.Now()}

	users, err := s.accountRepo.Count(ctx)
	if err != nil {
		return nil, storeError(err, "统计账户")
	}
	stats.Users = users

	circulating, err := s.accountRepo.SumBalance(ctx)
	if err != nil {
		return nil, storeError(err, "统计余额")
	}
	stats.Circulating = circulating

	totals, err := s.recordRepo.Totals(ctx)
	if err != nil {
		return nil, storeError(err, "统计对局")
	}
	stats.Rounds = totals.Rounds
	stats.Wins = totals.Wins
	stats.TotalStaked = totals.TotalBet
	stats.TotalPaidOut = totals.TotalPayout
	stats.Profit = totals.Profit()

	stats.Games, err = s.recordRepo.TotalsByGame(ctx)
	if err != nil {
		return nil, storeError(err, "统计对局")
	}

	if stats.BonusIssued, err = s.entryRepo.SumByType(ctx, models.EntryBonus); err != nil {
		return nil, storeError(err, "统计奖励")
	}
	if stats.PromoIssued, err = s.entryRepo.SumByType(ctx, models.EntryPromo); err != nil {
		return nil, storeError(err, "统计奖励")
	}

	stats.Suspicious, err = s.Suspicious(ctx)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Suspicious 胜率超过阈值的账户，只用于报表，不影响游戏
func (s *statsService) Suspicious(ctx context.Context) ([]*SuspiciousAccount, error) {
	if s.antiCheat.MaxWinRate <= 0 {
		return nil, nil
	}
	accounts, err := s.accountRepo.FindHighWinRate(ctx, s.antiCheat.MinGames, s.antiCheat.MaxWinRate)
	if err != nil {
		return nil, storeError(err, "胜率监控")
	}

	result := make([]*SuspiciousAccount, 0, len(accounts))
	for _, a := range accounts {
		result = append(result, &SuspiciousAccount{
			UserID:      a.UserID,
			DisplayName: a.DisplayName,
			Games:       a.TotalGames,
			Wins:        a.TotalWins,
			WinRate:     a.WinRate(),
			Balance:     a.Balance,
		})
	}
	if len(result) > 0 {
		s.log.Warn("发现胜率异常的账户", zap.Int("count", len(result)))
	}
	return result, nil
}
