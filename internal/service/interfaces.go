package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wfunc/casino-bot/internal/config"
	"github.com/wfunc/casino-bot/internal/game"
	"github.com/wfunc/casino-bot/internal/models"
	"github.com/wfunc/casino-bot/internal/repository"
)

// LedgerService 账本服务接口
// 所有余额变动都在单个事务内完成，并写入一条流水
type LedgerService interface {
	// 账户
	GetOrCreateAccount(ctx context.Context, userID int64, displayName string) (*models.Account, error)
	GetAccount(ctx context.Context, userID int64) (*models.Account, error)
	GetBalance(ctx context.Context, userID int64) (int64, error)
	AdjustBalance(ctx context.Context, userID int64, delta int64, entryType models.EntryType, refID string) (int64, error)

	// 每日奖励
	CanClaimDailyBonus(ctx context.Context, userID int64) (bool, error)
	ClaimDailyBonus(ctx context.Context, userID int64) (*BonusResult, error)

	// 对局
	PlaceStake(ctx context.Context, userID int64, roundID string, kind game.Kind, bet int64) (int64, error)
	SettleRound(ctx context.Context, s *Settlement) (*models.GameRecord, error)
	PlayRound(ctx context.Context, s *Settlement) (*models.GameRecord, error)
	RecordGameOutcome(ctx context.Context, userID int64, kind game.Kind, bet, payout int64, multiplier decimal.Decimal) (*models.GameRecord, error)

	// 查询
	TopAccounts(ctx context.Context, limit int) ([]*models.Account, error)
	History(ctx context.Context, userID int64, limit int) ([]*models.GameRecord, error)
	Entries(ctx context.Context, userID int64, page, pageSize int) ([]*models.LedgerEntry, int64, error)
}

// PromoService 促销码服务接口
type PromoService interface {
	CreateCode(ctx context.Context, code string, reward, maxUses int64) (*models.PromoCode, error)
	Redeem(ctx context.Context, userID int64, code string) (*RedeemResult, error)
	GetCode(ctx context.Context, code string) (*models.PromoCode, error)
	ListCodes(ctx context.Context) ([]*models.PromoCode, error)
	SeedDefaults(ctx context.Context, defaults map[string]config.PromoSeed) (int, error)
}

// StatsService 运营统计服务接口
type StatsService interface {
	Overview(ctx context.Context) (*Stats, error)
	Suspicious(ctx context.Context) ([]*SuspiciousAccount, error)
}

// AdminAuthService 管理员认证接口
type AdminAuthService interface {
	Login(ctx context.Context, username, password string) (*TokenResponse, error)
	IssueToken(username string) (*TokenResponse, error)
	ValidateToken(token string) (string, error)
}

// BonusResult 领取每日奖励的结果
type BonusResult struct {
	Claimed bool   `json:"claimed"`
	Amount  int64  `json:"amount"`
	Balance int64  `json:"balance"`
	Date    string `json:"date"`
}

// Settlement 一局的结算数据
type Settlement struct {
	RoundID    string
	UserID     int64
	Kind       game.Kind
	Bet        int64
	Payout     int64
	Multiplier decimal.Decimal
	Outcome    string
}

// RedeemResult 促销码兑换结果
type RedeemResult struct {
	Code    string `json:"code"`
	Reward  int64  `json:"reward"`
	Balance int64  `json:"balance"`
}

// Stats 运营统计
type Stats struct {
	Users        int64                    `json:"users"`
	Rounds       int64                    `json:"rounds"`
	Wins         int64                    `json:"wins"`
	TotalStaked  int64                    `json:"total_staked"`
	TotalPaidOut int64                    `json:"total_paid_out"`
	Profit       int64                    `json:"profit"`
	Circulating  int64                    `json:"circulating"`
	BonusIssued  int64                    `json:"bonus_issued"`
	PromoIssued  int64                    `json:"promo_issued"`
	Games        []*repository.GameTotals `json:"games"`
	Suspicious   []*SuspiciousAccount     `json:"suspicious"`
	GeneratedAt  time.Time                `json:"generated_at"`
}

// SuspiciousAccount 胜率异常的账户（仅供人工核查）
type SuspiciousAccount struct {
	UserID      int64   `json:"user_id"`
	DisplayName string  `json:"display_name"`
	Games       int64   `json:"games"`
	Wins        int64   `json:"wins"`
	WinRate     float64 `json:"win_rate"`
	Balance     int64   `json:"balance"`
}

// TokenResponse 管理员令牌
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}
