package service

import (
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/casino-bot/internal/config"
	"github.com/wfunc/casino-bot/internal/repository"
	"github.com/wfunc/casino-bot/internal/utils"
)

// Services 服务集合
type Services struct {
	Ledger LedgerService
	Promo  PromoService
	Stats  StatsService
	Admin  AdminAuthService
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, cfg *config.Config, clock clockwork.Clock, log *zap.Logger) *Services {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	// 初始化仓储
	accountRepo := repository.NewAccountRepository(db)
	entryRepo := repository.NewLedgerEntryRepository(db)
	recordRepo := repository.NewGameRecordRepository(db)
	promoRepo := repository.NewPromoRepository(db)

	jwtManager := utils.NewJWTManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL, clock)

	return &Services{
		Ledger: NewLedgerService(db, accountRepo, entryRepo, recordRepo, cfg.Casino, clock, log.Named("ledger")),
		Promo:  NewPromoService(db, promoRepo, accountRepo, entryRepo, log.Named("promo")),
		Stats:  NewStatsService(accountRepo, entryRepo, recordRepo, cfg.Casino.AntiCheat, clock, log.Named("stats")),
		Admin:  NewAdminAuthService(cfg.Admin, jwtManager, log.Named("admin")),
	}
}
