package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/casino-bot/internal/models"
	"gorm.io/gorm"
)

// GameRecordRepositoryTestSuite 游戏记录仓储测试套件
type GameRecordRepositoryTestSuite struct {
	suite.Suite
	db         *gorm.DB
	recordRepo GameRecordRepository
	ledgerRepo LedgerEntryRepository
}

func (suite *GameRecordRepositoryTestSuite) SetupTest() {
	suite.db = SetupTestDB()
	suite.recordRepo = NewGameRecordRepository(suite.db)
	suite.ledgerRepo = NewLedgerEntryRepository(suite.db)
}

func (suite *GameRecordRepositoryTestSuite) TearDownTest() {
	CleanupTestDB(suite.db)
}

func (suite *GameRecordRepositoryTestSuite) record(roundID, game string, userID, bet, payout int64, mult string) {
	err := suite.recordRepo.Create(context.Background(), &models.GameRecord{
		RoundID:    roundID,
		UserID:     userID,
		GameType:   game,
		Bet:        bet,
		Payout:     payout,
		Multiplier: decimal.RequireFromString(mult),
	})
	suite.Require().NoError(err)
}

// TestGameRecordRepository_RoundIDUnique 测试回合ID唯一
func (suite *GameRecordRepositoryTestSuite) TestGameRecordRepository_RoundIDUnique() {
	suite.record("r-1", "dice", 1, 100, 500, "5")

	err := suite.recordRepo.Create(context.Background(), &models.GameRecord{
		RoundID: "r-1", UserID: 1, GameType: "dice", Bet: 100, Multiplier: decimal.Zero,
	})
	assert.Error(suite.T(), err)

	found, err := suite.recordRepo.FindByRoundID(context.Background(), "r-1")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(500), found.Payout)
	assert.True(suite.T(), found.Multiplier.Equal(decimal.NewFromInt(5)))
	assert.True(suite.T(), found.Won())

	_, err = suite.recordRepo.FindByRoundID(context.Background(), "missing")
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

// TestGameRecordRepository_Totals 测试汇总统计
func (suite *GameRecordRepositoryTestSuite) TestGameRecordRepository_Totals() {
	suite.record("a", "coinflip", 1, 100, 200, "2")
	suite.record("b", "coinflip", 1, 100, 0, "0")
	suite.record("c", "slots", 2, 300, 900, "3")

	totals, err := suite.recordRepo.Totals(context.Background())
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(3), totals.Rounds)
	assert.Equal(suite.T(), int64(2), totals.Wins)
	assert.Equal(suite.T(), int64(500), totals.TotalBet)
	assert.Equal(suite.T(), int64(1100), totals.TotalPayout)
	assert.Equal(suite.T(), int64(-600), totals.Profit())

	byGame, err := suite.recordRepo.TotalsByGame(context.Background())
	assert.NoError(suite.T(), err)
	suite.Require().Len(byGame, 2)
	assert.Equal(suite.T(), "coinflip", byGame[0].GameType)
	assert.Equal(suite.T(), int64(2), byGame[0].Rounds)
	assert.Equal(suite.T(), int64(0), byGame[0].Profit())
	assert.Equal(suite.T(), "slots", byGame[1].GameType)
}

// TestGameRecordRepository_FindRecent 测试最近对局
func (suite *GameRecordRepositoryTestSuite) TestGameRecordRepository_FindRecent() {
	for i := 0; i < 5; i++ {
		suite.record(fmt.Sprintf("r-%d", i), "dice", 1, 100, 0, "0")
	}
	suite.record("other", "dice", 2, 100, 0, "0")

	recent, err := suite.recordRepo.FindRecentByUserID(context.Background(), 1, 3)
	assert.NoError(suite.T(), err)
	suite.Require().Len(recent, 3)
	assert.Equal(suite.T(), "r-4", recent[0].RoundID)
}

// TestLedgerEntryRepository 测试流水查询
func (suite *GameRecordRepositoryTestSuite) TestLedgerEntryRepository() {
	ctx := context.Background()
	entries := []*models.LedgerEntry{
		{EntryNo: "e1", UserID: 1, Type: models.EntryStake, Amount: -100, BeforeBalance: 1000, AfterBalance: 900, RefID: "round-1"},
		{EntryNo: "e2", UserID: 1, Type: models.EntryPayout, Amount: 200, BeforeBalance: 900, AfterBalance: 1100, RefID: "round-1"},
		{EntryNo: "e3", UserID: 1, Type: models.EntryBonus, Amount: 500, BeforeBalance: 1100, AfterBalance: 1600},
	}
	for _, e := range entries {
		suite.Require().NoError(suite.ledgerRepo.Create(ctx, e))
	}

	stake, err := suite.ledgerRepo.FindByRef(ctx, 1, "round-1", models.EntryStake)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(-100), stake.Amount)

	_, err = suite.ledgerRepo.FindByRef(ctx, 2, "round-1", models.EntryStake)
	assert.ErrorIs(suite.T(), err, ErrNotFound)

	p := NewPagination(1, 2)
	page, err := suite.ledgerRepo.FindByUserID(ctx, 1, p)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(3), p.Total)
	suite.Require().Len(page, 2)
	assert.Equal(suite.T(), "e3", page[0].EntryNo)

	bonus, err := suite.ledgerRepo.SumByType(ctx, models.EntryBonus)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(500), bonus)
}

func TestGameRecordRepositorySuite(t *testing.T) {
	suite.Run(t, new(GameRecordRepositoryTestSuite))
}
