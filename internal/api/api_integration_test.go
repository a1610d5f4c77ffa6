package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/casino-bot/internal/backup"
	"github.com/wfunc/casino-bot/internal/casino"
	"github.com/wfunc/casino-bot/internal/config"
	apperrors "github.com/wfunc/casino-bot/internal/errors"
	"github.com/wfunc/casino-bot/internal/game"
	"github.com/wfunc/casino-bot/internal/middleware"
	"github.com/wfunc/casino-bot/internal/ratelimit"
	"github.com/wfunc/casino-bot/internal/repository"
	"github.com/wfunc/casino-bot/internal/service"
	"github.com/wfunc/casino-bot/internal/session"
	"github.com/wfunc/casino-bot/internal/utils"
)

type errorBody struct {
	Success bool `json:"success"`
	Error   struct {
		Code    apperrors.ErrorCode `json:"code"`
		Message string              `json:"message"`
	} `json:"error"`
}

// APITestSuite HTTP接口测试套件
type APITestSuite struct {
	suite.Suite
	db     *gorm.DB
	cfg    *config.Config
	router *Router
	backup *backup.Manager
}

func (suite *APITestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (suite *APITestSuite) SetupTest() {
	suite.db = repository.SetupTestDB()

	hash, err := utils.HashPassword("s3cret")
	suite.Require().NoError(err)

	suite.cfg = config.Default()
	suite.cfg.Admin.PasswordHash = hash
	suite.cfg.Admin.JWTSecret = "api-test"
	suite.backup = nil
	suite.build()
}

func (suite *APITestSuite) TearDownTest() {
	repository.CleanupTestDB(suite.db)
}

func (suite *APITestSuite) build() {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC))
	services := service.NewServices(suite.db, suite.cfg, clock, zap.NewNop())
	orch := casino.New(services.Ledger, services.Promo,
		session.NewManager(zap.NewNop(), time.Minute, session.WithClock(clock)),
		game.NewEngine(game.NewFixedGenerator(6), game.NewPayouts(suite.cfg.Casino.Payouts)),
		ratelimit.Unlimited{}, suite.cfg.Casino, zap.NewNop())

	suite.router = NewRouter(Deps{
		DB:       suite.db,
		Config:   suite.cfg,
		Services: services,
		Actions:  orch,
		Backups:  suite.backup,
	}, zap.NewNop())
}

func (suite *APITestSuite) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		suite.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	suite.router.GetEngine().ServeHTTP(w, req)
	return w
}

func (suite *APITestSuite) action(kind casino.ActionKind, content string) casino.Reply {
	w := suite.do(http.MethodPost, "/api/v1/actions", ActionRequest{
		UserID: 100, DisplayName: "api", Kind: kind, Content: content,
	}, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var reply casino.Reply
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &reply))
	return reply
}

func (suite *APITestSuite) errorCode(w *httptest.ResponseRecorder) apperrors.ErrorCode {
	var body errorBody
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	suite.False(body.Success)
	return body.Error.Code
}

func (suite *APITestSuite) adminToken() string {
	w := suite.do(http.MethodPost, "/api/v1/admin/login", LoginRequest{Username: "admin", Password: "s3cret"}, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var token service.TokenResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &token))
	return token.AccessToken
}

func (suite *APITestSuite) TestHealth() {
	w := suite.do(http.MethodGet, "/health", nil, nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), "healthy")
	suite.NotEmpty(w.Header().Get("X-Request-ID"))

	w = suite.do(http.MethodGet, "/nope", nil, nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *APITestSuite) TestActionFlow() {
	reply := suite.action(casino.ActionText, "/start")
	suite.Equal(session.StateIdle, reply.State)
	suite.Equal(int64(1000), reply.Balance)
	suite.Equal(casino.MenuMain, reply.Menu.Kind)

	suite.action(casino.ActionCallback, casino.GameTag(game.KindDice))
	reply = suite.action(casino.ActionText, "100")
	suite.Require().NotNil(reply.Round)
	suite.Equal(int64(500), reply.Round.Payout)
	suite.Equal(int64(1400), reply.Balance)

	// 面向玩家的错误仍然是 200
	reply = suite.action(casino.ActionCallback, "choice:heads")
	suite.Equal(apperrors.ErrInvalidStateTransition, reply.Code)
	suite.Equal(int64(1400), reply.Balance)
}

func (suite *APITestSuite) TestActionValidation() {
	w := suite.do(http.MethodPost, "/api/v1/actions", map[string]interface{}{"user_id": 0, "kind": "text"}, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal(apperrors.ErrInvalidParam, suite.errorCode(w))

	w = suite.do(http.MethodPost, "/api/v1/actions", map[string]interface{}{"user_id": 1, "kind": "shout"}, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *APITestSuite) TestGatewayToken() {
	suite.cfg.Server.GatewayToken = "gw"
	suite.build()

	body := ActionRequest{UserID: 5, Kind: casino.ActionText, Content: "/start"}
	w := suite.do(http.MethodPost, "/api/v1/actions", body, nil)
	suite.Equal(http.StatusUnauthorized, w.Code)

	w = suite.do(http.MethodPost, "/api/v1/actions", body, map[string]string{middleware.GatewayTokenHeader: "wrong"})
	suite.Equal(http.StatusUnauthorized, w.Code)

	w = suite.do(http.MethodPost, "/api/v1/actions", body, map[string]string{middleware.GatewayTokenHeader: "gw"})
	suite.Equal(http.StatusOK, w.Code)

	// 排行榜公开
	w = suite.do(http.MethodGet, "/api/v1/leaderboard", nil, nil)
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *APITestSuite) TestAccountEndpoints() {
	w := suite.do(http.MethodGet, "/api/v1/accounts/100", nil, nil)
	suite.Equal(http.StatusNotFound, w.Code)
	suite.Equal(apperrors.ErrAccountNotFound, suite.errorCode(w))

	w = suite.do(http.MethodGet, "/api/v1/accounts/abc", nil, nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	suite.action(casino.ActionText, "/start")
	suite.action(casino.ActionCallback, casino.TagBonus)

	w = suite.do(http.MethodGet, "/api/v1/accounts/100", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var account AccountResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &account))
	suite.Equal(int64(1500), account.Account.Balance)
	suite.False(account.CanClaimBonus)
	suite.Empty(account.Recent)

	w = suite.do(http.MethodGet, "/api/v1/accounts/100/entries?page=1&page_size=10", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var page struct {
		Items    []json.RawMessage `json:"items"`
		Total    int64             `json:"total"`
		Page     int               `json:"page"`
		PageSize int               `json:"page_size"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &page))
	suite.Equal(int64(2), page.Total)
	suite.Equal(1, page.Page)
	suite.Equal(10, page.PageSize)

	// 越界参数按实际查询使用的值返回
	w = suite.do(http.MethodGet, "/api/v1/accounts/100/entries?page=0&page_size=1000", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	page.Items = nil
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &page))
	suite.Equal(1, page.Page)
	suite.Equal(100, page.PageSize)
	suite.Len(page.Items, 2)

	w = suite.do(http.MethodGet, "/api/v1/accounts/100/entries?page=-3&page_size=abc", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &page))
	suite.Equal(1, page.Page)
	suite.Equal(10, page.PageSize)
}

func (suite *APITestSuite) TestLeaderboard() {
	suite.action(casino.ActionText, "/start")

	w := suite.do(http.MethodGet, "/api/v1/leaderboard?limit=5", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `"user_id":100`)

	w = suite.do(http.MethodGet, "/api/v1/leaderboard?limit=0", nil, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *APITestSuite) TestAdminRequiresToken() {
	w := suite.do(http.MethodGet, "/api/v1/admin/stats", nil, nil)
	suite.Equal(http.StatusUnauthorized, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/admin/stats", nil, map[string]string{"Authorization": "Bearer junk"})
	suite.Equal(http.StatusUnauthorized, w.Code)
	suite.Equal(apperrors.ErrTokenInvalid, suite.errorCode(w))

	w = suite.do(http.MethodPost, "/api/v1/admin/login", LoginRequest{Username: "admin", Password: "nope"}, nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *APITestSuite) TestAdminPromosAndStats() {
	auth := map[string]string{"Authorization": "Bearer " + suite.adminToken()}

	w := suite.do(http.MethodPost, "/api/v1/admin/promos", CreatePromoRequest{Code: "vip", Reward: 300, MaxUses: 2}, auth)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	suite.Contains(w.Body.String(), `"VIP"`)

	w = suite.do(http.MethodPost, "/api/v1/admin/promos", CreatePromoRequest{Code: "bad"}, auth)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/admin/promos", nil, auth)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `"VIP"`)

	suite.action(casino.ActionCallback, casino.TagPromo)
	reply := suite.action(casino.ActionText, "vip")
	suite.Equal(int64(1300), reply.Balance)

	w = suite.do(http.MethodGet, "/api/v1/admin/stats", nil, auth)
	suite.Require().Equal(http.StatusOK, w.Code)
	var stats service.Stats
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &stats))
	suite.Equal(int64(1), stats.Users)
	suite.Equal(int64(300), stats.PromoIssued)
}

func (suite *APITestSuite) TestBackups() {
	auth := map[string]string{"Authorization": "Bearer " + suite.adminToken()}

	w := suite.do(http.MethodPost, "/api/v1/admin/backups", nil, auth)
	suite.Equal(http.StatusServiceUnavailable, w.Code)
	suite.Equal(apperrors.ErrBackup, suite.errorCode(w))

	suite.backup = backup.NewManager(suite.db, config.BackupConfig{Path: suite.T().TempDir(), Keep: 3},
		nil, clockwork.NewFakeClock(), zap.NewNop())
	suite.build()

	w = suite.do(http.MethodPost, "/api/v1/admin/backups", nil, auth)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = suite.do(http.MethodGet, "/api/v1/admin/backups", nil, auth)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), "casino_backup_")
}

func (suite *APITestSuite) TestCORS() {
	suite.cfg.Server.AllowedOrigins = []string{"https://chat.example.com"}
	suite.build()

	w := suite.do(http.MethodOptions, "/api/v1/actions", nil, map[string]string{
		"Origin":                        "https://chat.example.com",
		"Access-Control-Request-Method": http.MethodPost,
	})
	suite.Equal(http.StatusNoContent, w.Code)
	suite.Equal("https://chat.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = suite.do(http.MethodGet, "/api/v1/leaderboard", nil, map[string]string{
		"Origin": "https://evil.example.com",
	})
	suite.Equal(http.StatusForbidden, w.Code)
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func TestOriginChecker(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)

	assert.True(t, originChecker([]string{"*"})(req))

	check := originChecker([]string{"https://chat.example.com"})
	assert.True(t, check(req), "无 Origin 的非浏览器客户端")

	req.Header.Set("Origin", "https://chat.example.com")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example.com")
	require.False(t, check(req))
}
