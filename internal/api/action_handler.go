package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wfunc/casino-bot/internal/casino"
	"github.com/wfunc/casino-bot/internal/config"
	apperrors "github.com/wfunc/casino-bot/internal/errors"
	"github.com/wfunc/casino-bot/internal/middleware"
	"github.com/wfunc/casino-bot/internal/models"
	"github.com/wfunc/casino-bot/internal/repository"
	"github.com/wfunc/casino-bot/internal/service"
	ws "github.com/wfunc/casino-bot/internal/websocket"
)

// ActionRequest 聊天网关转发的动作
type ActionRequest struct {
	UserID      int64             `json:"user_id" binding:"required,gt=0"`
	DisplayName string            `json:"display_name"`
	Kind        casino.ActionKind `json:"kind" binding:"required,oneof=text callback"`
	Content     string            `json:"content"`
}

// AccountResponse 账户详情
type AccountResponse struct {
	Account       *models.Account      `json:"account"`
	WinRate       float64              `json:"win_rate"`
	CanClaimBonus bool                 `json:"can_claim_bonus"`
	Recent        []*models.GameRecord `json:"recent"`
}

// PageResponse 分页结果
type PageResponse struct {
	Items    interface{} `json:"items"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// ActionHandler 玩家相关接口
type ActionHandler struct {
	actions ws.ActionHandler
	ledger  service.LedgerService
	cfg     config.CasinoConfig
}

// NewActionHandler 创建处理器
func NewActionHandler(actions ws.ActionHandler, ledger service.LedgerService, cfg config.CasinoConfig) *ActionHandler {
	return &ActionHandler{actions: actions, ledger: ledger, cfg: cfg}
}

// Handle 处理一个聊天动作
// 面向玩家的错误也返回 200，错误信息在回复的 error_code 中
func (h *ActionHandler) Handle(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, apperrors.New(apperrors.ErrInvalidParam, err.Error()))
		return
	}

	reply, err := h.actions.Handle(c.Request.Context(), casino.Action{
		UserID:      req.UserID,
		DisplayName: req.DisplayName,
		Kind:        req.Kind,
		Content:     req.Content,
	})
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// Leaderboard 余额排行榜
func (h *ActionHandler) Leaderboard(c *gin.Context) {
	limit := h.cfg.LeaderboardSize
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			middleware.Abort(c, apperrors.New(apperrors.ErrInvalidParam, "limit 必须在 1-100 之间"))
			return
		}
		limit = n
	}

	accounts, err := h.ledger.TopAccounts(c.Request.Context(), limit)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": accounts})
}

func parseUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		middleware.Abort(c, apperrors.New(apperrors.ErrInvalidParam, "无效的 user_id"))
		return 0, false
	}
	return userID, true
}

// Account 账户详情和最近对局
func (h *ActionHandler) Account(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	account, err := h.ledger.GetAccount(ctx, userID)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	canClaim, err := h.ledger.CanClaimDailyBonus(ctx, userID)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	recent, err := h.ledger.History(ctx, userID, h.cfg.HistorySize)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, AccountResponse{
		Account:       account,
		WinRate:       account.WinRate(),
		CanClaimBonus: canClaim,
		Recent:        recent,
	})
}

// Entries 账本流水，返回的页码和页大小是修正后的值
func (h *ActionHandler) Entries(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	p := repository.NewPagination(page, pageSize)

	entries, total, err := h.ledger.Entries(c.Request.Context(), userID, p.Page, p.PageSize)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, PageResponse{Items: entries, Total: total, Page: p.Page, PageSize: p.PageSize})
}
