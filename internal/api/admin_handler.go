package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wfunc/casino-bot/internal/backup"
	apperrors "github.com/wfunc/casino-bot/internal/errors"
	"github.com/wfunc/casino-bot/internal/middleware"
	"github.com/wfunc/casino-bot/internal/service"
)

// LoginRequest 管理员登录
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// CreatePromoRequest 创建促销码
// 已存在的同名促销码会被覆盖，使用次数清零
type CreatePromoRequest struct {
	Code    string `json:"code" binding:"required"`
	Reward  int64  `json:"reward" binding:"required,gt=0"`
	MaxUses int64  `json:"max_uses"`
}

// AdminHandler 管理接口
type AdminHandler struct {
	services *service.Services
	backups  *backup.Manager
	log      *zap.Logger
}

// NewAdminHandler 创建管理处理器
func NewAdminHandler(services *service.Services, backups *backup.Manager, log *zap.Logger) *AdminHandler {
	return &AdminHandler{services: services, backups: backups, log: log}
}

// Login 管理员登录
func (h *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, apperrors.New(apperrors.ErrInvalidParam, err.Error()))
		return
	}

	token, err := h.services.Admin.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.log.Warn("管理员登录失败", zap.String("username", req.Username), zap.String("ip", c.ClientIP()))
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

// ListPromos 促销码列表
func (h *AdminHandler) ListPromos(c *gin.Context) {
	codes, err := h.services.Promo.ListCodes(c.Request.Context())
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": codes})
}

// CreatePromo 创建或重置促销码
func (h *AdminHandler) CreatePromo(c *gin.Context) {
	var req CreatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, apperrors.New(apperrors.ErrInvalidParam, err.Error()))
		return
	}
	if req.MaxUses == 0 {
		req.MaxUses = 100
	}

	promo, err := h.services.Promo.CreateCode(c.Request.Context(), req.Code, req.Reward, req.MaxUses)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	admin, _ := middleware.GetAdmin(c)
	h.log.Info("创建促销码",
		zap.String("admin", admin),
		zap.String("code", promo.Code),
		zap.Int64("reward", promo.Reward),
		zap.Int64("max_uses", promo.MaxUses))
	c.JSON(http.StatusCreated, promo)
}

// Stats 运营统计
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.services.Stats.Overview(c.Request.Context())
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *AdminHandler) backupsEnabled(c *gin.Context) bool {
	if h.backups == nil {
		middleware.Abort(c, apperrors.New(apperrors.ErrBackup, "备份未启用"))
		return false
	}
	return true
}

// ListBackups 本地备份列表
func (h *AdminHandler) ListBackups(c *gin.Context) {
	if !h.backupsEnabled(c) {
		return
	}
	list, err := h.backups.List()
	if err != nil {
		middleware.Abort(c, apperrors.Wrap(err, apperrors.ErrBackup))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

// CreateBackup 立即备份
func (h *AdminHandler) CreateBackup(c *gin.Context) {
	if !h.backupsEnabled(c) {
		return
	}
	result, err := h.backups.Run(c.Request.Context())
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
