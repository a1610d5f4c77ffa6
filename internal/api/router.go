package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/casino-bot/internal/backup"
	"github.com/wfunc/casino-bot/internal/config"
	"github.com/wfunc/casino-bot/internal/middleware"
	"github.com/wfunc/casino-bot/internal/service"
	ws "github.com/wfunc/casino-bot/internal/websocket"
)

// Deps 路由依赖
type Deps struct {
	DB       *gorm.DB
	Config   *config.Config
	Services *service.Services
	Actions  ws.ActionHandler
	Hub      *ws.Hub
	Backups  *backup.Manager // 未启用备份时为 nil
}

// Router API路由器
type Router struct {
	engine *gin.Engine
	deps   Deps
	auth   *middleware.AuthMiddleware
	log    *zap.Logger

	actions *ActionHandler
	admin   *AdminHandler
	ws      *WebSocketHandler
}

// NewRouter 创建路由器
func NewRouter(deps Deps, log *zap.Logger) *Router {
	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Recovery(log))
	engine.Use(middleware.Logger(log))
	engine.Use(middleware.CORS(deps.Config.Server.AllowedOrigins))

	r := &Router{
		engine:  engine,
		deps:    deps,
		auth:    middleware.NewAuthMiddleware(deps.Services.Admin, deps.Config.Server.GatewayToken),
		log:     log,
		actions: NewActionHandler(deps.Actions, deps.Services.Ledger, deps.Config.Casino),
		admin:   NewAdminHandler(deps.Services, deps.Backups, log),
		ws:      NewWebSocketHandler(deps.Hub, deps.Config.Server.AllowedOrigins, log),
	}
	r.setupRoutes()
	return r
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.healthCheck)

	v1 := r.engine.Group("/api/v1")
	{
		// 聊天网关
		gateway := v1.Group("")
		gateway.Use(r.auth.RequireGateway())
		{
			gateway.POST("/actions", r.actions.Handle)
			gateway.GET("/accounts/:user_id", r.actions.Account)
			gateway.GET("/accounts/:user_id/entries", r.actions.Entries)
		}

		v1.GET("/leaderboard", r.actions.Leaderboard)

		admin := v1.Group("/admin")
		admin.POST("/login", r.admin.Login)
		admin.Use(r.auth.RequireAdmin())
		{
			admin.GET("/promos", r.admin.ListPromos)
			admin.POST("/promos", r.admin.CreatePromo)
			admin.GET("/stats", r.admin.Stats)
			admin.GET("/backups", r.admin.ListBackups)
			admin.POST("/backups", r.admin.CreateBackup)
		}
	}

	r.engine.GET("/ws", r.auth.RequireGateway(), r.ws.Connect)

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	sqlDB, err := r.deps.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"message": "数据库不可用",
		})
		return
	}

	online := 0
	if r.deps.Hub != nil {
		online = r.deps.Hub.OnlineCount()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
		"online":  online,
	})
}

// Handler 返回 http.Handler，供 http.Server 使用
func (r *Router) Handler() http.Handler {
	return r.engine
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
