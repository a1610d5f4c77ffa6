package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apperrors "github.com/wfunc/casino-bot/internal/errors"
	"github.com/wfunc/casino-bot/internal/middleware"
	ws "github.com/wfunc/casino-bot/internal/websocket"
)

// WebSocketHandler WebSocket处理器
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger

	// 连接的读循环在请求结束后继续运行，不能用请求的 ctx
	ctx context.Context
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(hub *ws.Hub, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
		ctx:    context.Background(),
	}
}

// originChecker 按配置校验 Origin，"*" 放行全部
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// Connect 建立聊天连接：/ws?user_id=&display_name=
func (h *WebSocketHandler) Connect(c *gin.Context) {
	if h.hub == nil {
		middleware.Abort(c, apperrors.New(apperrors.ErrWebSocketConnect, "聊天连接未启用"))
		return
	}
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		middleware.Abort(c, apperrors.New(apperrors.ErrInvalidParam, "无效的 user_id"))
		return
	}
	displayName := c.Query("display_name")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket升级失败",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, userID, displayName)
	if err := h.hub.Register(client); err != nil {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump(h.ctx)

	h.logger.Info("WebSocket连接建立",
		zap.String("client_id", client.ID),
		zap.Int64("user_id", userID))
}
