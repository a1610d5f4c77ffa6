package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/wfunc/casino-bot/internal/errors"
	"github.com/wfunc/casino-bot/internal/service"
)

const (
	ctxAdminKey = "admin"

	// GatewayTokenHeader 聊天网关携带共享令牌的请求头
	GatewayTokenHeader = "X-Gateway-Token"
)

// AuthMiddleware 管理接口认证中间件
type AuthMiddleware struct {
	adminAuth    service.AdminAuthService
	gatewayToken string
}

// NewAuthMiddleware 创建认证中间件
func NewAuthMiddleware(adminAuth service.AdminAuthService, gatewayToken string) *AuthMiddleware {
	return &AuthMiddleware{adminAuth: adminAuth, gatewayToken: gatewayToken}
}

// RequireAdmin 需要管理员令牌
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c)
		if token == "" {
			Abort(c, apperrors.New(apperrors.ErrAuthentication, "缺少认证令牌"))
			return
		}

		username, err := m.adminAuth.ValidateToken(token)
		if err != nil {
			Abort(c, err)
			return
		}

		c.Set(ctxAdminKey, username)
		c.Next()
	}
}

// RequireGateway 校验聊天网关的共享令牌，未配置令牌时放行
func (m *AuthMiddleware) RequireGateway() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.gatewayToken == "" {
			c.Next()
			return
		}

		token := c.GetHeader(GatewayTokenHeader)
		if token == "" {
			// 浏览器的 WebSocket 不能自定义请求头
			token = c.Query("token")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(m.gatewayToken)) != 1 {
			Abort(c, apperrors.New(apperrors.ErrAuthentication, "网关令牌无效"))
			return
		}
		c.Next()
	}
}

// extractBearer 从 Authorization 头提取令牌
func extractBearer(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// GetAdmin 从上下文获取管理员用户名
func GetAdmin(c *gin.Context) (string, bool) {
	if v, exists := c.Get(ctxAdminKey); exists {
		if name, ok := v.(string); ok {
			return name, true
		}
	}
	return "", false
}
