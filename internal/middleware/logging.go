package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/wfunc/casino-bot/internal/errors"
)

const (
	ctxRequestIDKey = "request_id"

	// RequestIDHeader 请求ID头
	RequestIDHeader = "X-Request-ID"
)

// RequestID 为每个请求分配ID，客户端传入的优先
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID 当前请求ID
func GetRequestID(c *gin.Context) string {
	return c.GetString(ctxRequestIDKey)
}

// Logger 用 zap 记录访问日志
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("request_id", GetRequestID(c)),
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("HTTP请求", fields...)
		case status >= 400:
			log.Warn("HTTP请求", fields...)
		default:
			log.Debug("HTTP请求", fields...)
		}
	}
}

// Recovery 捕获 panic，返回统一的错误响应
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("请求处理 panic",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", GetRequestID(c)),
					zap.Stack("stack"))
				Abort(c, apperrors.New(apperrors.ErrUnknown))
			}
		}()
		c.Next()
	}
}

// RetryAfterSeconds 可重试错误建议的重试间隔
const RetryAfterSeconds = "1"

// Abort 按错误码写出 ErrorResponse 并终止
// 服务端错误不回传 Details，可重试的错误附带 Retry-After
func Abort(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Wrap(err, apperrors.ErrUnknown)
	}
	status := appErr.HTTPStatus()
	resp := apperrors.NewErrorResponse(appErr, GetRequestID(c))
	// 调用栈只写日志
	out := *appErr
	out.Stack = nil
	if status >= 500 {
		out.Details = ""
	}
	resp.Error = &out
	if apperrors.IsRetryable(appErr) {
		c.Header("Retry-After", RetryAfterSeconds)
	}
	c.AbortWithStatusJSON(status, resp)
}
