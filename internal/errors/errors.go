package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode 错误码类型
type ErrorCode int

// 错误码定义（按模块分组）
const (
	// 通用错误 (1000-1999)
	ErrUnknown          ErrorCode = 1000
	ErrInvalidParam     ErrorCode = 1001
	ErrNotFound         ErrorCode = 1002
	ErrAlreadyExists    ErrorCode = 1003
	ErrPermissionDenied ErrorCode = 1004
	ErrTimeout          ErrorCode = 1005
	ErrCanceled         ErrorCode = 1006

	// 游戏与账户错误 (2000-2999)
	ErrUnknownGame            ErrorCode = 2000
	ErrInvalidBet             ErrorCode = 2001
	ErrInsufficientFunds      ErrorCode = 2002
	ErrInvalidStateTransition ErrorCode = 2003
	ErrBonusAlreadyClaimed    ErrorCode = 2004
	ErrInvalidChoice          ErrorCode = 2005
	ErrAccountNotFound        ErrorCode = 2006

	// 促销码错误 (3000-3999)
	ErrPromoNotFound        ErrorCode = 3000
	ErrPromoAlreadyRedeemed ErrorCode = 3001
	ErrPromoExhausted       ErrorCode = 3002
	ErrPromoInvalid         ErrorCode = 3003

	// 通信错误 (4000-4999)
	ErrWebSocketConnect ErrorCode = 4000
	ErrWebSocketSend    ErrorCode = 4001
	ErrMessageFormat    ErrorCode = 4007

	// 存储错误 (5000-5999)
	ErrStoreUnavailable ErrorCode = 5000
	ErrDatabaseQuery    ErrorCode = 5001
	ErrTransaction      ErrorCode = 5005
	ErrDataIntegrity    ErrorCode = 5006
	ErrBackup           ErrorCode = 5007

	// 配置错误 (6000-6999)
	ErrConfigLoad     ErrorCode = 6000
	ErrConfigValidate ErrorCode = 6002

	// 安全错误 (7000-7999)
	ErrAuthentication    ErrorCode = 7000
	ErrAuthorization     ErrorCode = 7001
	ErrTokenExpired      ErrorCode = 7002
	ErrTokenInvalid      ErrorCode = 7003
	ErrRateLimitExceeded ErrorCode = 7004
)

// 错误码消息映射
var errorMessages = map[ErrorCode]string{
	ErrUnknown:          "未知错误",
	ErrInvalidParam:     "无效的参数",
	ErrNotFound:         "资源未找到",
	ErrAlreadyExists:    "资源已存在",
	ErrPermissionDenied: "权限不足",
	ErrTimeout:          "操作超时",
	ErrCanceled:         "操作已取消",

	ErrUnknownGame:            "未知的游戏",
	ErrInvalidBet:             "无效的投注金额",
	ErrInsufficientFunds:      "余额不足",
	ErrInvalidStateTransition: "无效的状态转换",
	ErrBonusAlreadyClaimed:    "今日奖励已领取",
	ErrInvalidChoice:          "无效的选择",
	ErrAccountNotFound:        "账户不存在",

	ErrPromoNotFound:        "促销码不存在",
	ErrPromoAlreadyRedeemed: "促销码已使用",
	ErrPromoExhausted:       "促销码已用完",
	ErrPromoInvalid:         "无效的促销码",

	ErrWebSocketConnect: "WebSocket连接失败",
	ErrWebSocketSend:    "WebSocket发送失败",
	ErrMessageFormat:    "消息格式错误",

	ErrStoreUnavailable: "存储不可用",
	ErrDatabaseQuery:    "数据库查询失败",
	ErrTransaction:      "事务处理失败",
	ErrDataIntegrity:    "数据完整性错误",
	ErrBackup:           "备份失败",

	ErrConfigLoad:     "配置加载失败",
	ErrConfigValidate: "配置验证失败",

	ErrAuthentication:    "认证失败",
	ErrAuthorization:     "授权失败",
	ErrTokenExpired:      "令牌已过期",
	ErrTokenInvalid:      "无效的令牌",
	ErrRateLimitExceeded: "请求频率超限",
}

// AppError 应用错误结构
type AppError struct {
	Code    ErrorCode    `json:"code"`            // 错误码
	Message string       `json:"message"`         // 错误消息
	Details string       `json:"details"`         // 详细信息
	Cause   error        `json:"-"`               // 原始错误
	Stack   []StackFrame `json:"stack,omitempty"` // 调用栈
}

// StackFrame 调用栈帧
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause 添加原因错误
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	if cause != nil && e.Details == "" {
		e.Details = cause.Error()
	}
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}

	err := &AppError{
		Code:    code,
		Message: message,
	}

	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}

	err.captureStack(2)
	return err
}

// Newf 创建格式化的应用错误
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	// 如果已经是AppError，保留原始错误码
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		if len(details) > 0 {
			appErr.Details = strings.Join(details, "; ") + "; " + appErr.Details
		}
		return appErr
	}

	appErr = New(code, details...)
	appErr.Cause = err
	if appErr.Details == "" {
		appErr.Details = err.Error()
	}

	return appErr
}

// As 提取错误链中的AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is 判断错误链中是否包含指定错误码
func Is(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// GetCode 获取错误码
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ErrUnknown
}

// captureStack 捕获调用栈
func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return
	}

	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()

		// 跳过runtime和本包的调用
		if strings.Contains(frame.Function, "runtime.") ||
			strings.Contains(frame.Function, "github.com/wfunc/casino-bot/internal/errors.") {
			if !more {
				break
			}
			continue
		}

		e.Stack = append(e.Stack, StackFrame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})

		// 只保留前10个栈帧
		if !more || len(e.Stack) >= 10 {
			break
		}
	}
}

// GetStack 获取格式化的调用栈
func (e *AppError) GetStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, frame := range e.Stack {
		builder.WriteString(fmt.Sprintf("%d. %s\n   %s:%d\n",
			i+1, frame.Function, frame.File, frame.Line))
	}
	return builder.String()
}

// HTTPStatus 返回对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrInvalidParam, ErrInvalidBet, ErrInvalidChoice, ErrUnknownGame, ErrPromoInvalid, ErrMessageFormat:
		return 400
	case ErrNotFound, ErrAccountNotFound, ErrPromoNotFound:
		return 404
	case ErrAlreadyExists, ErrInsufficientFunds, ErrInvalidStateTransition,
		ErrBonusAlreadyClaimed, ErrPromoAlreadyRedeemed, ErrPromoExhausted:
		return 409
	case ErrPermissionDenied, ErrAuthorization:
		return 403
	case ErrAuthentication, ErrTokenExpired, ErrTokenInvalid:
		return 401
	case ErrTimeout:
		return 408
	case ErrRateLimitExceeded:
		return 429
	}
	if e.Code >= 5000 && e.Code <= 5999 {
		return 503
	}
	return 500
}

// IsUserFacing 判断错误是否应原样展示给玩家
func IsUserFacing(err error) bool {
	code := GetCode(err)
	return code >= 2000 && code < 4000 || code == ErrInvalidParam || code == ErrRateLimitExceeded
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch GetCode(err) {
	case ErrTimeout,
		ErrStoreUnavailable,
		ErrTransaction,
		ErrWebSocketConnect:
		return true
	default:
		return false
	}
}

// ErrorResponse API错误响应结构
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     *AppError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(err *AppError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     err,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}
