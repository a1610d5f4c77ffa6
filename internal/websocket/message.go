package websocket

import (
	"encoding/json"
	"errors"

	"github.com/wfunc/casino-bot/internal/casino"
)

// 错误定义
var (
	ErrClientNotFound   = errors.New("客户端未找到")
	ErrUserNotConnected = errors.New("用户未连接")
	ErrSendBufferFull   = errors.New("发送缓冲区已满")
	ErrHubClosed        = errors.New("连接中心已关闭")
)

// 消息类型
const (
	MessageTypeConnected = "connected"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeError     = "error"
	MessageTypeAction    = "action" // 客户端 -> 服务端：聊天动作
	MessageTypeReply     = "reply"  // 服务端 -> 客户端：动作结果
)

// Message 帧格式
// ID 由客户端生成，回复时原样带回
type Message struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// ActionData action 帧的数据部分，玩家身份取自连接
type ActionData struct {
	Kind    casino.ActionKind `json:"kind"`
	Content string            `json:"content"`
}

// ErrorData error 帧的数据部分
// Retryable 为 true 时客户端可原样重发该动作
type ErrorData struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}
