package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wfunc/casino-bot/internal/casino"
	apperrors "github.com/wfunc/casino-bot/internal/errors"
)

// WebSocket配置
const (
	// 写超时
	writeWait = 10 * time.Second

	// 读取pong超时
	pongWait = 60 * time.Second

	// ping发送周期（必须小于pongWait）
	pingPeriod = (pongWait * 9) / 10

	// 聊天动作都很短
	maxMessageSize = 4 * 1024

	sendBufferSize = 64
)

// Client 一个WebSocket连接
type Client struct {
	ID          string
	UserID      int64
	DisplayName string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewClient 创建新客户端
func NewClient(hub *Hub, conn *websocket.Conn, userID int64, displayName string) *Client {
	return &Client{
		ID:          uuid.NewString(),
		UserID:      userID,
		DisplayName: displayName,
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
	}
}

// ReadPump 读取消息，一个连接上的动作按顺序处理
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket读取错误",
					zap.String("client_id", c.ID),
					zap.Error(err))
			}
			return
		}
		c.handleMessage(ctx, data)
	}
}

// WritePump 写入消息
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub关闭了通道
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Client) handleMessage(ctx context.Context, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", apperrors.New(apperrors.ErrMessageFormat, err.Error()))
		return
	}

	switch msg.Type {
	case MessageTypePing:
		_ = c.hub.SendToClient(c.ID, &Message{Type: MessageTypePong, ID: msg.ID})

	case MessageTypePong:

	case MessageTypeAction:
		var in ActionData
		if err := json.Unmarshal(msg.Data, &in); err != nil {
			c.sendError(msg.ID, apperrors.New(apperrors.ErrMessageFormat, err.Error()))
			return
		}
		c.handleAction(ctx, msg.ID, in)

	default:
		c.hub.logger.Warn("收到不支持的消息类型",
			zap.String("client_id", c.ID),
			zap.String("type", msg.Type))
		c.sendError(msg.ID, apperrors.Newf(apperrors.ErrMessageFormat, "不支持的消息类型: %q", msg.Type))
	}
}

func (c *Client) handleAction(ctx context.Context, id string, in ActionData) {
	reply, err := c.hub.handler.Handle(ctx, casino.Action{
		UserID:      c.UserID,
		DisplayName: c.DisplayName,
		Kind:        in.Kind,
		Content:     in.Content,
	})
	if err != nil {
		appErr, ok := apperrors.As(err)
		if !ok {
			appErr = apperrors.Wrap(err, apperrors.ErrUnknown)
		}
		c.sendError(id, appErr)
		return
	}

	data, err := json.Marshal(reply)
	if err != nil {
		c.sendError(id, apperrors.Wrap(err, apperrors.ErrMessageFormat))
		return
	}
	// 同一玩家的其他设备也能看到结果
	if err := c.hub.SendToUser(c.UserID, &Message{Type: MessageTypeReply, ID: id, Data: data}); err != nil {
		c.hub.logger.Warn("推送回复失败", zap.String("client_id", c.ID), zap.Error(err))
	}
}

// sendError 只发给出错的连接
func (c *Client) sendError(id string, appErr *apperrors.AppError) {
	data, _ := json.Marshal(ErrorData{
		Code:      int(appErr.Code),
		Message:   appErr.Message,
		Retryable: apperrors.IsRetryable(appErr),
	})
	if err := c.hub.SendToClient(c.ID, &Message{Type: MessageTypeError, ID: id, Data: data}); err != nil {
		c.hub.logger.Warn("发送错误消息失败", zap.String("client_id", c.ID), zap.Error(err))
	}
}
