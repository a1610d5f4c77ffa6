// Package websocket 聊天传输层：每个连接绑定一个玩家，动作交给编排器处理，
// 回复同步推送到该玩家的所有连接
package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/wfunc/casino-bot/internal/casino"
)

// ActionHandler 处理聊天动作，*casino.Orchestrator 实现了它
type ActionHandler interface {
	Handle(ctx context.Context, a casino.Action) (*casino.Reply, error)
}

// Hub WebSocket连接管理中心
type Hub struct {
	clients map[string]*Client
	users   map[int64]map[string]*Client
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	handler ActionHandler
	clock   clockwork.Clock
	logger  *zap.Logger
}

// NewHub 创建Hub
func NewHub(handler ActionHandler, clock clockwork.Clock, logger *zap.Logger) *Hub {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		users:      make(map[int64]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		handler:    handler,
		clock:      clock,
		logger:     logger,
	}
}

// Run 运行Hub，ctx 结束时断开全部连接
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// Register 注册客户端
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	if h.users[client.UserID] == nil {
		h.users[client.UserID] = make(map[string]*Client)
	}
	h.users[client.UserID][client.ID] = client
	h.mu.Unlock()

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID),
		zap.Int64("user_id", client.UserID))

	data, _ := json.Marshal(map[string]any{"client_id": client.ID, "user_id": client.UserID})
	_ = h.SendToClient(client.ID, &Message{Type: MessageTypeConnected, Data: data})
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.send)
	}
	if conns := h.users[client.UserID]; conns != nil {
		delete(conns, client.ID)
		if len(conns) == 0 {
			delete(h.users, client.UserID)
		}
	}
	h.mu.Unlock()

	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", client.ID),
		zap.Int64("user_id", client.UserID))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.send)
		delete(h.clients, id)
	}
	h.users = make(map[int64]map[string]*Client)
}

func (h *Hub) encode(message *Message) ([]byte, error) {
	if message.Timestamp == 0 {
		message.Timestamp = h.clock.Now().Unix()
	}
	return json.Marshal(message)
}

// SendToClient 发送消息给指定连接
func (h *Hub) SendToClient(clientID string, message *Message) error {
	data, err := h.encode(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[clientID]
	if !ok {
		return ErrClientNotFound
	}
	select {
	case client.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// SendToUser 发送消息给玩家的所有连接
func (h *Hub) SendToUser(userID int64, message *Message) error {
	data, err := h.encode(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := h.users[userID]
	if len(conns) == 0 {
		return ErrUserNotConnected
	}
	for _, client := range conns {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("用户客户端发送缓冲区满",
				zap.String("client_id", client.ID),
				zap.Int64("user_id", userID))
		}
	}
	return nil
}

// OnlineCount 当前连接数
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// UserConnections 玩家当前的连接数
func (h *Hub) UserConnections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}
