package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wfunc/casino-bot/internal/casino"
	apperrors "github.com/wfunc/casino-bot/internal/errors"
	"github.com/wfunc/casino-bot/internal/session"
)

// echoHandler 把动作内容原样放进回复
type echoHandler struct {
	mu      sync.Mutex
	actions []casino.Action
}

func (h *echoHandler) Handle(_ context.Context, a casino.Action) (*casino.Reply, error) {
	h.mu.Lock()
	h.actions = append(h.actions, a)
	h.mu.Unlock()

	if a.Content == "explode" {
		return nil, apperrors.New(apperrors.ErrStoreUnavailable)
	}
	return &casino.Reply{Text: a.Content, State: session.StateIdle, Balance: 1000}, nil
}

type harness struct {
	hub     *Hub
	handler *echoHandler
	server  *httptest.Server
	cancel  context.CancelFunc
}

func newHarness(t *testing.T) *harness {
	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{handler: &echoHandler{}, cancel: cancel}
	h.hub = NewHub(h.handler, nil, zap.NewNop())
	go h.hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(h.hub, conn, userID, r.URL.Query().Get("display_name"))
		if err := h.hub.Register(client); err != nil {
			conn.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump(ctx)
	}))

	t.Cleanup(func() {
		h.server.Close()
		cancel()
	})
	return h
}

func (h *harness) dial(t *testing.T, userID int64) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/?user_id=" + strconv.FormatInt(userID, 10) + "&display_name=tester"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeConnected, msg.Type)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func sendAction(t *testing.T, conn *websocket.Conn, id string, kind casino.ActionKind, content string) {
	data, err := json.Marshal(ActionData{Kind: kind, Content: content})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Message{Type: MessageTypeAction, ID: id, Data: data}))
}

func TestHub_ActionRoundTrip(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, 7)

	sendAction(t, conn, "a1", casino.ActionText, "/start")
	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeReply, msg.Type)
	assert.Equal(t, "a1", msg.ID)

	var reply casino.Reply
	require.NoError(t, json.Unmarshal(msg.Data, &reply))
	assert.Equal(t, "/start", reply.Text)
	assert.Equal(t, int64(1000), reply.Balance)

	h.handler.mu.Lock()
	defer h.handler.mu.Unlock()
	require.Len(t, h.handler.actions, 1)
	assert.Equal(t, int64(7), h.handler.actions[0].UserID)
	assert.Equal(t, "tester", h.handler.actions[0].DisplayName)
}

func TestHub_ReplyReachesAllUserConnections(t *testing.T) {
	h := newHarness(t)
	phone := h.dial(t, 9)
	laptop := h.dial(t, 9)
	other := h.dial(t, 10)

	assert.Eventually(t, func() bool { return h.hub.UserConnections(9) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, h.hub.OnlineCount())

	sendAction(t, phone, "x", casino.ActionCallback, "games")
	assert.Equal(t, MessageTypeReply, readMessage(t, phone).Type)
	assert.Equal(t, MessageTypeReply, readMessage(t, laptop).Type)

	// 其他玩家收不到
	require.NoError(t, other.WriteJSON(Message{Type: MessageTypePing, ID: "p"}))
	msg := readMessage(t, other)
	assert.Equal(t, MessageTypePong, msg.Type)
	assert.Equal(t, "p", msg.ID)
}

func TestHub_Errors(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, 3)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeError, msg.Type)

	var data ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, int(apperrors.ErrMessageFormat), data.Code)
	assert.False(t, data.Retryable)

	require.NoError(t, conn.WriteJSON(Message{Type: "dance"}))
	assert.Equal(t, MessageTypeError, readMessage(t, conn).Type)

	sendAction(t, conn, "boom", casino.ActionText, "explode")
	msg = readMessage(t, conn)
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Equal(t, "boom", msg.ID)
	data = ErrorData{}
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, int(apperrors.ErrStoreUnavailable), data.Code)
	assert.True(t, data.Retryable)
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, 5)
	assert.Eventually(t, func() bool { return h.hub.OnlineCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return h.hub.OnlineCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, h.hub.SendToUser(5, &Message{Type: MessageTypePing}), ErrUserNotConnected)
	assert.ErrorIs(t, h.hub.SendToClient("missing", &Message{Type: MessageTypePing}), ErrClientNotFound)
}

func TestHub_RegisterAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(&echoHandler{}, nil, zap.NewNop())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	err := hub.Register(&Client{ID: "late", send: make(chan []byte, 1)})
	assert.ErrorIs(t, err, ErrHubClosed)
}
