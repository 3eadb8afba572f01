package app

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"testing"
	"time"

	"conversation_sync_service/internal/conversation/cache"
	"conversation_sync_service/internal/conversation/domain"
	"conversation_sync_service/internal/conversation/repository"
	"conversation_sync_service/pkg/middlewares"
	t_token "conversation_sync_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	fiber_ws "github.com/gofiber/websocket/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// startWebsocketServer 啟動只有 /ws 的 fiber app，回傳連線網址
func startWebsocketServer(t *testing.T, remote *MockConversationAPI) string {
	t.Helper()

	registry := NewSessionRegistry(func(memberID string, store *cache.Store) (SessionDependencies, error) {
		return SessionDependencies{Remote: remote, Users: repository.NewMemoryUserDirectory(memberID)}, nil
	}, Options{}, nil, time.Hour)
	handler := NewConversationWebsocketHandler(registry)

	r := fiber.New(fiber.Config{DisableStartupMessage: true})
	r.Use("/ws", middlewares.JWTMiddleware())
	r.Get("/ws", fiber_ws.New(func(c *fiber_ws.Conn) {
		handler.HandleConnection(context.Background(), c)
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = r.Listener(ln) }()
	t.Cleanup(func() {
		_ = r.Shutdown()
		registry.Shutdown(context.Background())
	})

	tokenStr, err := t_token.GenerateJWT(me.ID, string(t_token.RoleMember), "test")
	require.NoError(t, err)
	u := url.URL{Scheme: "ws", Host: ln.Addr().String(), Path: "/ws", RawQuery: "auth=" + tokenStr}
	return u.String()
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil 讀取直到收到指定 action 的回應
func readUntil(t *testing.T, conn *websocket.Conn, action string, match func(domain.WSResponse) bool) domain.WSResponse {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var resp domain.WSResponse
		require.NoError(t, json.Unmarshal(raw, &resp))
		if resp.Action == action && (match == nil || match(resp)) {
			return resp
		}
	}
}

func writeRequest(t *testing.T, conn *websocket.Conn, req domain.WSRequest) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(req))
}

func TestConversationWebsocketHandler(t *testing.T) {
	remote := new(MockConversationAPI)
	blockingStream(remote, nil)

	incoming := textMessage(10, "", "hi", u2, 0)
	remote.On("GetConversations", mock.Anything).Return([]domain.Conversation{{
		ID:           1,
		Type:         domain.ConversationTypeSingle,
		Creator:      u2,
		Participants: []domain.User{me, u2},
		Messages:     []domain.Message{incoming},
	}}, nil)
	remote.On("GetConversation", mock.Anything, int64(1)).Return(domain.Conversation{}, errors.New("offline")).Maybe()
	remote.On("SendMessage", mock.Anything, int64(1), mock.Anything).Return(domain.Message{ID: 11, Message: "hello"}, nil)
	remote.On("UpdateMessageStatus", mock.Anything, int64(1), int64(10)).Return(nil)
	remote.On("GetMessages", mock.Anything, int64(1), mock.Anything, mock.Anything).Return([]domain.Message{incoming}, nil)

	conn := dial(t, startWebsocketServer(t, remote))

	t.Run("訂閱聊天室列表", func(t *testing.T) {
		writeRequest(t, conn, domain.WSRequest{Action: string(domain.SubscribeConversations)})

		resp := readUntil(t, conn, string(domain.ConversationsUpdated), func(r domain.WSResponse) bool {
			list, _ := r.Payload["conversations"].([]interface{})
			return len(list) == 1
		})
		assert.True(t, resp.Success)
	})

	t.Run("傳送訊息", func(t *testing.T) {
		msg := domain.NewMessage("hello", domain.MessageTypePlaintext)
		writeRequest(t, conn, domain.WSRequest{Action: string(domain.SendMessage), ConversationID: 1, UserID: u2.ID, Message: &msg})

		resp := readUntil(t, conn, string(domain.SendMessage), nil)
		assert.True(t, resp.Success)
		assert.Equal(t, float64(1), resp.Payload["conversation_id"])
	})

	t.Run("找 1對1 聊天室", func(t *testing.T) {
		writeRequest(t, conn, domain.WSRequest{Action: string(domain.FindConversation), UserID: u2.ID})

		resp := readUntil(t, conn, string(domain.FindConversation), nil)
		require.True(t, resp.Success)
		conversation, ok := resp.Payload["conversation"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, float64(1), conversation["id"])
	})

	t.Run("取得訊息", func(t *testing.T) {
		writeRequest(t, conn, domain.WSRequest{Action: string(domain.GetMessages), ConversationID: 1})

		resp := readUntil(t, conn, string(domain.GetMessages), nil)
		require.True(t, resp.Success)
		messages, _ := resp.Payload["messages"].([]interface{})
		assert.Len(t, messages, 1)
	})

	t.Run("已讀", func(t *testing.T) {
		writeRequest(t, conn, domain.WSRequest{Action: string(domain.ReadMessage), ConversationID: 1, MessageID: 10})

		resp := readUntil(t, conn, string(domain.ReadMessage), nil)
		assert.True(t, resp.Success)
	})

	t.Run("取消訂閱", func(t *testing.T) {
		writeRequest(t, conn, domain.WSRequest{Action: string(domain.Unsubscribe)})
		resp := readUntil(t, conn, string(domain.Unsubscribe), nil)
		assert.True(t, resp.Success)

		writeRequest(t, conn, domain.WSRequest{Action: string(domain.Unsubscribe), ConversationID: 99})
		resp = readUntil(t, conn, string(domain.Unsubscribe), nil)
		assert.False(t, resp.Success)
	})

	t.Run("未知 action", func(t *testing.T) {
		writeRequest(t, conn, domain.WSRequest{Action: "dance"})
		resp := readUntil(t, conn, "error", nil)
		assert.Equal(t, "unknown action dance", resp.Payload["error"])
	})

	t.Run("缺少訊息內容", func(t *testing.T) {
		writeRequest(t, conn, domain.WSRequest{Action: string(domain.SendMessage), ConversationID: 1})
		resp := readUntil(t, conn, string(domain.SendMessage), nil)
		assert.False(t, resp.Success)
		assert.Equal(t, "message is required", resp.Error)
	})
}

func TestConversationWebsocketHandlerUnauthorized(t *testing.T) {
	remote := new(MockConversationAPI)
	wsURL := startWebsocketServer(t, remote)

	u, err := url.Parse(wsURL)
	require.NoError(t, err)
	u.RawQuery = "auth=broken"

	_, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
