package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"conversation_sync_service/internal/conversation/domain"
	"conversation_sync_service/pkg/logger"
	"conversation_sync_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const (
	pingInterval        = 10 * time.Minute
	conversationsSubKey = "conversations"
)

// ConversationWebsocketHandler UI 的 websocket 入口
type ConversationWebsocketHandler struct {
	registry     *SessionRegistry
	pingInterval time.Duration
}

// NewConversationWebsocketHandler create ConversationWebsocketHandler
func NewConversationWebsocketHandler(registry *SessionRegistry) *ConversationWebsocketHandler {
	return &ConversationWebsocketHandler{
		registry:     registry,
		pingInterval: pingInterval,
	}
}

// wsConnection 單一連線的狀態，寫入需要序列化
type wsConnection struct {
	conn     *websocket.Conn
	memberID string
	session  *Session

	writeMu sync.Mutex

	ctx    context.Context
	subsMu sync.Mutex
	subs   map[string]context.CancelFunc
	// wg 連線上的背景 goroutine，handler 結束前要等它們停止寫入
	wg sync.WaitGroup
}

// HandleConnection 是 WebSocket 連線的進入點
func (h *ConversationWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	memberID, _ := conn.Locals(middlewares.TokenMemberID).(string)
	token, _ := conn.Locals(middlewares.TokenRaw).(string)
	logger.Log.Info("websocket handle memberID", zap.String("memberID", memberID))

	ctxClose, cancel := context.WithCancel(ctx)
	c := &wsConnection{
		conn:     conn,
		memberID: memberID,
		ctx:      ctxClose,
		subs:     make(map[string]context.CancelFunc),
	}

	session, err := h.registry.Acquire(ctx, memberID, token)
	if err != nil {
		logger.Log.Error("acquire session failed", zap.String("memberID", memberID), zap.Error(err))
		c.sendError(fmt.Sprintf("session unavailable: %v", err))
		cancel()
		conn.Close()
		return
	}
	c.session = session

	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		cancel()
		c.wg.Wait()
		h.registry.Release(context.Background(), memberID)
		logger.Log.Info("websocket close", zap.String("memberID", memberID))
		conn.Close()
	}()

	//client發出close
	conn.SetCloseHandler(func(code int, text string) error {
		logger.Log.Info("websocket closed by client", zap.String("memberID", memberID), zap.Int("code", code))
		return nil
	})

	//client發出ping
	conn.SetPingHandler(func(appData string) error {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	// 定期發送 Ping，順便延長 session
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ticker.C:
				c.writeMu.Lock()
				err := conn.WriteMessage(websocket.PingMessage, []byte("ping"))
				c.writeMu.Unlock()
				if err != nil {
					logger.Log.Errorf("Ping error:", err)
					return
				}
				h.registry.Touch(ctxClose, memberID)
			case <-ctxClose.Done():
				return
			}
		}
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Info("connection closed", zap.String("memberID", memberID))
			} else {
				//直接斷線 1006
				logger.Log.Errorf("websocket read error:", err)
			}
			return
		}

		if mt != websocket.TextMessage {
			c.sendError("unsupported message type")
			continue
		}
		c.handleText(message)
	}
}

func (c *wsConnection) handleText(msg []byte) {
	var req domain.WSRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		c.sendError("invalid request")
		return
	}

	uc := c.session.UseCase
	resp := domain.WSResponse{Action: req.Action, Success: false, Payload: map[string]interface{}{}}

	switch domain.Action(req.Action) {
	//訂閱聊天室列表
	case domain.SubscribeConversations:
		c.subscribe(conversationsSubKey, func(ctx context.Context) {
			for list := range uc.GetConversations(ctx) {
				c.push(domain.ConversationsUpdated, map[string]interface{}{"conversations": list})
			}
		})
		resp.Success = true

	//訂閱單一聊天室
	case domain.SubscribeConversation:
		id := req.ConversationID
		c.subscribe(conversationSubKey(id), func(ctx context.Context) {
			for conversation := range uc.GetConversation(ctx, id) {
				c.push(domain.ConversationUpdated, map[string]interface{}{"conversation": conversation})
			}
		})
		resp.Success = true
		resp.Payload["conversation_id"] = id

	case domain.Unsubscribe:
		key := conversationsSubKey
		if req.ConversationID != 0 {
			key = conversationSubKey(req.ConversationID)
		}
		resp.Success = c.unsubscribe(key)

	//傳送訊息，先樂觀寫入快取
	case domain.SendMessage:
		if req.Message == nil {
			resp.Error = "message is required"
			break
		}
		message := *req.Message
		if message.Type == "" {
			message.Type = domain.MessageTypePlaintext
		}
		id, err := uc.SendConversationMessage(c.ctx, req.ConversationID, req.UserID, message)
		resp.Payload["conversation_id"] = id
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
		}

	//分頁取得訊息
	case domain.GetMessages:
		messages := uc.GetConversationMessages(c.ctx, req.ConversationID, req.Before, req.After)
		resp.Success = true
		resp.Payload["messages"] = messages

	//找 1對1 聊天室
	case domain.FindConversation:
		resp.Success = true
		resp.Payload["conversation"] = uc.FindConversationWithUser(req.UserID)

	//讀取訊息
	case domain.ReadMessage:
		if err := uc.UpdateMessageStatus(c.ctx, req.ConversationID, req.MessageID); err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
		}

	default:
		c.sendError("unknown action " + req.Action)
		return
	}

	if resp.Error != "" {
		logger.Log.Error("websocket err ", zap.String("MemberID", c.memberID), zap.String("Action", req.Action), zap.String("err", resp.Error))
	}
	c.sendResponse(resp)
}

func conversationSubKey(id int64) string {
	return fmt.Sprintf("conversation:%d", id)
}

// subscribe 同一個 key 只保留最新的訂閱
func (c *wsConnection) subscribe(key string, run func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(c.ctx)

	c.subsMu.Lock()
	if prev, ok := c.subs[key]; ok {
		prev()
	}
	c.subs[key] = cancel
	c.subsMu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		run(ctx)
	}()
}

func (c *wsConnection) unsubscribe(key string) bool {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	cancel, ok := c.subs[key]
	if ok {
		cancel()
		delete(c.subs, key)
	}
	return ok
}

func (c *wsConnection) push(action domain.Action, payload map[string]interface{}) {
	c.sendResponse(domain.WSResponse{Action: string(action), Success: true, Payload: payload})
}

// sendResponse - 發送 JSON 給前端
func (c *wsConnection) sendResponse(resp domain.WSResponse) {
	b, err := json.Marshal(resp)
	if err != nil {
		logger.Log.Error("marshal response failed", zap.String("action", resp.Action), zap.Error(err))
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		logger.Log.Errorf("write message error:", err)
	}
}

func (c *wsConnection) sendError(errorMsg string) {
	c.sendResponse(domain.WSResponse{
		Action:  "error",
		Success: false,
		Payload: map[string]interface{}{
			"error": errorMsg,
		},
	})
}
