package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"conversation_sync_service/internal/conversation/domain"
	"conversation_sync_service/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebsocketConversationStream 透過遠端 websocket 接收聊天室更新
type WebsocketConversationStream struct {
	url    string
	tokens TokenSource
	dialer *websocket.Dialer
}

// NewWebsocketConversationStream create websocket stream
func NewWebsocketConversationStream(url string, handshakeTimeout time.Duration, tokens TokenSource) *WebsocketConversationStream {
	return &WebsocketConversationStream{
		url:    url,
		tokens: tokens,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

// Stream 每則文字訊息是一個 Conversation JSON，ctx 結束時回傳 nil
func (s *WebsocketConversationStream) Stream(ctx context.Context, handler func(domain.Conversation)) error {
	header := http.Header{}
	if token := s.tokens.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial conversation stream: status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial conversation stream: %w", err)
	}
	logger.Log.Info("conversation stream connected", zap.String("url", s.url))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Log.Info("conversation stream closed by remote", zap.Error(err))
				return nil
			}
			return fmt.Errorf("read conversation stream: %w", err)
		}
		if mt != websocket.TextMessage {
			continue
		}

		var conversation domain.Conversation
		if err := json.Unmarshal(data, &conversation); err != nil {
			logger.Log.Warn("drop undecodable stream event", zap.Error(err))
			continue
		}
		handler(conversation)
	}
}
