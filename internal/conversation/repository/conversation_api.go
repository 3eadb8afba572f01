package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"conversation_sync_service/internal/conversation/domain"
	"conversation_sync_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrTransport 無法連上遠端
var ErrTransport = errors.New("remote transport error")

// RemoteError 遠端回傳非 2xx
type RemoteError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error: status %d code %d: %s", e.StatusCode, e.Code, e.Message)
}

// ConversationAPI definition remote conversation client
type ConversationAPI interface {
	GetConversation(ctx context.Context, conversationID int64) (domain.Conversation, error)
	GetConversations(ctx context.Context) ([]domain.Conversation, error)
	SendMessage(ctx context.Context, conversationID int64, message domain.Message) (domain.Message, error)
	CreateConversation(ctx context.Context, title string, conversationType domain.ConversationType, participantIDs []string) (domain.Conversation, error)
	GetMessages(ctx context.Context, conversationID int64, before, after *int64) ([]domain.Message, error)
	UpdateMessageStatus(ctx context.Context, conversationID, messageID int64) error
	// StreamConversations blocks until ctx is done or the stream fails
	StreamConversations(ctx context.Context, handler func(domain.Conversation)) error
}

// ConversationStream definition live update transport
type ConversationStream interface {
	Stream(ctx context.Context, handler func(domain.Conversation)) error
}

// TokenSource session token provider (cache.Store)
type TokenSource interface {
	Token() string
}

// envelope 遠端回應格式
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type createConversationRequest struct {
	Title          string                  `json:"title"`
	Type           domain.ConversationType `json:"type"`
	ParticipantIDs []string                `json:"participantIds"`
}

type sendMessageRequest struct {
	LocalID     string                     `json:"localId"`
	Message     string                     `json:"message"`
	Type        domain.MessageType         `json:"type"`
	StickerURL  string                     `json:"stickerUrl,omitempty"`
	Attachments []domain.MessageAttachment `json:"attachments,omitempty"`
}

type updateMessageStatusRequest struct {
	Status domain.MessageStatus `json:"status"`
}

type conversationAPI struct {
	baseURL string
	timeout time.Duration
	tokens  TokenSource
	stream  ConversationStream
}

// NewConversationAPI create REST client of the remote conversation api
func NewConversationAPI(baseURL string, timeout time.Duration, tokens TokenSource, stream ConversationStream) ConversationAPI {
	return &conversationAPI{
		baseURL: baseURL,
		timeout: timeout,
		tokens:  tokens,
		stream:  stream,
	}
}

// GetConversation get one conversation with its messages
func (a *conversationAPI) GetConversation(ctx context.Context, conversationID int64) (domain.Conversation, error) {
	var result domain.Conversation
	err := a.do(ctx, fiber.Get(a.url("/conversations/%d", conversationID)), &result)
	return result, err
}

// GetConversations get conversations of the current user
func (a *conversationAPI) GetConversations(ctx context.Context) ([]domain.Conversation, error) {
	var result []domain.Conversation
	err := a.do(ctx, fiber.Get(a.url("/conversations")), &result)
	return result, err
}

// SendMessage send message, the server echoes the stored message
func (a *conversationAPI) SendMessage(ctx context.Context, conversationID int64, message domain.Message) (domain.Message, error) {
	agent := fiber.Post(a.url("/conversations/%d/messages", conversationID)).JSON(sendMessageRequest{
		LocalID:     message.LocalID,
		Message:     message.Message,
		Type:        message.Type,
		StickerURL:  message.StickerURL,
		Attachments: message.Attachments,
	})

	var result domain.Message
	err := a.do(ctx, agent, &result)
	return result, err
}

// CreateConversation create conversation with participants
func (a *conversationAPI) CreateConversation(ctx context.Context, title string, conversationType domain.ConversationType, participantIDs []string) (domain.Conversation, error) {
	agent := fiber.Post(a.url("/conversations")).JSON(createConversationRequest{
		Title:          title,
		Type:           conversationType,
		ParticipantIDs: participantIDs,
	})

	var result domain.Conversation
	err := a.do(ctx, agent, &result)
	return result, err
}

// GetMessages paged messages, before / after are message ids
func (a *conversationAPI) GetMessages(ctx context.Context, conversationID int64, before, after *int64) ([]domain.Message, error) {
	query := url.Values{}
	if before != nil {
		query.Set("beforeMessageId", strconv.FormatInt(*before, 10))
	}
	if after != nil {
		query.Set("afterMessageId", strconv.FormatInt(*after, 10))
	}

	agent := fiber.Get(a.url("/conversations/%d/messages", conversationID))
	if len(query) > 0 {
		agent.QueryString(query.Encode())
	}

	var result []domain.Message
	err := a.do(ctx, agent, &result)
	return result, err
}

// UpdateMessageStatus mark message seen by me
func (a *conversationAPI) UpdateMessageStatus(ctx context.Context, conversationID, messageID int64) error {
	agent := fiber.Post(a.url("/conversations/%d/messages/%d/status", conversationID, messageID)).
		JSON(updateMessageStatusRequest{Status: domain.MessageStatusViewed})
	return a.do(ctx, agent, nil)
}

// StreamConversations 交給設定的 stream transport
func (a *conversationAPI) StreamConversations(ctx context.Context, handler func(domain.Conversation)) error {
	if a.stream == nil {
		return errors.New("conversation stream not configured")
	}
	return a.stream.Stream(ctx, handler)
}

func (a *conversationAPI) url(format string, args ...interface{}) string {
	return a.baseURL + fmt.Sprintf(format, args...)
}

// do 送出請求並解析 envelope，data 解構到 out (out 可為 nil)
func (a *conversationAPI) do(ctx context.Context, agent *fiber.Agent, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if token := a.tokens.Token(); token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)

	timeout := a.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remain := time.Until(deadline); remain < timeout || timeout <= 0 {
			timeout = remain
		}
	}
	if timeout > 0 {
		agent.Timeout(timeout)
	}

	req := agent.Request()
	method, uri := string(req.Header.Method()), req.URI().String()

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		logger.Log.Error("remote request failed", zap.String("method", method), zap.String("url", uri), zap.Errors("errs", errs))
		return fmt.Errorf("%w: %v", ErrTransport, errors.Join(errs...))
	}

	var env envelope
	if len(body) > 0 {
		if err := json.Unmarshal(body, &env); err != nil && code >= 200 && code < 300 {
			return fmt.Errorf("decode response of %s %s: %w", method, uri, err)
		}
	}

	if code < 200 || code >= 300 {
		logger.Log.Warn("remote answered non-2xx", zap.String("method", method), zap.String("url", uri), zap.Int("status", code), zap.String("message", env.Message))
		return &RemoteError{StatusCode: code, Code: env.Code, Message: env.Message}
	}

	logger.Log.Debug("remote request done", zap.String("method", method), zap.String("url", uri), zap.Int("status", code))

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data of %s %s: %w", method, uri, err)
	}
	return nil
}
