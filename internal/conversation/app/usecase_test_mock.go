package app

import (
	"context"
	"time"

	"conversation_sync_service/internal/conversation/domain"

	"github.com/stretchr/testify/mock"
)

// MockConversationAPI Mock repository.ConversationAPI
type MockConversationAPI struct {
	mock.Mock
}

// GetConversation moke get conversation by id
func (m *MockConversationAPI) GetConversation(ctx context.Context, conversationID int64) (domain.Conversation, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).(domain.Conversation), args.Error(1)
}

// GetConversations moke get conversations
func (m *MockConversationAPI) GetConversations(ctx context.Context) ([]domain.Conversation, error) {
	args := m.Called(ctx)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// SendMessage moke send message
func (m *MockConversationAPI) SendMessage(ctx context.Context, conversationID int64, message domain.Message) (domain.Message, error) {
	args := m.Called(ctx, conversationID, message)
	return args.Get(0).(domain.Message), args.Error(1)
}

// CreateConversation moke create conversation
func (m *MockConversationAPI) CreateConversation(ctx context.Context, title string, conversationType domain.ConversationType, participantIDs []string) (domain.Conversation, error) {
	args := m.Called(ctx, title, conversationType, participantIDs)
	return args.Get(0).(domain.Conversation), args.Error(1)
}

// GetMessages moke get messages
func (m *MockConversationAPI) GetMessages(ctx context.Context, conversationID int64, before, after *int64) ([]domain.Message, error) {
	args := m.Called(ctx, conversationID, before, after)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// UpdateMessageStatus moke update message status
func (m *MockConversationAPI) UpdateMessageStatus(ctx context.Context, conversationID, messageID int64) error {
	args := m.Called(ctx, conversationID, messageID)
	return args.Error(0)
}

// StreamConversations moke stream, use Run to feed events through the handler
func (m *MockConversationAPI) StreamConversations(ctx context.Context, handler func(domain.Conversation)) error {
	args := m.Called(ctx, handler)
	return args.Error(0)
}

// MockSessionRecords Mock database.RedisRepository[SessionRecord]
type MockSessionRecords struct {
	mock.Mock
}

// Set moke set record
func (m *MockSessionRecords) Set(ctx context.Context, key string, value SessionRecord, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

// Get moke get record
func (m *MockSessionRecords) Get(ctx context.Context, key string) (SessionRecord, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(SessionRecord), args.Error(1)
}

// Del moke delete record
func (m *MockSessionRecords) Del(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// GetTTL moke get ttl
func (m *MockSessionRecords) GetTTL(ctx context.Context, key string) (int, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Error(1)
}

// ExtendTTL moke extend ttl
func (m *MockSessionRecords) ExtendTTL(ctx context.Context, key string, ttl time.Duration) error {
	args := m.Called(ctx, key, ttl)
	return args.Error(0)
}
