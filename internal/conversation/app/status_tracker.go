package app

import (
	"context"

	"conversation_sync_service/internal/conversation/domain"
	"conversation_sync_service/internal/conversation/repository"
)

// MessageStatusTracker 讀取時補上 sender、已讀使用者與 IsSeenByMe
type MessageStatusTracker struct {
	users repository.UserDirectory
}

// NewMessageStatusTracker create MessageStatusTracker
func NewMessageStatusTracker(users repository.UserDirectory) *MessageStatusTracker {
	return &MessageStatusTracker{users: users}
}

// Annotate resolve senders against the directory, SeenUsers against participants and compute
// IsSeenByMe. The returned conversation does not share message slices with the input.
func (t *MessageStatusTracker) Annotate(ctx context.Context, conversation domain.Conversation, participants []domain.User) domain.Conversation {
	meID := ""
	if me, err := t.users.FindMe(ctx); err == nil && me != nil {
		meID = me.ID
	}

	byID := make(map[string]domain.User, len(participants))
	for _, p := range participants {
		byID[p.ID] = p
	}

	resolved := make(map[string]domain.User)
	messages := make([]domain.Message, len(conversation.Messages))
	for i, m := range conversation.Messages {
		sender, ok := resolved[m.Sender.ID]
		if !ok {
			sender = t.resolve(ctx, m.Sender, meID)
			resolved[m.Sender.ID] = sender
		}
		m.Sender = sender

		m.SeenUsers = nil
		for _, id := range m.SeenBy {
			if u, ok := byID[id]; ok {
				m.SeenUsers = append(m.SeenUsers, u)
			}
		}
		m.IsSeenByMe = m.Sender.IsMe || (meID != "" && m.IsSeenBy(meID))
		messages[i] = m
	}

	conversation.Messages = messages
	return conversation
}

func (t *MessageStatusTracker) resolve(ctx context.Context, user domain.User, meID string) domain.User {
	if user.ID == "" {
		return user
	}
	if found, err := t.users.FindByID(ctx, user.ID); err == nil && found != nil {
		return *found
	}
	// 目錄裡沒有，使用內嵌的副本
	user.IsMe = meID != "" && user.ID == meID
	return user
}
