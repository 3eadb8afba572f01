package domain

import (
	"sort"
	"time"
)

// ConversationType definition conversation type
type ConversationType string

const (
	// ConversationTypeSingle 1對1
	ConversationTypeSingle ConversationType = "SINGLE"
	// ConversationTypeGroup 群組
	ConversationTypeGroup ConversationType = "GROUP"
)

// Conversation 聊天室
type Conversation struct {
	// ID 0 表示尚未在遠端建立
	ID           int64            `json:"id"`
	Title        string           `json:"title"`
	Type         ConversationType `json:"type"`
	Creator      User             `json:"creator"`
	Participants []User           `json:"participants"`
	Messages     []Message        `json:"messages"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// LatestMessageAt createdAt of the newest message, zero when there is none
func (c Conversation) LatestMessageAt() time.Time {
	var latest time.Time
	for _, m := range c.Messages {
		if m.CreatedAt.After(latest) {
			latest = m.CreatedAt
		}
	}
	return latest
}

// HasParticipant check user id in participants
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// Clone deep copy slices so callers can not mutate cached state
func (c Conversation) Clone() Conversation {
	c.Participants = append([]User(nil), c.Participants...)
	messages := make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		m.SeenBy = append([]string(nil), m.SeenBy...)
		m.Attachments = append([]MessageAttachment(nil), m.Attachments...)
		m.SeenUsers = append([]User(nil), m.SeenUsers...)
		messages[i] = m
	}
	c.Messages = messages
	return c
}

// SortByLatestMessage sort conversations by newest message, descending
func SortByLatestMessage(conversations []Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].LatestMessageAt().After(conversations[j].LatestMessageAt())
	})
}
