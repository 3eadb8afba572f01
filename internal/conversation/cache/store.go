package cache

import (
	"context"
	"sync"

	"conversation_sync_service/internal/conversation/domain"
	"conversation_sync_service/pkg/logger"

	"go.uber.org/zap"
)

// Store 單一會員的聊天室快取
//
// Every mutation runs under mu together with the enqueue of the resulting snapshot to every
// subscriber, so subscribers observe whole merges in mutation order and never a partial one.
type Store struct {
	mu            sync.Mutex
	conversations []domain.Conversation
	token         string

	subscribers map[int]*subscriber
	nextSubID   int
}

// NewStore create empty Store
func NewStore() *Store {
	return &Store{
		subscribers: make(map[int]*subscriber),
	}
}

// GetAll 訂閱聊天室列表，訂閱時先送出目前快照，之後每次異動送出一次，ctx 結束後關閉 channel
func (s *Store) GetAll(ctx context.Context) <-chan []domain.Conversation {
	out := make(chan []domain.Conversation)
	sub := newSubscriber()

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = sub
	sub.push(s.snapshotLocked())
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
			close(out)
		}()
		sub.pump(ctx, out)
	}()
	return out
}

// GetByID 訂閱單一聊天室，快取中沒有時不送出
func (s *Store) GetByID(ctx context.Context, id int64) <-chan domain.Conversation {
	out := make(chan domain.Conversation)
	snapshots := s.GetAll(ctx)

	go func() {
		defer close(out)
		for snapshot := range snapshots {
			c, ok := find(snapshot, id)
			if !ok {
				continue
			}
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Snapshot 目前的聊天室列表 (insertion order)
func (s *Store) Snapshot() []domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Find 目前快取中的聊天室
func (s *Store) Find(id int64) (domain.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := find(s.conversations, id)
	if !ok {
		return domain.Conversation{}, false
	}
	return c.Clone(), true
}

// FindSingleWithParticipant find the 1對1 conversation with userID.
//
// A SINGLE conversation holding a non-self participant with that id wins. Otherwise the first
// conversation whose participants are all that id is returned, which covers self conversations.
func (s *Store) FindSingleWithParticipant(userID string) *domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conversations {
		if c.Type != domain.ConversationTypeSingle {
			continue
		}
		for _, p := range c.Participants {
			if !p.IsMe && p.ID == userID {
				found := c.Clone()
				return &found
			}
		}
	}

	for _, c := range s.conversations {
		if len(c.Participants) == 0 {
			continue
		}
		all := true
		for _, p := range c.Participants {
			if p.ID != userID {
				all = false
				break
			}
		}
		if all {
			found := c.Clone()
			return &found
		}
	}
	return nil
}

// UpsertMessages merge messages into the conversation, no-op when the conversation is absent
func (s *Store) UpsertMessages(conversationID int64, messages []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(conversationID)
	if idx < 0 {
		logger.Log.Debug("upsert messages skipped, conversation not cached", zap.Int64("conversationID", conversationID))
		return
	}
	s.conversations[idx].Messages = domain.MergeMessages(s.conversations[idx].Messages, messages)
	s.publishLocked()
}

// Upsert merge-insert a conversation, emit exactly once
func (s *Store) Upsert(conversation domain.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	incoming := conversation.Clone()
	if idx := s.indexLocked(incoming.ID); idx >= 0 {
		s.conversations[idx] = domain.Merge(s.conversations[idx], incoming)
	} else {
		// 新聊天室也要去重與排序
		incoming.Participants = domain.UniqueUsers(incoming.Participants)
		incoming.Messages = domain.MergeMessages(nil, incoming.Messages)
		s.conversations = append(s.conversations, incoming)
	}
	s.publishLocked()
}

// Clear 登出時清空快取與 token
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = nil
	s.token = ""
	s.publishLocked()
}

// SaveToken save session token
func (s *Store) SaveToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Token get session token
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Store) indexLocked(id int64) int {
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() []domain.Conversation {
	snapshot := make([]domain.Conversation, len(s.conversations))
	for i, c := range s.conversations {
		snapshot[i] = c.Clone()
	}
	return snapshot
}

func (s *Store) publishLocked() {
	for _, sub := range s.subscribers {
		sub.push(s.snapshotLocked())
	}
}

func find(conversations []domain.Conversation, id int64) (domain.Conversation, bool) {
	for _, c := range conversations {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Conversation{}, false
}
