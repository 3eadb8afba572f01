package app

import (
	"context"
	"sync"
	"time"

	"conversation_sync_service/internal/conversation/cache"
	"conversation_sync_service/internal/conversation/domain"
	"conversation_sync_service/internal/conversation/repository"
	"conversation_sync_service/pkg/database"
	"conversation_sync_service/pkg/logger"

	"go.uber.org/zap"
)

// SessionRecord 存在 redis 的 session 紀錄
type SessionRecord struct {
	MemberID    string    `json:"member_id"`
	Connections int       `json:"connections"`
	StartedAt   time.Time `json:"started_at"`
}

// SessionDependencies remote client and user directory of one member
type SessionDependencies struct {
	Remote repository.ConversationAPI
	Users  repository.UserDirectory
}

// SessionBuilder build the per-member collaborators, store is the token source of the session
type SessionBuilder func(memberID string, store *cache.Store) (SessionDependencies, error)

// Session 單一會員的快取、使用者目錄與 use case，同會員的連線共用
type Session struct {
	MemberID string
	Store    *cache.Store
	Users    repository.UserDirectory
	UseCase  *ConversationUseCase

	refs int
	// closing 最後一個連線離開，正在清除；closed 在清除完成後關閉
	closing bool
	closed  chan struct{}
}

// SessionRegistry 依會員管理 Session，最後一個連線離開時登出
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	build   SessionBuilder
	opts    Options
	records database.RedisRepository[SessionRecord]
	ttl     time.Duration
}

// NewSessionRegistry create SessionRegistry, records may be nil
func NewSessionRegistry(build SessionBuilder, opts Options, records database.RedisRepository[SessionRecord], ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*Session),
		build:    build,
		opts:     opts,
		records:  records,
		ttl:      ttl,
	}
}

func sessionKey(memberID string) string {
	return "conversation:session:" + memberID
}

// Acquire 取得會員的 session，第一個連線時建立並啟動 stream
//
// A session still being torn down by Release is waited for, so a quick reconnect never shares
// the owner's directory or session record with a pending teardown.
func (r *SessionRegistry) Acquire(ctx context.Context, memberID, token string) (*Session, error) {
	for {
		r.mu.Lock()
		s, ok := r.sessions[memberID]
		if !ok || !s.closing {
			break
		}
		closed := s.closed
		r.mu.Unlock()

		select {
		case <-closed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	defer r.mu.Unlock()

	if s, ok := r.sessions[memberID]; ok {
		s.refs++
		if token != "" {
			s.Store.SaveToken(token)
		}
		r.ensureStream(s)
		r.saveRecord(ctx, s)
		return s, nil
	}

	store := cache.NewStore()
	store.SaveToken(token)

	deps, err := r.build(memberID, store)
	if err != nil {
		return nil, err
	}

	// 登入者一定要在目錄中，遠端資料才會寫入快取
	if _, err := deps.Users.FindMe(ctx); err != nil {
		if err := deps.Users.Upsert(ctx, domain.User{ID: memberID, IsMe: true}); err != nil {
			return nil, err
		}
	}

	s := &Session{
		MemberID: memberID,
		Store:    store,
		Users:    deps.Users,
		UseCase:  NewConversationUseCase(deps.Remote, deps.Users, store, r.opts),
		refs:     1,
		closed:   make(chan struct{}),
	}
	s.UseCase.StreamConversations()
	r.sessions[memberID] = s
	r.saveRecord(ctx, s)

	logger.Log.Info("session started", zap.String("memberID", memberID))
	return s, nil
}

// Release 連線結束，最後一個連線時銷毀 use case 並清空快取
//
// The session stays in the map as closing until the teardown is done.
func (r *SessionRegistry) Release(ctx context.Context, memberID string) {
	r.mu.Lock()
	s, ok := r.sessions[memberID]
	if !ok || s.closing {
		r.mu.Unlock()
		return
	}
	s.refs--
	if s.refs > 0 {
		r.saveRecord(ctx, s)
		r.mu.Unlock()
		return
	}
	s.closing = true
	r.mu.Unlock()

	s.UseCase.OnDestroy()
	s.Store.Clear()
	if err := s.Users.Clear(ctx); err != nil {
		logger.Log.Warn("clear user directory failed", zap.String("memberID", memberID), zap.Error(err))
	}
	if r.records != nil {
		if err := r.records.Del(ctx, sessionKey(memberID)); err != nil {
			logger.Log.Warn("delete session record failed", zap.String("memberID", memberID), zap.Error(err))
		}
	}

	r.mu.Lock()
	if r.sessions[memberID] == s {
		delete(r.sessions, memberID)
	}
	close(s.closed)
	r.mu.Unlock()
	logger.Log.Info("session ended", zap.String("memberID", memberID))
}

// Touch 延長 session 紀錄的 TTL，stream 已停止時重新啟動
func (r *SessionRegistry) Touch(ctx context.Context, memberID string) {
	r.mu.Lock()
	if s, ok := r.sessions[memberID]; ok && !s.closing {
		r.ensureStream(s)
	}
	r.mu.Unlock()

	if r.records == nil {
		return
	}
	if err := r.records.ExtendTTL(ctx, sessionKey(memberID), r.ttl); err != nil {
		logger.Log.Warn("extend session ttl failed", zap.String("memberID", memberID), zap.Error(err))
	}
}

// Shutdown release every session
func (r *SessionRegistry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id, s := range r.sessions {
		if s.closing {
			continue
		}
		s.refs = 1
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Release(ctx, id)
	}
}

// ensureStream 上游 stream 失敗後不會自己重試，在下一次連線或 ping 時重啟
func (r *SessionRegistry) ensureStream(s *Session) {
	if s.UseCase.StreamActive() {
		return
	}
	logger.Log.Info("restart conversation stream", zap.String("memberID", s.MemberID))
	s.UseCase.StreamConversations()
}

func (r *SessionRegistry) saveRecord(ctx context.Context, s *Session) {
	if r.records == nil {
		return
	}

	record := SessionRecord{MemberID: s.MemberID, Connections: s.refs, StartedAt: time.Now()}
	if old, err := r.records.Get(ctx, sessionKey(s.MemberID)); err == nil {
		record.StartedAt = old.StartedAt
	}
	if err := r.records.Set(ctx, sessionKey(s.MemberID), record, r.ttl); err != nil {
		logger.Log.Warn("save session record failed", zap.String("memberID", s.MemberID), zap.Error(err))
	}
}
