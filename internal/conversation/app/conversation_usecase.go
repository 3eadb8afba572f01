package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"conversation_sync_service/internal/conversation/cache"
	"conversation_sync_service/internal/conversation/domain"
	"conversation_sync_service/internal/conversation/repository"
	errprocess "conversation_sync_service/pkg/err"
	"conversation_sync_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultParticipantLimit    = 4
	defaultPreviewMessageLimit = 1
)

// Options list view limits
type Options struct {
	// ParticipantLimit 列表中每個聊天室最多顯示的成員數
	ParticipantLimit int
	// PreviewMessageLimit 列表中每個聊天室顯示的最新訊息數
	PreviewMessageLimit int
}

// ConversationUseCase 協調 UI、遠端與本地快取之間的讀寫
//
// Background work (refresh on subscribe, the stream) runs in one scope owned by the use case.
// OnDestroy cancels the scope and waits for it to drain.
type ConversationUseCase struct {
	remote  repository.ConversationAPI
	users   repository.UserDirectory
	store   *cache.Store
	tracker *MessageStatusTracker
	opts    Options

	scope     context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	destroyed bool
	wg        sync.WaitGroup
	once      sync.Once

	// streamMu 寫鎖用於重啟 stream，讀鎖用於套用事件
	streamMu     sync.RWMutex
	streamGen    uint64
	streamCancel context.CancelFunc
	streamActive bool
}

// NewConversationUseCase create ConversationUseCase
func NewConversationUseCase(remote repository.ConversationAPI, users repository.UserDirectory, store *cache.Store, opts Options) *ConversationUseCase {
	if opts.ParticipantLimit <= 0 {
		opts.ParticipantLimit = defaultParticipantLimit
	}
	if opts.PreviewMessageLimit <= 0 {
		opts.PreviewMessageLimit = defaultPreviewMessageLimit
	}

	scope, cancel := context.WithCancel(context.Background())
	return &ConversationUseCase{
		remote:  remote,
		users:   users,
		store:   store,
		tracker: NewMessageStatusTracker(users),
		opts:    opts,
		scope:   scope,
		cancel:  cancel,
	}
}

// GetConversations 聊天室列表，每次訂閱都會在背景向遠端更新一次
func (uc *ConversationUseCase) GetConversations(ctx context.Context) <-chan []domain.Conversation {
	out := make(chan []domain.Conversation)
	snapshots := uc.store.GetAll(ctx)

	uc.launch(func(scope context.Context) {
		conversations, err := uc.remote.GetConversations(scope)
		if err != nil {
			logger.Log.Warn("refresh conversations failed", zap.Error(err))
			return
		}
		for _, c := range conversations {
			uc.saveConversation(scope, c, true)
		}
	})

	go func() {
		defer close(out)
		for snapshot := range snapshots {
			view := uc.listView(ctx, snapshot)
			select {
			case out <- view:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// GetConversation 單一聊天室，訂閱時在背景向遠端更新
func (uc *ConversationUseCase) GetConversation(ctx context.Context, conversationID int64) <-chan domain.Conversation {
	out := make(chan domain.Conversation)
	updates := uc.store.GetByID(ctx, conversationID)

	uc.launch(func(scope context.Context) {
		conversation, err := uc.remote.GetConversation(scope, conversationID)
		if err != nil {
			logger.Log.Warn("refresh conversation failed", zap.Int64("conversationID", conversationID), zap.Error(err))
			return
		}
		uc.saveConversation(scope, conversation, true)
	})

	go func() {
		defer close(out)
		for conversation := range updates {
			view := uc.detailView(ctx, conversation)
			select {
			case out <- view:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// SendConversationMessage 樂觀寫入後送出，回傳使用的 conversation id
//
// conversationID 0 creates a SINGLE conversation with userID first. On a send failure the
// message stays in the cache with status FAILED and the conversation id is still returned.
func (uc *ConversationUseCase) SendConversationMessage(ctx context.Context, conversationID int64, userID string, message domain.Message) (int64, error) {
	if uc.isDestroyed() {
		return 0, ErrSessionClosed
	}

	me, err := uc.users.FindMe(ctx)
	if err != nil || me == nil {
		return 0, ErrNoCurrentUser
	}

	sentConversationID := conversationID
	if sentConversationID == 0 {
		created, err := uc.remote.CreateConversation(ctx, "", domain.ConversationTypeSingle, []string{userID})
		if err != nil {
			logger.Log.Error("create conversation failed", zap.String("userID", userID), zap.Error(err))
			return 0, fmt.Errorf("%w: %w", ErrCreateConversation, err)
		}
		if created.ID == 0 {
			return 0, fmt.Errorf("%w: remote returned no id", ErrCreateConversation)
		}
		uc.saveConversation(ctx, created, true)
		sentConversationID = created.ID
	} else {
		uc.ensureCached(ctx, sentConversationID)
	}

	sending := message
	sending.Sender = *me
	sending.Status = domain.MessageStatusSending
	if sending.LocalID == "" {
		sending.LocalID = uuid.New().String()
	}
	if sending.CreatedAt.IsZero() {
		sending.CreatedAt = time.Now()
		sending.UpdatedAt = sending.CreatedAt
	}
	uc.store.UpsertMessages(sentConversationID, []domain.Message{sending})

	sent, err := uc.remote.SendMessage(ctx, sentConversationID, sending)
	if err != nil {
		failed := sending
		failed.Status = domain.MessageStatusFailed
		uc.store.UpsertMessages(sentConversationID, []domain.Message{failed})

		logger.Log.Error("send message failed",
			zap.Int64("conversationID", sentConversationID),
			zap.String("localID", sending.LocalID),
			zap.Error(err))
		return sentConversationID, fmt.Errorf("%w: %w", ErrSendMessage, err)
	}

	sent.LocalID = sending.LocalID
	sent.Status = domain.MessageStatusSent
	if sent.Sender.ID == "" {
		sent.Sender = sending.Sender
	}
	if sent.CreatedAt.IsZero() {
		sent.CreatedAt = sending.CreatedAt
	}
	uc.store.UpsertMessages(sentConversationID, []domain.Message{sent})
	return sentConversationID, nil
}

// StreamConversations 啟動遠端 stream，重新呼叫會取消前一個
func (uc *ConversationUseCase) StreamConversations() {
	uc.streamMu.Lock()
	if uc.streamCancel != nil {
		uc.streamCancel()
	}
	uc.streamGen++
	gen := uc.streamGen
	ctx, cancel := context.WithCancel(uc.scope)
	uc.streamCancel = cancel
	uc.streamActive = true
	uc.streamMu.Unlock()

	started := uc.launch(func(context.Context) {
		defer cancel()
		defer uc.streamEnded(gen)
		logger.Log.Info("conversation stream started", zap.Uint64("generation", gen))
		err := uc.remote.StreamConversations(ctx, func(conversation domain.Conversation) {
			uc.applyStreamEvent(ctx, gen, conversation)
		})
		if err != nil && ctx.Err() == nil {
			logger.Log.Error("conversation stream stopped", zap.Uint64("generation", gen), zap.Error(err))
			return
		}
		logger.Log.Info("conversation stream ended", zap.Uint64("generation", gen))
	})
	if !started {
		cancel()
		uc.streamEnded(gen)
	}
}

// StreamActive report whether the current stream is still running
func (uc *ConversationUseCase) StreamActive() bool {
	uc.streamMu.RLock()
	defer uc.streamMu.RUnlock()
	return uc.streamActive
}

func (uc *ConversationUseCase) streamEnded(gen uint64) {
	uc.streamMu.Lock()
	defer uc.streamMu.Unlock()
	if uc.streamGen == gen {
		uc.streamActive = false
	}
}

// applyStreamEvent 只套用目前這一代 stream 的事件
func (uc *ConversationUseCase) applyStreamEvent(ctx context.Context, gen uint64, conversation domain.Conversation) {
	uc.streamMu.RLock()
	defer uc.streamMu.RUnlock()

	if gen != uc.streamGen || ctx.Err() != nil {
		logger.Log.Debug("drop event of cancelled stream", zap.Uint64("generation", gen), zap.Int64("conversationID", conversation.ID))
		return
	}
	uc.saveConversation(ctx, conversation, conversation.Type == domain.ConversationTypeSingle)
}

// GetConversationMessages 分頁取得訊息，失敗時回傳空列表
func (uc *ConversationUseCase) GetConversationMessages(ctx context.Context, conversationID int64, before, after *int64) []domain.Message {
	messages, err := uc.remote.GetMessages(ctx, conversationID, before, after)
	if err != nil {
		logger.Log.Warn("get conversation messages failed", zap.Int64("conversationID", conversationID), zap.Error(err))
		return []domain.Message{}
	}

	messages = domain.WithStatus(messages, domain.MessageStatusSent)
	uc.store.UpsertMessages(conversationID, messages)
	return messages
}

// FindConversationWithUser 找與 userID 的 1對1 聊天室
func (uc *ConversationUseCase) FindConversationWithUser(userID string) *domain.Conversation {
	return uc.store.FindSingleWithParticipant(userID)
}

// UpsertConversationMessages write messages into the cached conversation
func (uc *ConversationUseCase) UpsertConversationMessages(conversationID int64, messages []domain.Message) {
	uc.store.UpsertMessages(conversationID, messages)
}

// UpdateMessageStatus 通知遠端訊息已讀，本地等 stream 帶回已讀回條
func (uc *ConversationUseCase) UpdateMessageStatus(ctx context.Context, conversationID, messageID int64) error {
	err := uc.remote.UpdateMessageStatus(ctx, conversationID, messageID)
	return errprocess.Wrap(fmt.Sprintf("update message %d status", messageID), err)
}

// OnDestroy cancel the stream and background work, wait until they are done
func (uc *ConversationUseCase) OnDestroy() {
	uc.once.Do(func() {
		uc.mu.Lock()
		uc.destroyed = true
		uc.mu.Unlock()

		uc.streamMu.Lock()
		if uc.streamCancel != nil {
			uc.streamCancel()
		}
		uc.streamGen++
		uc.streamActive = false
		uc.streamMu.Unlock()

		uc.cancel()
		uc.wg.Wait()
		logger.Log.Info("conversation use case destroyed")
	})
}

func (uc *ConversationUseCase) isDestroyed() bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.destroyed
}

// launch run fn in the background scope, false once destroyed
func (uc *ConversationUseCase) launch(fn func(ctx context.Context)) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.destroyed {
		return false
	}

	uc.wg.Add(1)
	go func() {
		defer uc.wg.Done()
		fn(uc.scope)
	}()
	return true
}

// ensureCached 送出前確保聊天室在快取中，否則樂觀訊息無處可寫
func (uc *ConversationUseCase) ensureCached(ctx context.Context, conversationID int64) {
	if _, ok := uc.store.Find(conversationID); ok {
		return
	}
	conversation, err := uc.remote.GetConversation(ctx, conversationID)
	if err != nil {
		logger.Log.Warn("fetch conversation before send failed", zap.Int64("conversationID", conversationID), zap.Error(err))
		return
	}
	uc.saveConversation(ctx, conversation, true)
}

// saveConversation 遠端資料寫入使用者目錄與快取
func (uc *ConversationUseCase) saveConversation(ctx context.Context, conversation domain.Conversation, saveParticipants bool) {
	if _, err := uc.users.FindMe(ctx); err != nil {
		logger.Log.Warn("skip conversation, current user unknown", zap.Int64("conversationID", conversation.ID), zap.Error(err))
		return
	}

	if err := uc.users.Upsert(ctx, conversation.Creator); err != nil {
		logger.Log.Warn("save creator failed", zap.Error(err))
	}
	if saveParticipants {
		if err := uc.users.UpsertParticipants(ctx, conversation.ID, conversation.Participants); err != nil {
			logger.Log.Warn("save participants failed", zap.Int64("conversationID", conversation.ID), zap.Error(err))
		}
	}
	senders := make([]domain.User, 0, len(conversation.Messages))
	for _, m := range conversation.Messages {
		senders = append(senders, m.Sender)
	}
	for _, sender := range domain.UniqueUsers(senders) {
		if err := uc.users.Upsert(ctx, sender); err != nil {
			logger.Log.Warn("save sender failed", zap.String("userID", sender.ID), zap.Error(err))
		}
	}

	conversation.Messages = domain.WithStatus(conversation.Messages, domain.MessageStatusSent)
	uc.store.Upsert(conversation)
}

// listView 列表：過濾沒有訊息的聊天室，依最新訊息排序，限制成員與訊息數
func (uc *ConversationUseCase) listView(ctx context.Context, snapshot []domain.Conversation) []domain.Conversation {
	view := make([]domain.Conversation, 0, len(snapshot))
	for _, c := range snapshot {
		if len(c.Messages) == 0 {
			continue
		}

		full := uc.participants(ctx, c, 0)
		c.Creator = uc.resolveUser(ctx, c.Creator)
		if len(c.Messages) > uc.opts.PreviewMessageLimit {
			c.Messages = c.Messages[:uc.opts.PreviewMessageLimit]
		}
		c = uc.tracker.Annotate(ctx, c, full)
		c.Participants = limitUsers(full, uc.opts.ParticipantLimit)
		view = append(view, c)
	}
	domain.SortByLatestMessage(view)
	return view
}

// detailView 單一聊天室：丟掉沒有文字也沒有附件的訊息
func (uc *ConversationUseCase) detailView(ctx context.Context, conversation domain.Conversation) domain.Conversation {
	messages := make([]domain.Message, 0, len(conversation.Messages))
	for _, m := range conversation.Messages {
		if m.IsEmpty() {
			continue
		}
		messages = append(messages, m)
	}
	conversation.Messages = messages
	conversation.Creator = uc.resolveUser(ctx, conversation.Creator)
	conversation.Participants = uc.participants(ctx, conversation, 0)
	return uc.tracker.Annotate(ctx, conversation, conversation.Participants)
}

// participants 以目錄為準，目錄沒有時使用快取中的副本
func (uc *ConversationUseCase) participants(ctx context.Context, conversation domain.Conversation, limit int) []domain.User {
	users, err := uc.users.FindParticipants(ctx, conversation.ID, limit)
	if err == nil && len(users) > 0 {
		return users
	}
	if err != nil {
		logger.Log.Debug("find participants failed", zap.Int64("conversationID", conversation.ID), zap.Error(err))
	}

	resolved := make([]domain.User, 0, len(conversation.Participants))
	for _, p := range limitUsers(conversation.Participants, limit) {
		resolved = append(resolved, uc.resolveUser(ctx, p))
	}
	return resolved
}

func (uc *ConversationUseCase) resolveUser(ctx context.Context, user domain.User) domain.User {
	if user.ID == "" {
		return user
	}
	if found, err := uc.users.FindByID(ctx, user.ID); err == nil && found != nil {
		return *found
	}
	return user
}

func limitUsers(users []domain.User, limit int) []domain.User {
	if limit <= 0 || len(users) <= limit {
		return users
	}
	return users[:limit]
}
