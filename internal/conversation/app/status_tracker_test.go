package app

import (
	"context"
	"testing"

	"conversation_sync_service/internal/conversation/domain"
	"conversation_sync_service/internal/conversation/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageStatusTracker(t *testing.T) {
	ctx := context.Background()
	u3 := domain.User{ID: "u3", Name: "U3"}

	users := repository.NewMemoryUserDirectory(me.ID)
	require.NoError(t, users.Upsert(ctx, me))
	require.NoError(t, users.Upsert(ctx, domain.User{ID: u2.ID, Name: "U2 renamed"}))
	tracker := NewMessageStatusTracker(users)

	participants := []domain.User{{ID: me.ID, Name: me.Name, IsMe: true}, u2}

	t.Run("已讀使用者與 IsSeenByMe", func(t *testing.T) {
		m := textMessage(1, "", "hi", u2, 0)
		m.SeenBy = []string{me.ID, u2.ID, u3.ID}
		conversation := domain.Conversation{ID: 1, Messages: []domain.Message{m}}

		got := tracker.Annotate(ctx, conversation, participants)
		require.Len(t, got.Messages, 1)

		// 不在成員中的 u3 不會出現
		assert.Len(t, got.Messages[0].SeenUsers, 2)
		assert.True(t, got.Messages[0].IsSeenByMe)
		assert.Equal(t, "U2 renamed", got.Messages[0].Sender.Name)
	})

	t.Run("自己送出的訊息視為已讀", func(t *testing.T) {
		m := textMessage(2, "", "mine", domain.User{ID: me.ID}, 0)
		got := tracker.Annotate(ctx, domain.Conversation{ID: 1, Messages: []domain.Message{m}}, participants)

		assert.True(t, got.Messages[0].Sender.IsMe)
		assert.True(t, got.Messages[0].IsSeenByMe)
		assert.Equal(t, me.Name, got.Messages[0].Sender.Name)
	})

	t.Run("未讀", func(t *testing.T) {
		m := textMessage(3, "", "unread", u2, 0)
		got := tracker.Annotate(ctx, domain.Conversation{ID: 1, Messages: []domain.Message{m}}, participants)

		assert.False(t, got.Messages[0].IsSeenByMe)
		assert.Empty(t, got.Messages[0].SeenUsers)
	})

	t.Run("目錄沒有的 sender 使用內嵌副本", func(t *testing.T) {
		m := textMessage(4, "", "hey", u3, 0)
		got := tracker.Annotate(ctx, domain.Conversation{ID: 1, Messages: []domain.Message{m}}, participants)

		assert.Equal(t, u3.Name, got.Messages[0].Sender.Name)
		assert.False(t, got.Messages[0].Sender.IsMe)
	})

	t.Run("不修改輸入", func(t *testing.T) {
		m := textMessage(5, "", "hi", u2, 0)
		m.SeenBy = []string{me.ID}
		conversation := domain.Conversation{ID: 1, Messages: []domain.Message{m}}

		_ = tracker.Annotate(ctx, conversation, participants)
		assert.Nil(t, conversation.Messages[0].SeenUsers)
		assert.False(t, conversation.Messages[0].IsSeenByMe)
	})
}
