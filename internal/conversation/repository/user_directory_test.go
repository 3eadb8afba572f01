package repository

import (
	"context"
	"testing"

	"conversation_sync_service/internal/conversation/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUserDirectory(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryUserDirectory("me")

	_, err := dir.FindMe(ctx)
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, dir.Upsert(ctx, domain.User{ID: "me", Name: "Me"}))
	me, err := dir.FindMe(ctx)
	require.NoError(t, err)
	assert.True(t, me.IsMe)

	t.Run("IsMe 由 owner 決定", func(t *testing.T) {
		require.NoError(t, dir.Upsert(ctx, domain.User{ID: "u2", Name: "U2", IsMe: true}))
		u, err := dir.FindByID(ctx, "u2")
		require.NoError(t, err)
		assert.False(t, u.IsMe)
	})

	t.Run("participants 保持順序與上限", func(t *testing.T) {
		users := []domain.User{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "e"}}
		require.NoError(t, dir.UpsertParticipants(ctx, 1, users[:3]))
		require.NoError(t, dir.UpsertParticipants(ctx, 1, users[1:]))

		all, err := dir.FindParticipants(ctx, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, users, all)

		limited, err := dir.FindParticipants(ctx, 1, 4)
		require.NoError(t, err)
		assert.Len(t, limited, 4)

		none, err := dir.FindParticipants(ctx, 2, 4)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, dir.Clear(ctx))
		_, err := dir.FindByID(ctx, "u2")
		assert.ErrorIs(t, err, ErrUserNotFound)
		all, err := dir.FindParticipants(ctx, 1, 0)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}
