package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var (
	userA = User{ID: "a", Name: "A", IsMe: true}
	userB = User{ID: "b", Name: "B"}
	userC = User{ID: "c", Name: "C"}
	t0    = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
)

func msg(id int64, localID string, at time.Duration) Message {
	return Message{
		ID:        id,
		LocalID:   localID,
		Message:   "hi",
		Type:      MessageTypePlaintext,
		Status:    MessageStatusSent,
		CreatedAt: t0.Add(at),
		UpdatedAt: t0.Add(at),
	}
}

func TestMerge_TitleAndParticipantUnion(t *testing.T) {
	existing := Conversation{
		ID:           1,
		Type:         ConversationTypeGroup,
		Creator:      userA,
		Participants: []User{userA, userB},
		CreatedAt:    t0,
		UpdatedAt:    t0,
	}
	incoming := Conversation{
		ID:           1,
		Title:        "Trip",
		Type:         ConversationTypeSingle,
		Creator:      userC,
		Participants: []User{userB, userC},
		Messages:     []Message{msg(5, "l5", time.Minute)},
		CreatedAt:    t0.Add(time.Hour),
		UpdatedAt:    t0.Add(2 * time.Hour),
	}

	merged := Merge(existing, incoming)

	assert.Equal(t, "Trip", merged.Title)
	assert.Equal(t, []User{userA, userB, userC}, merged.Participants)
	assert.Len(t, merged.Messages, 1)
	assert.Equal(t, int64(5), merged.Messages[0].ID)
	assert.Equal(t, t0.Add(2*time.Hour), merged.UpdatedAt)

	// 建立後不可變的欄位取 existing
	assert.Equal(t, int64(1), merged.ID)
	assert.Equal(t, ConversationTypeGroup, merged.Type)
	assert.Equal(t, userA, merged.Creator)
	assert.Equal(t, t0, merged.CreatedAt)
}

func TestMerge_KeepsExistingTitle(t *testing.T) {
	merged := Merge(Conversation{ID: 1, Title: "Old"}, Conversation{ID: 1, Title: "New"})
	assert.Equal(t, "Old", merged.Title)

	merged = Merge(Conversation{ID: 1, Title: "  "}, Conversation{ID: 1, Title: "New"})
	assert.Equal(t, "New", merged.Title)
}

func TestMerge_Idempotent(t *testing.T) {
	c := Conversation{
		ID:           7,
		Title:        "x",
		Type:         ConversationTypeGroup,
		Participants: []User{userA, userB, userC},
		Messages: []Message{
			msg(3, "l3", 3*time.Minute),
			msg(2, "l2", 2*time.Minute),
			msg(0, "pending", time.Minute),
		},
		CreatedAt: t0,
		UpdatedAt: t0.Add(time.Hour),
	}

	merged := Merge(c, c)

	assert.Equal(t, c.Participants, merged.Participants)
	assert.Equal(t, c.Messages, merged.Messages)
	assert.Equal(t, c.UpdatedAt, merged.UpdatedAt)
	assert.Equal(t, merged, Merge(merged, merged))
}

func TestMerge_UpdatedAtMonotonic(t *testing.T) {
	cases := []struct {
		name     string
		existing time.Time
		incoming time.Time
	}{
		{"incoming newer", t0, t0.Add(time.Hour)},
		{"existing newer", t0.Add(time.Hour), t0},
		{"equal", t0, t0},
		{"incoming zero", t0, time.Time{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			merged := Merge(Conversation{ID: 1, UpdatedAt: tc.existing}, Conversation{ID: 1, UpdatedAt: tc.incoming})
			assert.False(t, merged.UpdatedAt.Before(tc.existing))
			assert.False(t, merged.UpdatedAt.Before(tc.incoming))
		})
	}
}

func TestMergeMessages(t *testing.T) {
	t.Run("同 id 只保留一份", func(t *testing.T) {
		existing := []Message{msg(5, "server-a", time.Minute)}
		incoming := []Message{msg(5, "server-b", time.Minute), msg(6, "l6", 2*time.Minute)}

		merged := MergeMessages(existing, incoming)

		assert.Len(t, merged, 2)
		assert.Equal(t, int64(6), merged[0].ID)
		assert.Equal(t, int64(5), merged[1].ID)
		// 快取中的 local id 保持不變
		assert.Equal(t, "server-a", merged[1].LocalID)
	})

	t.Run("樂觀訊息被確認訊息取代", func(t *testing.T) {
		pending := msg(0, "local-1", time.Minute)
		pending.Status = MessageStatusSending
		confirmed := msg(42, "local-1", time.Minute)

		merged := MergeMessages([]Message{pending, msg(1, "l1", 0)}, []Message{confirmed})

		assert.Len(t, merged, 2)
		assert.Equal(t, int64(42), merged[0].ID)
		assert.Equal(t, MessageStatusSent, merged[0].Status)
		assert.Equal(t, "local-1", merged[0].LocalID)
	})

	t.Run("多筆待送訊息不會被 id 0 合併", func(t *testing.T) {
		a := msg(0, "local-a", time.Minute)
		b := msg(0, "local-b", 2*time.Minute)

		merged := MergeMessages([]Message{a}, []Message{b})

		assert.Len(t, merged, 2)
	})

	t.Run("伺服器回音與樂觀訊息收斂成一筆", func(t *testing.T) {
		pending := msg(0, "local-1", time.Minute)
		echo := msg(42, "random-from-server", time.Minute)
		confirmed := msg(42, "local-1", time.Minute)

		merged := MergeMessages(MergeMessages([]Message{pending}, []Message{echo}), []Message{confirmed})

		assert.Len(t, merged, 1)
		assert.Equal(t, int64(42), merged[0].ID)
		assert.Equal(t, "local-1", merged[0].LocalID)
	})

	t.Run("依 createdAt 由新到舊", func(t *testing.T) {
		merged := MergeMessages(
			[]Message{msg(1, "l1", time.Minute), msg(3, "l3", 3*time.Minute)},
			[]Message{msg(2, "l2", 2*time.Minute)},
		)
		assert.Equal(t, []int64{3, 2, 1}, []int64{merged[0].ID, merged[1].ID, merged[2].ID})
	})
}

func TestMessageStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, MessageStatusSending.CanTransitionTo(MessageStatusSent))
	assert.True(t, MessageStatusSending.CanTransitionTo(MessageStatusFailed))
	assert.True(t, MessageStatusSent.CanTransitionTo(MessageStatusViewed))
	assert.True(t, MessageStatusFailed.CanTransitionTo(MessageStatusSending))

	assert.False(t, MessageStatusFailed.CanTransitionTo(MessageStatusSent))
	assert.False(t, MessageStatusViewed.CanTransitionTo(MessageStatusSent))
	assert.False(t, MessageStatusSent.CanTransitionTo(MessageStatusFailed))
}

func TestNewMessage(t *testing.T) {
	a := NewMessage("hello", MessageTypePlaintext)
	b := NewMessage("hello", MessageTypePlaintext)

	assert.NotEmpty(t, a.LocalID)
	assert.NotEqual(t, a.LocalID, b.LocalID)
	assert.Equal(t, int64(0), a.ID)
	assert.Equal(t, MessageStatusSending, a.Status)
	assert.False(t, a.IsEmpty())
	assert.True(t, Message{}.IsEmpty())
}
