package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageStatus 訊息狀態
type MessageStatus string

const (
	// MessageStatusSending 本地樂觀寫入，尚未被遠端確認
	MessageStatusSending MessageStatus = "SENDING"
	// MessageStatusSent 遠端已確認
	MessageStatusSent MessageStatus = "SENT"
	// MessageStatusViewed 已讀回條
	MessageStatusViewed MessageStatus = "VIEWED"
	// MessageStatusFailed 遠端拒絕或傳送錯誤
	MessageStatusFailed MessageStatus = "FAILED"
)

// CanTransitionTo report whether status s may move to next.
// FAILED -> SENDING is a user initiated resend with the same local id.
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	switch s {
	case MessageStatusSending:
		return next == MessageStatusSent || next == MessageStatusFailed
	case MessageStatusSent:
		return next == MessageStatusViewed
	case MessageStatusFailed:
		return next == MessageStatusSending
	}
	return false
}

// MessageType 訊息類型
type MessageType string

const (
	// MessageTypePlaintext plain text
	MessageTypePlaintext MessageType = "PLAINTEXT"
	// MessageTypeSticker sticker
	MessageTypeSticker MessageType = "STICKER"
	// MessageTypeGIF gif
	MessageTypeGIF MessageType = "GIF"
	// MessageTypePhoto photo
	MessageTypePhoto MessageType = "PHOTO"
	// MessageTypeDocument document
	MessageTypeDocument MessageType = "DOCUMENT"
	// MessageTypeUndefined undefined
	MessageTypeUndefined MessageType = "UNDEFINED"
)

// MessageAttachment 附件，核心只負責攜帶
type MessageAttachment struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	OriginalName string `json:"originalName"`
	Type         string `json:"type"`
	Size         int64  `json:"size"`
	URL          string `json:"url,omitempty"`
	LocalPath    string `json:"localPath,omitempty"`
}

// Message 聊天訊息
//
// ID is zero until the server assigns one. LocalID is generated on the client and
// survives the SENDING -> SENT transition; it is the correlation key used to
// replace an optimistic entry with its confirmed counterpart.
type Message struct {
	ID          int64               `json:"id"`
	LocalID     string              `json:"localId"`
	Sender      User                `json:"sender"`
	Message     string              `json:"message"`
	StickerURL  string              `json:"stickerUrl,omitempty"`
	Attachments []MessageAttachment `json:"attachments,omitempty"`
	Type        MessageType         `json:"type"`
	Status      MessageStatus       `json:"status"`
	SeenBy      []string            `json:"seenBy,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`

	// 讀取時計算，不保存
	SeenUsers  []User `json:"seenUsers,omitempty"`
	IsSeenByMe bool   `json:"isSeenByMe"`
}

// NewMessage create a message ready for an optimistic send
func NewMessage(text string, msgType MessageType) Message {
	now := time.Now()
	return Message{
		LocalID:   uuid.New().String(),
		Message:   text,
		Type:      msgType,
		Status:    MessageStatusSending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsEmpty no text and no attachment
func (m Message) IsEmpty() bool {
	return m.Message == "" && len(m.Attachments) == 0
}

// SameAs report whether m and other are the same logical message.
// Server ids are authoritative once both sides carry one, otherwise the local id is used.
func (m Message) SameAs(other Message) bool {
	if m.ID != 0 && other.ID != 0 {
		return m.ID == other.ID
	}
	return m.LocalID != "" && m.LocalID == other.LocalID
}

// IsSeenBy check user id in seenBy
func (m Message) IsSeenBy(userID string) bool {
	for _, id := range m.SeenBy {
		if id == userID {
			return true
		}
	}
	return false
}

// WithStatus copy of messages with the given status
func WithStatus(messages []Message, status MessageStatus) []Message {
	result := make([]Message, len(messages))
	for i, m := range messages {
		m.Status = status
		result[i] = m
	}
	return result
}
