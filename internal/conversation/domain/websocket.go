package domain

// Action websocket request action
type Action string

const (
	// SubscribeConversations websocket action subscribe_conversations
	SubscribeConversations Action = "subscribe_conversations"
	// SubscribeConversation websocket action subscribe_conversation
	SubscribeConversation Action = "subscribe_conversation"
	// Unsubscribe websocket action unsubscribe
	Unsubscribe Action = "unsubscribe"

	// SendMessage websocket action send_message
	SendMessage Action = "send_message"
	// GetMessages websocket action get_messages
	GetMessages Action = "get_messages"
	// FindConversation websocket action find_conversation
	FindConversation Action = "find_conversation"
	// ReadMessage websocket action read_message
	ReadMessage Action = "read_message"

	// ConversationsUpdated push action, conversation list snapshot
	ConversationsUpdated Action = "conversations_updated"
	// ConversationUpdated push action, single conversation snapshot
	ConversationUpdated Action = "conversation_updated"
)

// WSRequest websocket Request
type WSRequest struct {
	Action         string   `json:"action"`
	ConversationID int64    `json:"conversation_id"`
	UserID         string   `json:"user_id"`
	MessageID      int64    `json:"message_id"`
	Before         *int64   `json:"before,omitempty"`
	After          *int64   `json:"after,omitempty"`
	Message        *Message `json:"message,omitempty"`
}

// WSResponse websocket Response
type WSResponse struct {
	Action  string                 `json:"action"`
	Success bool                   `json:"success"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Error   string                 `json:"error,omitempty"`
}
