package app

import "errors"

var (
	// ErrNoCurrentUser 目錄中沒有登入者
	ErrNoCurrentUser = errors.New("current user not found")
	// ErrCreateConversation 建立聊天室失敗
	ErrCreateConversation = errors.New("create conversation failed")
	// ErrSendMessage 送出訊息失敗，訊息在快取中標記為 FAILED
	ErrSendMessage = errors.New("send message failed")
	// ErrSessionClosed session 已經結束
	ErrSessionClosed = errors.New("session closed")
)
