package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"conversation_sync_service/internal/conversation/domain"
	"conversation_sync_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisConversationStream definition redis pub/sub stream, 每個會員一個 channel
type RedisConversationStream struct {
	client  *redis.Client
	channel string
}

// NewRedisConversationStream create RedisConversationStream, channel = prefix + memberID
func NewRedisConversationStream(client *redis.Client, prefix, memberID string) *RedisConversationStream {
	return &RedisConversationStream{
		client:  client,
		channel: prefix + memberID,
	}
}

// Publish 將聊天室序列化後，發布到會員的 channel
func (r *RedisConversationStream) Publish(ctx context.Context, conversation domain.Conversation) error {
	data, err := json.Marshal(conversation)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Stream 訂閱會員 channel，收到訊息後呼叫 handler，ctx 結束時回傳 nil
func (r *RedisConversationStream) Stream(ctx context.Context, handler func(domain.Conversation)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// 確認訂閱成功
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	logger.Log.Info("conversation stream subscribed", zap.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case m, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription %s closed", r.channel)
			}

			var conversation domain.Conversation
			if err := json.Unmarshal([]byte(m.Payload), &conversation); err != nil {
				logger.Log.Warn("drop undecodable stream event", zap.String("channel", r.channel), zap.Error(err))
				continue
			}
			handler(conversation)
		case <-ctx.Done():
			logger.Log.Info(fmt.Sprintf("%s , sub close", r.channel))
			return nil
		}
	}
}
