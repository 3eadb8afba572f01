package cache

import (
	"context"
	"sync"

	"conversation_sync_service/internal/conversation/domain"
)

// subscriber 每個訂閱者自己的無上限佇列，寫入端不會因為讀取慢而被卡住
type subscriber struct {
	mu     sync.Mutex
	queue  [][]domain.Conversation
	notify chan struct{}
}

func newSubscriber() *subscriber {
	return &subscriber{notify: make(chan struct{}, 1)}
}

func (s *subscriber) push(snapshot []domain.Conversation) {
	s.mu.Lock()
	s.queue = append(s.queue, snapshot)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) pop() ([]domain.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	snapshot := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return snapshot, true
}

// pump deliver queued snapshots to out in order until ctx is done
func (s *subscriber) pump(ctx context.Context, out chan<- []domain.Conversation) {
	for {
		snapshot, ok := s.pop()
		if !ok {
			select {
			case <-s.notify:
				continue
			case <-ctx.Done():
				return
			}
		}

		select {
		case out <- snapshot:
		case <-ctx.Done():
			return
		}
	}
}
