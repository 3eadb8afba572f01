package repository

import (
	"context"
	"errors"
	"sync"

	"conversation_sync_service/internal/conversation/domain"
	"conversation_sync_service/pkg"
)

// ErrUserNotFound user not in directory
var ErrUserNotFound = errors.New("user not found")

// UserDirectory definition local user directory of one member session.
// The directory knows whose session it serves, so IsMe is derived from the owner id.
type UserDirectory interface {
	FindByID(ctx context.Context, userID string) (*domain.User, error)
	FindMe(ctx context.Context) (*domain.User, error)
	// FindParticipants limit <= 0 means no limit
	FindParticipants(ctx context.Context, conversationID int64, limit int) ([]domain.User, error)
	Upsert(ctx context.Context, user domain.User) error
	UpsertParticipants(ctx context.Context, conversationID int64, users []domain.User) error
	Clear(ctx context.Context) error
}

type memoryUserDirectory struct {
	mu           sync.RWMutex
	meID         string
	users        map[string]domain.User
	participants map[int64][]string
}

// NewMemoryUserDirectory create in-process UserDirectory
func NewMemoryUserDirectory(meID string) UserDirectory {
	return &memoryUserDirectory{
		meID:         meID,
		users:        make(map[string]domain.User),
		participants: make(map[int64][]string),
	}
}

func (d *memoryUserDirectory) FindByID(_ context.Context, userID string) (*domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (d *memoryUserDirectory) FindMe(ctx context.Context) (*domain.User, error) {
	return d.FindByID(ctx, d.meID)
}

func (d *memoryUserDirectory) FindParticipants(_ context.Context, conversationID int64, limit int) ([]domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := d.participants[conversationID]
	users := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if limit > 0 && len(users) >= limit {
			break
		}
		if u, ok := d.users[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (d *memoryUserDirectory) Upsert(_ context.Context, user domain.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.upsertLocked(user)
	return nil
}

func (d *memoryUserDirectory) UpsertParticipants(_ context.Context, conversationID int64, users []domain.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ids := append([]string(nil), d.participants[conversationID]...)
	for _, u := range users {
		d.upsertLocked(u)
		if u.ID != "" {
			ids = pkg.AppendUnique(ids, u.ID)
		}
	}
	d.participants[conversationID] = ids
	return nil
}

func (d *memoryUserDirectory) Clear(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users = make(map[string]domain.User)
	d.participants = make(map[int64][]string)
	return nil
}

func (d *memoryUserDirectory) upsertLocked(user domain.User) {
	if user.ID == "" {
		return
	}
	user.IsMe = user.ID == d.meID
	d.users[user.ID] = user
}
