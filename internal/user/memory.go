// AngelaMos | 2026
// memory.go

package user

import (
	"context"
	"fmt"
	"sync"

	"github.com/carterperez-dev/templates/vip-backend/internal/core"
)

type memoryRepository struct {
	mu    sync.RWMutex
	users map[string]*User
	order []string
}

// NewMemoryRepository keeps users in process memory. It is meant for
// development and tests; nothing survives a restart.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[string]*User)}
}

func (r *memoryRepository) Create(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.Username]; exists {
		return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
	}

	r.users[user.Username] = user.Clone()
	r.order = append(r.order, user.Username)
	return nil
}

func (r *memoryRepository) GetByUsername(
	_ context.Context,
	username string,
) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[username]
	if !ok {
		return nil, fmt.Errorf("get user by username: %w", core.ErrNotFound)
	}
	return u.Clone(), nil
}

func (r *memoryRepository) Update(
	_ context.Context,
	username string,
	fn MutateFunc,
) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.users[username]
	if !ok {
		return nil, fmt.Errorf("get user by username: %w", core.ErrNotFound)
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	if !historyExtends(current.VIP.History, next.VIP.History) {
		return nil, fmt.Errorf("update user: %w", ErrHistoryRewrite)
	}

	r.users[username] = next
	return next.Clone(), nil
}

func (r *memoryRepository) List(_ context.Context) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]User, 0, len(r.order))
	for _, name := range r.order {
		users = append(users, *r.users[name].Clone())
	}
	return users, nil
}
