// AngelaMos | 2026
// timeout.go

package user

import (
	"context"
	"fmt"
	"time"

	"github.com/carterperez-dev/templates/vip-backend/internal/core"
)

type timeoutRepository struct {
	next    Repository
	timeout time.Duration
}

// WithTimeout bounds every call on repo by d. A call that runs out of time
// or loses its connection fails with core.ErrUnavailable.
func WithTimeout(repo Repository, d time.Duration) Repository {
	return &timeoutRepository{next: repo, timeout: d}
}

func (r *timeoutRepository) Create(ctx context.Context, user *User) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return unavailable("create user", r.next.Create(ctx, user))
}

func (r *timeoutRepository) GetByUsername(
	ctx context.Context,
	username string,
) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	u, err := r.next.GetByUsername(ctx, username)
	return u, unavailable("get user", err)
}

func (r *timeoutRepository) Update(
	ctx context.Context,
	username string,
	fn MutateFunc,
) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	u, err := r.next.Update(ctx, username, fn)
	return u, unavailable("update user", err)
}

func (r *timeoutRepository) List(ctx context.Context) ([]User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	users, err := r.next.List(ctx)
	return users, unavailable("list users", err)
}

func unavailable(op string, err error) error {
	if err == nil || !core.IsUnavailable(err) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, core.ErrUnavailable, err)
}
