// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/vip-backend/internal/core"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

type ServiceOption func(*Service)

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo Repository, opts ...ServiceOption) *Service {
	s := &Service{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new user with a never-granted entitlement. A taken
// username surfaces as core.ErrDuplicateKey.
func (s *Service) Create(
	ctx context.Context,
	username, passwordDigest string,
) (*User, error) {
	now := s.Now().Truncate(time.Microsecond)

	user := &User{
		ID:             uuid.New().String(),
		Username:       username,
		PasswordDigest: passwordDigest,
		VIP:            Entitlement{History: []GrantRecord{}},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) GetByUsername(
	ctx context.Context,
	username string,
) (*User, error) {
	return s.repo.GetByUsername(ctx, username)
}

// ListForRequester returns every user, provided the requester still
// exists.
func (s *Service) ListForRequester(
	ctx context.Context,
	requester string,
) ([]User, error) {
	if requester == "" {
		return nil, fmt.Errorf("list users: %w", core.ErrUnauthorized)
	}

	if _, err := s.repo.GetByUsername(ctx, requester); err != nil {
		return nil, err
	}

	return s.repo.List(ctx)
}

// Now is the service clock in UTC, used to derive live entitlement for
// responses.
func (s *Service) Now() time.Time {
	return s.now().UTC()
}
