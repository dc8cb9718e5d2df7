// AngelaMos | 2026
// manager.go

package membership

import (
	"context"
	"fmt"
	"time"

	"github.com/carterperez-dev/templates/vip-backend/internal/core"
	"github.com/carterperez-dev/templates/vip-backend/internal/user"
)

// Status is a point-in-time view of a user's entitlement. Active is the
// stored flag; Live also checks the end time against the clock.
type Status struct {
	Username  string
	Active    bool
	Live      bool
	StartTime *time.Time
	EndTime   *time.Time
	History   []user.GrantRecord
}

type Manager struct {
	repo          user.Repository
	now           func() time.Time
	grantDuration time.Duration
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func WithGrantDuration(d time.Duration) Option {
	return func(m *Manager) {
		m.grantDuration = d
	}
}

const DefaultGrantDuration = 30 * 24 * time.Hour

func NewManager(repo user.Repository, opts ...Option) *Manager {
	m := &Manager{
		repo:          repo,
		now:           time.Now,
		grantDuration: DefaultGrantDuration,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) GrantDuration() time.Duration {
	return m.grantDuration
}

func (m *Manager) Now() time.Time {
	return m.now().UTC().Truncate(time.Microsecond)
}

// Grant activates the entitlement for duration starting now. A re-grant
// resets the window instead of extending it, and every grant appends one
// ledger record.
func (m *Manager) Grant(
	ctx context.Context,
	username string,
	duration time.Duration,
) (*user.Entitlement, error) {
	if duration <= 0 {
		return nil, fmt.Errorf(
			"grant: %w: duration must be positive",
			core.ErrInvalidInput,
		)
	}

	now := m.Now()
	end := now.Add(duration)

	updated, err := m.repo.Update(ctx, username, func(u *user.User) error {
		start := now
		until := end
		u.VIP.Active = true
		u.VIP.StartTime = &start
		u.VIP.EndTime = &until
		u.VIP.History = append(u.VIP.History, user.GrantRecord{
			Action:    user.ActionGrant,
			Timestamp: now,
			EndTime:   end,
		})
		u.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("grant: %w", err)
	}

	return &updated.VIP, nil
}

func (m *Manager) QueryStatus(
	ctx context.Context,
	username string,
) (*Status, error) {
	u, err := m.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("query status: %w", err)
	}

	return &Status{
		Username:  u.Username,
		Active:    u.VIP.Active,
		Live:      IsCurrentlyEntitled(u.VIP, m.Now()),
		StartTime: u.VIP.StartTime,
		EndTime:   u.VIP.EndTime,
		History:   u.VIP.History,
	}, nil
}

func IsCurrentlyEntitled(e user.Entitlement, now time.Time) bool {
	return e.IsLive(now)
}

// Counts summarises entitlement state across all users.
type Counts struct {
	Users        int `json:"users"`
	ActiveFlag   int `json:"vip_active"`
	Live         int `json:"vip_live"`
	NeverGranted int `json:"never_granted"`
}

func (m *Manager) Counts(ctx context.Context) (*Counts, error) {
	users, err := m.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("membership counts: %w", err)
	}

	now := m.Now()
	c := &Counts{Users: len(users)}
	for _, u := range users {
		if u.VIP.Active {
			c.ActiveFlag++
		}
		if IsCurrentlyEntitled(u.VIP, now) {
			c.Live++
		}
		if u.VIP.NeverGranted() {
			c.NeverGranted++
		}
	}
	return c, nil
}
