// AngelaMos | 2026
// entity.go

package user

import (
	"slices"
	"time"
)

const ActionGrant = "grant"

type User struct {
	ID             string      `db:"id"`
	Username       string      `db:"username"`
	PasswordDigest string      `db:"password_digest"`
	VIP            Entitlement `db:"-"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

// Entitlement is the VIP membership state. Active is the flag set by the
// most recent grant; it does not look at the clock. Use IsLive for that.
type Entitlement struct {
	Active    bool
	StartTime *time.Time
	EndTime   *time.Time
	History   []GrantRecord
}

// GrantRecord is one immutable entry of the entitlement ledger.
type GrantRecord struct {
	Action    string    `db:"action"`
	Timestamp time.Time `db:"granted_at"`
	EndTime   time.Time `db:"end_time"`
}

func (e Entitlement) NeverGranted() bool {
	return e.StartTime == nil
}

// IsLive reports whether the entitlement is granted and not yet past its
// end time at now.
func (e Entitlement) IsLive(now time.Time) bool {
	return e.Active && e.EndTime != nil && now.Before(*e.EndTime)
}

// Clone returns a deep copy so callers can mutate without aliasing the
// stored history slice.
func (u *User) Clone() *User {
	c := *u
	c.VIP.History = slices.Clone(u.VIP.History)
	if u.VIP.StartTime != nil {
		t := *u.VIP.StartTime
		c.VIP.StartTime = &t
	}
	if u.VIP.EndTime != nil {
		t := *u.VIP.EndTime
		c.VIP.EndTime = &t
	}
	return &c
}

// historyExtends reports whether next keeps every entry of prev, in order
// and unchanged, as its prefix.
func historyExtends(prev, next []GrantRecord) bool {
	if len(next) < len(prev) {
		return false
	}
	for i := range prev {
		if prev[i].Action != next[i].Action ||
			!prev[i].Timestamp.Equal(next[i].Timestamp) ||
			!prev[i].EndTime.Equal(next[i].EndTime) {
			return false
		}
	}
	return true
}
