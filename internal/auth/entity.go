// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

// RevokedToken is a denylist entry. It only needs to live until the token
// it names would have expired anyway.
type RevokedToken struct {
	JTI       string    `db:"jti"`
	UserID    string    `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	RevokedAt time.Time `db:"revoked_at"`
}

func (t *RevokedToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
