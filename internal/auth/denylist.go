// AngelaMos | 2026
// denylist.go

package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist records revoked token IDs until the tokens expire.
type Denylist interface {
	Revoke(ctx context.Context, token RevokedToken) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

const denylistPrefix = "denylist:"

type RedisDenylist struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisDenylist(client *redis.Client) *RedisDenylist {
	return &RedisDenylist{client: client, now: time.Now}
}

func (d *RedisDenylist) Revoke(ctx context.Context, token RevokedToken) error {
	ttl := token.ExpiresAt.Sub(d.now())
	if ttl <= 0 {
		return nil
	}

	key := denylistPrefix + token.JTI
	if err := d.client.Set(ctx, key, token.UserID, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	return nil
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	exists, err := d.client.Exists(ctx, denylistPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check denylist: %w", err)
	}

	return exists > 0, nil
}

type MemoryDenylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryDenylist(now func() time.Time) *MemoryDenylist {
	if now == nil {
		now = time.Now
	}
	return &MemoryDenylist{
		entries: make(map[string]time.Time),
		now:     now,
	}
}

func (d *MemoryDenylist) Revoke(_ context.Context, token RevokedToken) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for jti, until := range d.entries {
		if !now.Before(until) {
			delete(d.entries, jti)
		}
	}

	if token.IsExpired(now) {
		return nil
	}
	d.entries[token.JTI] = token.ExpiresAt
	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	until, ok := d.entries[jti]
	return ok && d.now().Before(until), nil
}
