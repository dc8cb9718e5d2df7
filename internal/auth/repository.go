// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLDenylist keeps revoked token IDs in the revoked_tokens table. It is
// used when no Redis is configured.
type SQLDenylist struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewSQLDenylist(db *sqlx.DB) *SQLDenylist {
	return &SQLDenylist{db: db, now: time.Now}
}

func (r *SQLDenylist) Revoke(ctx context.Context, token RevokedToken) error {
	if token.IsExpired(r.now()) {
		return nil
	}

	query := r.db.Rebind(`
		INSERT INTO revoked_tokens (jti, user_id, expires_at, revoked_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (jti) DO NOTHING`)

	_, err := r.db.ExecContext(ctx, query,
		token.JTI,
		token.UserID,
		token.ExpiresAt.UTC(),
		token.RevokedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	return nil
}

func (r *SQLDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	query := r.db.Rebind(`
		SELECT COUNT(*) FROM revoked_tokens
		WHERE jti = ? AND expires_at > ?`)

	var count int
	if err := r.db.GetContext(ctx, &count, query, jti, r.now().UTC()); err != nil {
		return false, fmt.Errorf("check denylist: %w", err)
	}

	return count > 0, nil
}

// DeleteExpired removes entries whose tokens can no longer be presented.
func (r *SQLDenylist) DeleteExpired(ctx context.Context) (int64, error) {
	query := r.db.Rebind(`DELETE FROM revoked_tokens WHERE expires_at <= ?`)

	result, err := r.db.ExecContext(ctx, query, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired revocations: %w", err)
	}

	return result.RowsAffected()
}

// RunCleanup calls DeleteExpired every interval until ctx is done.
func (r *SQLDenylist) RunCleanup(
	ctx context.Context,
	interval time.Duration,
	onError func(error),
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.DeleteExpired(ctx); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
