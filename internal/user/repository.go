// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/carterperez-dev/templates/vip-backend/internal/core"
)

// ErrHistoryRewrite is returned when an update would drop or alter an
// existing grant record.
var ErrHistoryRewrite = errors.New("grant history is append-only")

// MutateFunc edits a private copy of the user inside Update.
type MutateFunc func(u *User) error

// Repository persists users by username. Create must be an atomic
// insert-or-fail: a second Create for the same username returns
// core.ErrDuplicateKey. Update applies fn and persists the result as one
// atomic unit per user.
type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByUsername(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, username string, fn MutateFunc) (*User, error)
	List(ctx context.Context) ([]User, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

type userRow struct {
	User
	VIPActive    bool       `db:"vip_active"`
	VIPStartTime *time.Time `db:"vip_start_time"`
	VIPEndTime   *time.Time `db:"vip_end_time"`
}

type grantRow struct {
	UserID string `db:"user_id"`
	Seq    int    `db:"seq"`
	GrantRecord
}

func (r userRow) toUser() *User {
	u := r.User
	u.VIP = Entitlement{
		Active:    r.VIPActive,
		StartTime: r.VIPStartTime,
		EndTime:   r.VIPEndTime,
	}
	return &u
}

const selectUserColumns = `
	SELECT id, username, password_digest, vip_active, vip_start_time,
	       vip_end_time, created_at, updated_at
	FROM users`

func (r *repository) Create(ctx context.Context, user *User) error {
	query := r.db.Rebind(`
		INSERT INTO users (
			id, username, password_digest, vip_active, vip_start_time,
			vip_end_time, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.PasswordDigest,
		user.VIP.Active,
		user.VIP.StartTime,
		user.VIP.EndTime,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *repository) GetByUsername(
	ctx context.Context,
	username string,
) (*User, error) {
	return r.getByUsername(ctx, r.db, username, false)
}

func (r *repository) getByUsername(
	ctx context.Context,
	q sqlx.ExtContext,
	username string,
	forUpdate bool,
) (*User, error) {
	query := selectUserColumns + ` WHERE username = ?`
	if forUpdate && r.db.DriverName() == "pgx" {
		query += ` FOR UPDATE`
	}

	var row userRow
	err := sqlx.GetContext(ctx, q, &row, r.db.Rebind(query), username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user by username: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}

	u := row.toUser()

	var grants []grantRow
	historyQuery := r.db.Rebind(`
		SELECT user_id, seq, action, granted_at, end_time
		FROM vip_grants
		WHERE user_id = ?
		ORDER BY seq ASC`)
	if err := sqlx.SelectContext(ctx, q, &grants, historyQuery, u.ID); err != nil {
		return nil, fmt.Errorf("get grant history: %w", err)
	}

	u.VIP.History = make([]GrantRecord, 0, len(grants))
	for _, g := range grants {
		u.VIP.History = append(u.VIP.History, g.GrantRecord)
	}

	return u, nil
}

func (r *repository) Update(
	ctx context.Context,
	username string,
	fn MutateFunc,
) (*User, error) {
	var updated *User

	err := core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		current, err := r.getByUsername(ctx, tx, username, true)
		if err != nil {
			return err
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			return err
		}

		if !historyExtends(current.VIP.History, next.VIP.History) {
			return fmt.Errorf("update user: %w", ErrHistoryRewrite)
		}

		query := r.db.Rebind(`
			UPDATE users
			SET vip_active = ?, vip_start_time = ?, vip_end_time = ?,
			    updated_at = ?
			WHERE id = ?`)
		if _, err := tx.ExecContext(ctx, query,
			next.VIP.Active,
			next.VIP.StartTime,
			next.VIP.EndTime,
			next.UpdatedAt,
			current.ID,
		); err != nil {
			return fmt.Errorf("update user: %w", err)
		}

		insert := r.db.Rebind(`
			INSERT INTO vip_grants (user_id, seq, action, granted_at, end_time)
			VALUES (?, ?, ?, ?, ?)`)
		for seq := len(current.VIP.History); seq < len(next.VIP.History); seq++ {
			g := next.VIP.History[seq]
			if _, err := tx.ExecContext(ctx, insert,
				current.ID,
				seq,
				g.Action,
				g.Timestamp,
				g.EndTime,
			); err != nil {
				return fmt.Errorf("append grant record: %w", err)
			}
		}

		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *repository) List(ctx context.Context) ([]User, error) {
	var rows []userRow
	query := selectUserColumns + ` ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	var grants []grantRow
	historyQuery := `
		SELECT user_id, seq, action, granted_at, end_time
		FROM vip_grants
		ORDER BY user_id, seq ASC`
	if err := r.db.SelectContext(ctx, &grants, historyQuery); err != nil {
		return nil, fmt.Errorf("list grant history: %w", err)
	}

	byUser := make(map[string][]GrantRecord, len(rows))
	for _, g := range grants {
		byUser[g.UserID] = append(byUser[g.UserID], g.GrantRecord)
	}

	users := make([]User, 0, len(rows))
	for _, row := range rows {
		u := row.toUser()
		u.VIP.History = byUser[u.ID]
		if u.VIP.History == nil {
			u.VIP.History = []GrantRecord{}
		}
		users = append(users, *u)
	}

	return users, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
		}
	}

	return false
}
