// AngelaMos | 2026
// repository_postgres_test.go

package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/vip-backend/internal/core"
)

var userColumns = []string{
	"id", "username", "password_digest", "vip_active", "vip_start_time",
	"vip_end_time", "created_at", "updated_at",
}

var grantColumns = []string{"user_id", "seq", "action", "granted_at", "end_time"}

func newPostgresMock(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	return NewRepository(sqlx.NewDb(mockDB, "pgx")), mock
}

func TestPostgresCreate_UniqueViolation(t *testing.T) {
	repo, mock := newPostgresMock(t)
	now := time.Now().UTC()

	mock.ExpectExec(`(?s)INSERT INTO users .* VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8\)`).
		WithArgs("id-alice", "alice", "sha256:digest", false, nil, nil,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), newTestUser("alice", now))
	assert.ErrorIs(t, err, core.ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreate_OtherError(t *testing.T) {
	repo, mock := newPostgresMock(t)

	mock.ExpectExec(`(?s)INSERT INTO users`).
		WillReturnError(errors.New("connection reset"))

	err := repo.Create(context.Background(), newTestUser("alice", time.Now()))
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrDuplicateKey)
	assert.Contains(t, err.Error(), "create user")
}

func TestPostgresGetByUsername_NotFound(t *testing.T) {
	repo, mock := newPostgresMock(t)

	mock.ExpectQuery(`(?s)SELECT .*\sFROM users\s+WHERE username = \$1$`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err := repo.GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdate_LocksRowAndAppendsOnlyNewRecords(t *testing.T) {
	repo, mock := newPostgresMock(t)

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	firstGrant := created.Add(time.Hour)
	firstEnd := firstGrant.Add(24 * time.Hour)
	secondGrant := created.Add(72 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .*\sFROM users\s+WHERE username = \$1 FOR UPDATE`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(
			"id-alice", "alice", "sha256:digest", true, firstGrant,
			firstEnd, created, firstGrant,
		))
	mock.ExpectQuery(`(?s)SELECT .*\sFROM vip_grants\s+WHERE user_id = \$1`).
		WithArgs("id-alice").
		WillReturnRows(sqlmock.NewRows(grantColumns).AddRow(
			"id-alice", int64(0), ActionGrant, firstGrant, firstEnd,
		))
	mock.ExpectExec(`(?s)UPDATE users\s+SET vip_active = \$1`).
		WithArgs(true, sqlmock.AnyArg(), sqlmock.AnyArg(), secondGrant, "id-alice").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)INSERT INTO vip_grants`).
		WithArgs("id-alice", 1, ActionGrant, secondGrant, secondGrant.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := repo.Update(
		context.Background(),
		"alice",
		grantFn(secondGrant, time.Hour),
	)
	require.NoError(t, err)
	assert.Len(t, updated.VIP.History, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdate_RollsBackOnRewrite(t *testing.T) {
	repo, mock := newPostgresMock(t)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)FROM users\s+WHERE username = \$1 FOR UPDATE`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(
			"id-alice", "alice", "sha256:digest", true, created,
			created.Add(time.Hour), created, created,
		))
	mock.ExpectQuery(`(?s)FROM vip_grants`).
		WithArgs("id-alice").
		WillReturnRows(sqlmock.NewRows(grantColumns).AddRow(
			"id-alice", int64(0), ActionGrant, created, created.Add(time.Hour),
		))
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), "alice", func(u *User) error {
		u.VIP.History = nil
		return nil
	})
	assert.ErrorIs(t, err, ErrHistoryRewrite)
	assert.NoError(t, mock.ExpectationsWereMet())
}
