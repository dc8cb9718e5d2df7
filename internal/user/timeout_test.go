// AngelaMos | 2026
// timeout_test.go

package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/vip-backend/internal/core"
)

type blockingRepository struct {
	Repository
}

func (blockingRepository) GetByUsername(ctx context.Context, _ string) (*User, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingRepository) Update(ctx context.Context, _ string, _ MutateFunc) (*User, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWithTimeout_MapsDeadlineToUnavailable(t *testing.T) {
	repo := WithTimeout(blockingRepository{}, 20*time.Millisecond)

	start := time.Now()
	_, err := repo.GetByUsername(context.Background(), "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)

	_, err = repo.Update(context.Background(), "alice", grantFn(time.Now(), time.Hour))
	assert.ErrorIs(t, err, core.ErrUnavailable)

	appErr := core.FromError(err)
	assert.Equal(t, 503, appErr.StatusCode)
}

func TestWithTimeout_PassesThroughDomainErrors(t *testing.T) {
	repo := WithTimeout(NewMemoryRepository(), time.Second)
	ctx := context.Background()

	_, err := repo.GetByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NotErrorIs(t, err, core.ErrUnavailable)

	now := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, newTestUser("alice", now)))
	err = repo.Create(ctx, newTestUser("alice", now))
	assert.ErrorIs(t, err, core.ErrDuplicateKey)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
