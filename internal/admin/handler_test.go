// AngelaMos | 2026
// handler_test.go

package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/vip-backend/internal/membership"
	"github.com/carterperez-dev/templates/vip-backend/internal/middleware"
	"github.com/carterperez-dev/templates/vip-backend/internal/user"
)

const adminKey = "admin-secret"

func newAdminRouter(t *testing.T, cfg HandlerConfig) *chi.Mux {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(cfg).RegisterRoutes(r, middleware.RequireAdminKey(adminKey))
	return r
}

func get(router http.Handler, path string, withKey bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if withKey {
		req.Header.Set(middleware.AdminKeyHeader, adminKey)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func seededManager(t *testing.T) *membership.Manager {
	t.Helper()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	repo := user.NewMemoryRepository()
	users := user.NewService(repo, user.WithServiceClock(clock))
	mgr := membership.NewManager(repo, membership.WithClock(clock))

	ctx := context.Background()
	for _, name := range []string{"alice", "bob", "carol"} {
		_, err := users.Create(ctx, name, "sha256:x")
		require.NoError(t, err)
	}
	_, err := mgr.Grant(ctx, "alice", time.Hour)
	require.NoError(t, err)

	return mgr
}

func TestAdminRoutesRequireKey(t *testing.T) {
	router := newAdminRouter(t, HandlerConfig{})

	for _, path := range []string{
		"/admin/stats",
		"/admin/stats/db",
		"/admin/stats/redis",
		"/admin/stats/runtime",
		"/admin/stats/membership",
	} {
		assert.Equal(t, http.StatusUnauthorized, get(router, path, false).Code, path)
	}
}

func TestMembershipStats(t *testing.T) {
	router := newAdminRouter(t, HandlerConfig{Members: seededManager(t)})

	rec := get(router, "/admin/stats/membership", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"users": 3, "vip_active": 1, "vip_live": 1, "never_granted": 2}`,
		rec.Body.String(),
	)
}

func TestMembershipStats_NotConfigured(t *testing.T) {
	router := newAdminRouter(t, HandlerConfig{})
	assert.Equal(t, http.StatusNotFound, get(router, "/admin/stats/membership", true).Code)
}

func TestSystemStats(t *testing.T) {
	router := newAdminRouter(t, HandlerConfig{
		DBPing:  func(context.Context) error { return errors.New("down") },
		Members: seededManager(t),
	})

	rec := get(router, "/admin/stats", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SystemStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Database.Healthy)
	assert.Nil(t, resp.Database.Stats)
	assert.False(t, resp.Redis.Healthy, "no redis configured")
	require.NotNil(t, resp.Membership)
	assert.Equal(t, 3, resp.Membership.Users)
	assert.NotEmpty(t, resp.Runtime.GoVersion)
}
