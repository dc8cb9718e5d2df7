// AngelaMos | 2026
// config_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_DRIVER", DriverMemory)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("ADMIN_API_KEY", "")
	t.Setenv("PASSWORD_HASHER", "")
	t.Setenv("TRUSTED_PROXIES", "")
}

func TestLoadFrom_Defaults(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PASSWORD_HASHER", HasherArgon2ID)

	c, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, 720*time.Hour, c.JWT.TokenExpire)
	assert.Equal(t, 720*time.Hour, c.Membership.GrantDuration)
	assert.Equal(t, 5*time.Second, c.Database.QueryTimeout)
	assert.Equal(t, HasherArgon2ID, c.Security.PasswordHasher)
	assert.Equal(t, "0.0.0.0:8080", c.Server.Address())
	assert.False(t, c.IsProduction())
	assert.Empty(t, c.RateLimit.ProxyList())
}

func TestLoadFrom_TrustedProxies(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PASSWORD_HASHER", HasherArgon2ID)
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8, ,192.0.2.10 ")

	c, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, c.RateLimit.ProxyList())
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PASSWORD_HASHER", HasherSHA256)
	t.Setenv("PORT", "9090")
	t.Setenv("VIP_GRANT_DURATION", "48h")

	c, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, 48*time.Hour, c.Membership.GrantDuration)
	assert.Equal(t, HasherSHA256, c.Security.PasswordHasher)
}

func TestLoadFrom_YAMLFile(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PASSWORD_HASHER", HasherArgon2ID)

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("app:\n  name: ext-backend\njwt:\n  issuer: custom\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	c, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "ext-backend", c.App.Name)
	assert.Equal(t, "custom", c.JWT.Issuer)
}

func TestLoadFrom_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing secret",
			env:  map[string]string{"JWT_SECRET": ""},
		},
		{
			name: "short secret",
			env:  map[string]string{"JWT_SECRET": "short"},
		},
		{
			name: "postgres without url",
			env:  map[string]string{"DATABASE_DRIVER": DriverPostgres},
		},
		{
			name: "unknown driver",
			env:  map[string]string{"DATABASE_DRIVER": "mongo"},
		},
		{
			name: "unknown hasher",
			env:  map[string]string{"PASSWORD_HASHER": "md5"},
		},
		{
			name: "bad trusted proxy",
			env:  map[string]string{"TRUSTED_PROXIES": "10.0.0.0/8,lb.internal"},
		},
		{
			name: "production without admin key",
			env: map[string]string{
				"ENVIRONMENT":     "production",
				"DATABASE_DRIVER": DriverSQLite,
				"DATABASE_URL":    "file.db",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv("PASSWORD_HASHER", HasherArgon2ID)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := LoadFrom("")
			require.Error(t, err)
		})
	}
}
