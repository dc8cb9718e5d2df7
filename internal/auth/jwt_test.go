// AngelaMos | 2026
// jwt_test.go

package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/vip-backend/internal/config"
	"github.com/carterperez-dev/templates/vip-backend/internal/core"
)

const testSecret = "test-secret-that-is-at-least-32-bytes-long"

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)}
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:      testSecret,
		TokenExpire: 30 * 24 * time.Hour,
		Issuer:      "vip-backend",
		Audience:    "vip-extension",
	}
}

func newTestTokenService(t *testing.T, clock *testClock) *TokenService {
	t.Helper()
	svc, err := NewTokenService(testJWTConfig(), WithTokenClock(clock.Now))
	require.NoError(t, err)
	return svc
}

func TestTokenService_RoundTrip(t *testing.T) {
	clock := newTestClock()
	svc := newTestTokenService(t, clock)

	token, issued, err := svc.Issue("user-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), issued.IssuedAt)
	assert.Equal(t, clock.Now().Add(30*24*time.Hour), issued.ExpiresAt)
	assert.Len(t, strings.Split(token, "."), 3)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, issued.JTI, claims.JTI)
	assert.True(t, issued.ExpiresAt.Equal(claims.ExpiresAt))
}

func TestTokenService_UniqueJTI(t *testing.T) {
	svc := newTestTokenService(t, newTestClock())

	_, a, err := svc.Issue("user-1", "alice")
	require.NoError(t, err)
	_, b, err := svc.Issue("user-1", "alice")
	require.NoError(t, err)

	assert.NotEqual(t, a.JTI, b.JTI)
}

func TestTokenService_Expiry(t *testing.T) {
	clock := newTestClock()
	svc := newTestTokenService(t, clock)

	token, _, err := svc.Issue("user-1", "alice")
	require.NoError(t, err)

	clock.Advance(30 * 24 * time.Hour)
	_, err = svc.Validate(token)
	require.NoError(t, err, "token is valid up to and including exp")

	clock.Advance(time.Second)
	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

const base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

func TestTokenService_TamperedSignature(t *testing.T) {
	clock := newTestClock()
	svc := newTestTokenService(t, clock)

	for range 5 {
		token, _, err := svc.Issue("user-1", "alice")
		require.NoError(t, err)

		parts := strings.Split(token, ".")
		sig := parts[2]

		for pos := range len(sig) {
			for _, c := range base64URLAlphabet {
				if byte(c) == sig[pos] {
					continue
				}
				tampered := parts[0] + "." + parts[1] + "." +
					sig[:pos] + string(c) + sig[pos+1:]

				_, err := svc.Validate(tampered)
				require.ErrorIs(t, err, core.ErrTokenInvalid,
					"signature position %d changed %q -> %q", pos, sig[pos], c)
			}
		}
	}
}

func TestTokenService_TamperedSignatureBeatsExpiry(t *testing.T) {
	clock := newTestClock()
	svc := newTestTokenService(t, clock)

	token, _, err := svc.Issue("user-1", "alice")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	last := parts[2][len(parts[2])-1]
	flipped := byte('A')
	if last == 'A' {
		flipped = 'B'
	}
	tampered := parts[0] + "." + parts[1] + "." +
		parts[2][:len(parts[2])-1] + string(flipped)

	clock.Advance(365 * 24 * time.Hour)
	_, err = svc.Validate(tampered)
	assert.ErrorIs(t, err, core.ErrTokenInvalid,
		"signature failure wins over expiry")
}

func TestTokenService_RejectsMalformedSegments(t *testing.T) {
	svc := newTestTokenService(t, newTestClock())

	token, _, err := svc.Issue("user-1", "alice")
	require.NoError(t, err)
	parts := strings.Split(token, ".")

	for name, candidate := range map[string]string{
		"padded signature":  token + "=",
		"missing signature": parts[0] + "." + parts[1] + ".",
		"extra segment":     token + ".x",
		"two segments":      parts[0] + "." + parts[1],
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Validate(candidate)
			assert.ErrorIs(t, err, core.ErrTokenInvalid)
		})
	}
}

func TestTokenService_RejectsForeignTokens(t *testing.T) {
	clock := newTestClock()
	svc := newTestTokenService(t, clock)

	otherCfg := testJWTConfig()
	otherCfg.Secret = "another-secret-that-is-also-32-bytes-long"
	other, err := NewTokenService(otherCfg, WithTokenClock(clock.Now))
	require.NoError(t, err)

	foreign, _, err := other.Issue("user-1", "alice")
	require.NoError(t, err)

	wrongAudCfg := testJWTConfig()
	wrongAudCfg.Audience = "someone-else"
	wrongAud, err := NewTokenService(wrongAudCfg, WithTokenClock(clock.Now))
	require.NoError(t, err)
	misaddressed, _, err := wrongAud.Issue("user-1", "alice")
	require.NoError(t, err)

	for name, token := range map[string]string{
		"other secret":   foreign,
		"wrong audience": misaddressed,
		"garbage":        "not-a-token",
		"empty":          "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Validate(token)
			assert.ErrorIs(t, err, core.ErrTokenInvalid)
		})
	}
}

func TestNewTokenService_RejectsWeakConfig(t *testing.T) {
	cfg := testJWTConfig()
	cfg.Secret = "short"
	_, err := NewTokenService(cfg)
	assert.Error(t, err)

	cfg = testJWTConfig()
	cfg.TokenExpire = 0
	_, err = NewTokenService(cfg)
	assert.Error(t, err)
}
