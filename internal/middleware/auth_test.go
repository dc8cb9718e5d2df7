// AngelaMos | 2026
// auth_test.go

package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/vip-backend/internal/core"
)

type verifierFunc func(ctx context.Context, token string) (*AccessTokenClaims, error)

func (f verifierFunc) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*AccessTokenClaims, error) {
	return f(ctx, token)
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(GetUsername(r.Context())))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp core.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Code
}

func TestAuthenticator(t *testing.T) {
	verifier := verifierFunc(func(_ context.Context, token string) (*AccessTokenClaims, error) {
		switch token {
		case "good":
			return &AccessTokenClaims{UserID: "id-1", Username: "alice", JTI: "j"}, nil
		case "expired":
			return nil, fmt.Errorf("validate: %w", core.ErrTokenExpired)
		case "revoked":
			return nil, fmt.Errorf("verify: %w", core.ErrTokenRevoked)
		case "down":
			return nil, fmt.Errorf("verify: %w", core.ErrUnavailable)
		default:
			return nil, core.ErrTokenInvalid
		}
	})
	handler := Authenticator(verifier)(http.HandlerFunc(okHandler))

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing", "", http.StatusUnauthorized, core.CodeUnauthorized},
		{"wrong scheme", "Token good", http.StatusUnauthorized, core.CodeUnauthorized},
		{"invalid", "Bearer nope", http.StatusUnauthorized, core.CodeTokenInvalid},
		{"expired", "Bearer expired", http.StatusUnauthorized, core.CodeTokenExpired},
		{"revoked", "Bearer revoked", http.StatusUnauthorized, core.CodeTokenRevoked},
		{"store down", "Bearer down", http.StatusServiceUnavailable, core.CodeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}

	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "bearer good")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "alice", rec.Body.String())
	})
}

func TestRequireAdminKey(t *testing.T) {
	guarded := RequireAdminKey("s3cret")(http.HandlerFunc(okHandler))

	for name, tt := range map[string]struct {
		key    string
		status int
	}{
		"correct": {"s3cret", http.StatusOK},
		"wrong":   {"s3cre", http.StatusUnauthorized},
		"missing": {"", http.StatusUnauthorized},
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.key != "" {
				req.Header.Set(AdminKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	t.Run("unset key leaves route open", func(t *testing.T) {
		open := RequireAdminKey("")(http.HandlerFunc(okHandler))
		rec := httptest.NewRecorder()
		open.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestExtractToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":   "abc",
		"BEARER abc":   "abc",
		"Bearer  abc ": "abc",
		"Basic abc":    "",
		"abc":          "",
		"":             "",
	}

	for header, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, ExtractToken(req), "header %q", header)
	}
}

func TestContextAccessors_Empty(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetUserID(ctx))
	assert.Empty(t, GetUsername(ctx))
	assert.Nil(t, GetClaims(ctx))
	assert.Empty(t, GetRequestID(ctx))
}
