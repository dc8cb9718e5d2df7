// AngelaMos | 2026
// jwt.go

package auth

import (
	"encoding/base64"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/templates/vip-backend/internal/config"
	"github.com/carterperez-dev/templates/vip-backend/internal/core"
)

const minSecretLength = 32

// Claims are the verified contents of an access token.
type Claims struct {
	UserID    string
	Username  string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService issues and validates HS256 access tokens signed with one
// process-wide secret.
type TokenService struct {
	key    jwk.Key
	config config.JWTConfig
	now    func() time.Time
}

type TokenOption func(*TokenService)

func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		s.now = now
	}
}

func NewTokenService(
	cfg config.JWTConfig,
	opts ...TokenOption,
) (*TokenService, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf(
			"token secret must be at least %d bytes",
			minSecretLength,
		)
	}

	if cfg.TokenExpire <= 0 {
		return nil, fmt.Errorf("token lifetime must be positive")
	}

	key, err := jwk.Import([]byte(cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("import signing key: %w", err)
	}

	if setErr := key.Set(jwk.AlgorithmKey, jwa.HS256()); setErr != nil {
		return nil, fmt.Errorf("set algorithm: %w", setErr)
	}

	s := &TokenService{
		key:    key,
		config: cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a token for the user valid from now for the configured
// lifetime.
func (s *TokenService) Issue(userID, username string) (string, *Claims, error) {
	now := s.now().UTC().Truncate(time.Second)

	claims := &Claims{
		UserID:    userID,
		Username:  username,
		JTI:       uuid.New().String(),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.config.TokenExpire),
	}

	token, err := jwt.NewBuilder().
		JwtID(claims.JTI).
		Issuer(s.config.Issuer).
		Audience([]string{s.config.Audience}).
		Subject(userID).
		IssuedAt(claims.IssuedAt).
		Expiration(claims.ExpiresAt).
		Claim("user_id", userID).
		Claim("username", username).
		Build()
	if err != nil {
		return "", nil, fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), s.key))
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	return string(signed), claims, nil
}

// Validate checks the signature before anything else, so a tampered token
// is reported as invalid even when it has also expired.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	if !canonicalSignature(tokenString) {
		return nil, fmt.Errorf(
			"validate token: non-canonical signature: %w",
			core.ErrTokenInvalid,
		)
	}

	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), s.key),
		jwt.WithValidate(false),
	)
	if err != nil {
		return nil, fmt.Errorf("validate token: %w", core.ErrTokenInvalid)
	}

	exp, ok := token.Expiration()
	if !ok {
		return nil, fmt.Errorf(
			"validate token: missing exp: %w",
			core.ErrTokenInvalid,
		)
	}

	if s.now().After(exp) {
		return nil, fmt.Errorf("validate token: %w", core.ErrTokenExpired)
	}

	if iss, _ := token.Issuer(); iss != s.config.Issuer {
		return nil, fmt.Errorf(
			"validate token: issuer mismatch: %w",
			core.ErrTokenInvalid,
		)
	}

	if aud, _ := token.Audience(); !slices.Contains(aud, s.config.Audience) {
		return nil, fmt.Errorf(
			"validate token: audience mismatch: %w",
			core.ErrTokenInvalid,
		)
	}

	var userID, username string
	if err := token.Get("user_id", &userID); err != nil || userID == "" {
		return nil, fmt.Errorf(
			"validate token: missing user_id claim: %w",
			core.ErrTokenInvalid,
		)
	}

	if err := token.Get("username", &username); err != nil || username == "" {
		return nil, fmt.Errorf(
			"validate token: missing username claim: %w",
			core.ErrTokenInvalid,
		)
	}

	jti, ok := token.JwtID()
	if !ok || jti == "" {
		return nil, fmt.Errorf(
			"validate token: missing jti: %w",
			core.ErrTokenInvalid,
		)
	}

	iat, _ := token.IssuedAt()

	return &Claims{
		UserID:    userID,
		Username:  username,
		JTI:       jti,
		IssuedAt:  iat,
		ExpiresAt: exp,
	}, nil
}

func (s *TokenService) Lifetime() time.Duration {
	return s.config.TokenExpire
}

// canonicalSignature reports whether the token has three segments and its
// signature is strict unpadded base64url. The lenient decoder behind Parse
// ignores the spare low bits of the final character, which would let a
// changed signature decode to the same MAC.
func canonicalSignature(tokenString string) bool {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 || parts[2] == "" {
		return false
	}

	enc := base64.RawURLEncoding.Strict()
	sig, err := enc.DecodeString(parts[2])
	if err != nil {
		return false
	}

	return enc.EncodeToString(sig) == parts[2]
}
