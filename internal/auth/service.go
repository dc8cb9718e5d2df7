// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/templates/vip-backend/internal/core"
	"github.com/carterperez-dev/templates/vip-backend/internal/membership"
	"github.com/carterperez-dev/templates/vip-backend/internal/middleware"
	"github.com/carterperez-dev/templates/vip-backend/internal/user"
)

const maxUsernameLength = 64

// Service is the entry point for account and entitlement operations. It
// holds no per-request state.
type Service struct {
	users      *user.Service
	tokens     *TokenService
	hasher     core.Hasher
	membership *membership.Manager
	denylist   Denylist
	tracer     trace.Tracer
}

type ServiceConfig struct {
	Users      *user.Service
	Tokens     *TokenService
	Hasher     core.Hasher
	Membership *membership.Manager
	Denylist   Denylist
}

func NewService(cfg ServiceConfig) *Service {
	return &Service{
		users:      cfg.Users,
		tokens:     cfg.Tokens,
		hasher:     cfg.Hasher,
		membership: cfg.Membership,
		denylist:   cfg.Denylist,
		tracer:     core.Tracer("auth"),
	}
}

func (s *Service) Register(
	ctx context.Context,
	username, password string,
) (*AuthResponse, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Register")
	defer span.End()

	if err := validateCredentials(username, password); err != nil {
		return nil, core.SpanError(span, fmt.Errorf("register: %w", err))
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, core.SpanError(span, fmt.Errorf("hash password: %w", err))
	}

	u, err := s.users.Create(ctx, username, digest)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, core.SpanError(
				span,
				fmt.Errorf("register: %w", core.ErrUsernameTaken),
			)
		}
		return nil, core.SpanError(span, fmt.Errorf("register: %w", err))
	}

	span.SetAttributes(attribute.String("user.id", u.ID))

	return s.issue(u)
}

// Login fails with the same core.ErrInvalidCredentials whether the
// username is unknown or the password is wrong.
func (s *Service) Login(
	ctx context.Context,
	username, password string,
) (*AuthResponse, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer span.End()

	if err := validateCredentials(username, password); err != nil {
		return nil, core.SpanError(span, fmt.Errorf("login: %w", err))
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.VerifyTimingSafe(s.hasher, password, nil)
			slog.WarnContext(ctx, "login failed", "reason", "unknown_user")
			return nil, core.SpanError(
				span,
				fmt.Errorf("login: %w", core.ErrInvalidCredentials),
			)
		}
		return nil, core.SpanError(span, fmt.Errorf("login: %w", err))
	}

	if !core.VerifyTimingSafe(s.hasher, password, &u.PasswordDigest) {
		slog.WarnContext(ctx, "login failed",
			"reason", "bad_password",
			"user_id", u.ID,
		)
		return nil, core.SpanError(
			span,
			fmt.Errorf("login: %w", core.ErrInvalidCredentials),
		)
	}

	return s.issue(u)
}

// CheckEntitlement reports the live entitlement of the token's owner
// along with the stored flag and end time.
func (s *Service) CheckEntitlement(
	ctx context.Context,
	token string,
) (*EntitlementResponse, error) {
	ctx, span := s.tracer.Start(ctx, "auth.CheckEntitlement")
	defer span.End()

	if token == "" {
		return nil, core.SpanError(
			span,
			fmt.Errorf("check entitlement: %w", core.ErrUnauthorized),
		)
	}

	claims, err := s.VerifyAccessToken(ctx, token)
	if err != nil {
		return nil, core.SpanError(span, fmt.Errorf("check entitlement: %w", err))
	}

	status, err := s.membership.QueryStatus(ctx, claims.Username)
	if err != nil {
		return nil, core.SpanError(span, fmt.Errorf("check entitlement: %w", err))
	}

	span.SetAttributes(attribute.Bool("vip.live", status.Live))

	return &EntitlementResponse{
		IsVIP:      status.Live,
		VIPActive:  status.Active,
		VIPEndTime: status.EndTime,
	}, nil
}

// GrantEntitlement starts a new entitlement window for username. A zero
// duration uses the configured default.
func (s *Service) GrantEntitlement(
	ctx context.Context,
	username string,
	duration time.Duration,
) (*GrantResponse, error) {
	ctx, span := s.tracer.Start(ctx, "auth.GrantEntitlement")
	defer span.End()

	if duration == 0 {
		duration = s.membership.GrantDuration()
	}

	e, err := s.membership.Grant(ctx, username, duration)
	if err != nil {
		return nil, core.SpanError(span, fmt.Errorf("grant entitlement: %w", err))
	}

	slog.InfoContext(ctx, "vip granted",
		"username", username,
		"end_time", *e.EndTime,
	)

	return &GrantResponse{
		Message: fmt.Sprintf("VIP granted to %s", username),
		VIPDetails: VIPDetails{
			StartTime: *e.StartTime,
			EndTime:   *e.EndTime,
		},
	}, nil
}

// Logout revokes the token the claims were verified from until it
// expires.
func (s *Service) Logout(
	ctx context.Context,
	claims *middleware.AccessTokenClaims,
) error {
	ctx, span := s.tracer.Start(ctx, "auth.Logout")
	defer span.End()

	if claims == nil || claims.JTI == "" {
		return core.SpanError(
			span,
			fmt.Errorf("logout: %w", core.ErrUnauthorized),
		)
	}

	if s.denylist == nil {
		return nil
	}

	err := s.denylist.Revoke(ctx, RevokedToken{
		JTI:       claims.JTI,
		UserID:    claims.UserID,
		ExpiresAt: claims.ExpiresAt,
		RevokedAt: time.Now(),
	})
	if err != nil {
		return core.SpanError(
			span,
			fmt.Errorf("logout: %w: %w", core.ErrUnavailable, err),
		)
	}

	return nil
}

// VerifyAccessToken validates the token and checks it against the
// denylist.
func (s *Service) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, claims.JTI)
		if err != nil {
			return nil, fmt.Errorf("verify token: %w: %w", core.ErrUnavailable, err)
		}
		if revoked {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
		}
	}

	return &middleware.AccessTokenClaims{
		UserID:    claims.UserID,
		Username:  claims.Username,
		JTI:       claims.JTI,
		IssuedAt:  claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

func (s *Service) issue(u *user.User) (*AuthResponse, error) {
	token, _, err := s.tokens.Issue(u.ID, u.Username)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &AuthResponse{
		Username: u.Username,
		Token:    token,
	}, nil
}

func validateCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return fmt.Errorf(
			"%w: username and password are required",
			core.ErrInvalidInput,
		)
	}

	if utf8.RuneCountInString(username) > maxUsernameLength {
		return fmt.Errorf(
			"%w: username must be at most %d characters",
			core.ErrInvalidInput,
			maxUsernameLength,
		)
	}

	return nil
}

var _ middleware.TokenVerifier = (*Service)(nil)
