package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/movieshelf/internal/apperror"
	"github.com/sakif/movieshelf/internal/auth"
)

// AuthService checks the admin password and issues API tokens.
//
//	AuthHandler (HTTP) → AuthService → PasswordService (bcrypt)
//	moviectl token     ↗             ↘ TokenService (JWT)
//
// With no TokenService configured, authentication is disabled: Login fails
// and the middleware lets every request through.
type AuthService struct {
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	adminHash string
	logger    *slog.Logger
}

// NewAuthService creates an AuthService. tokens may be nil.
func NewAuthService(
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	adminHash string,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		tokens:    tokens,
		passwords: passwords,
		adminHash: adminHash,
		logger:    logger,
	}
}

// LoginResult is a freshly issued token and its expiry.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Enabled reports whether write endpoints require a token.
func (s *AuthService) Enabled() bool {
	return s.tokens != nil
}

// Tokens returns the TokenService, nil when authentication is disabled.
func (s *AuthService) Tokens() *auth.TokenService {
	return s.tokens
}

// Login verifies password against the configured admin hash and issues a
// token for auth.AdminSubject.
func (s *AuthService) Login(ctx context.Context, password string) (*LoginResult, error) {
	if s.tokens == nil || s.adminHash == "" {
		return nil, apperror.Forbidden("password login is not configured")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	if err := s.passwords.Verify(s.adminHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("failed login attempt")
			return nil, apperror.Unauthorized("invalid password")
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	result, err := s.issue(auth.AdminSubject, auth.DefaultTTL)
	if err != nil {
		return nil, err
	}

	s.logger.Info("admin logged in", slog.Time("expiresAt", result.ExpiresAt))
	return result, nil
}

// IssueToken mints a token for subject without a password check. The CLI
// uses it, since holding the JWT secret is already full access.
func (s *AuthService) IssueToken(subject string, ttl time.Duration) (*LoginResult, error) {
	if s.tokens == nil {
		return nil, apperror.Forbidden("JWT_SECRET is not configured")
	}
	return s.issue(subject, ttl)
}

// ValidateToken returns the subject of a valid token.
func (s *AuthService) ValidateToken(token string) (string, error) {
	if s.tokens == nil {
		return "", apperror.Forbidden("JWT_SECRET is not configured")
	}
	subject, err := s.tokens.Validate(token)
	if err != nil {
		return "", apperror.Unauthorized(err.Error())
	}
	return subject, nil
}

func (s *AuthService) issue(subject string, ttl time.Duration) (*LoginResult, error) {
	expires := time.Now().Add(ttl)
	token, err := s.tokens.GenerateWithDuration(subject, ttl)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for %s: %w", subject, err)
	}
	return &LoginResult{Token: token, ExpiresAt: expires}, nil
}
