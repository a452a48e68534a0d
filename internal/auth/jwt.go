// Package auth provides JWT tokens, bcrypt password checks and the request
// middleware guarding the write endpoints of the API.
//
// AUTHENTICATION FLOW:
//  1. The operator stores a bcrypt hash of the admin password in
//     ADMIN_PASSWORD_HASH (see `moviectl hash-password`).
//  2. POST /auth/login with the password returns a signed JWT, also set as
//     an HttpOnly "token" cookie.
//  3. Write requests carry the token in an `Authorization: Bearer` header or
//     the cookie; RequireAuth validates it.
//
// JWT STRUCTURE:
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"admin","iss":"movieshelf","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the "iss" claim of every token.
const Issuer = "movieshelf"

const (
	// DefaultTTL is the lifetime of tokens issued by Generate.
	DefaultTTL = 12 * time.Hour

	// AdminSubject is the "sub" claim of tokens issued on password login.
	AdminSubject = "admin"
)

// TokenService handles JWT creation and validation with one HMAC secret.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

type claims struct {
	jwt.RegisteredClaims
}

// Generate signs a token for subject valid for DefaultTTL.
func (s *TokenService) Generate(subject string) (string, error) {
	return s.GenerateWithDuration(subject, DefaultTTL)
}

// GenerateWithDuration signs a token for subject valid for d.
func (s *TokenService) GenerateWithDuration(subject string, d time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("auth: token subject must not be empty")
	}
	if d <= 0 {
		return "", fmt.Errorf("auth: token lifetime must be positive, got %s", d)
	}

	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a token and returns its subject.
//
// jwt.WithValidMethods pins HS256, which rules out "alg: none" and
// algorithm-confusion tokens.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.New("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}

	return c.Subject, nil
}
