// Package authn issues and verifies bearer tokens and hashes passwords —
// the external-collaborator concerns spec.md names out of the core's scope,
// implemented here so the repository runs end to end.
package authn

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType distinguishes access from refresh tokens, carried in the "type"
// claim exactly as the original JwtService does.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

var (
	ErrExpired        = errors.New("authn: token expired")
	ErrInvalidToken   = errors.New("authn: invalid token")
	ErrWrongTokenType = errors.New("authn: wrong token type")
)

// Claims mirrors the original JwtService claim shape: sub (as a string,
// matching the C++ original's std::to_string(userId) serialization), type,
// iat, exp, and is_admin.
type Claims struct {
	Subject string    `json:"sub"`
	Type    TokenType `json:"type"`
	IsAdmin bool      `json:"is_admin"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 tokens with a fixed secret and TTLs.
type Signer struct {
	secret    []byte
	accessTTL time.Duration
	refreshTTL time.Duration
}

// NewSigner requires a secret of at least 16 characters, per spec.md §6.
func NewSigner(secret string, accessTTL, refreshTTL time.Duration) (*Signer, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("authn: JWT_SECRET must be at least 16 characters")
	}
	return &Signer{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}, nil
}

func (s *Signer) issue(userID int64, isAdmin bool, tt TokenType, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Subject: strconv.FormatInt(userID, 10),
		Type:    tt,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Signer) AccessToken(userID int64, isAdmin bool) (string, error) {
	return s.issue(userID, isAdmin, TokenAccess, s.accessTTL)
}

func (s *Signer) RefreshToken(userID int64, isAdmin bool) (string, error) {
	return s.issue(userID, isAdmin, TokenRefresh, s.refreshTTL)
}

func (s *Signer) AccessTTLSeconds() int64 { return int64(s.accessTTL.Seconds()) }

// Verify parses and validates signature and expiry, and additionally
// enforces the expected token type.
func (s *Signer) Verify(raw string, want TokenType) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != want {
		return nil, ErrWrongTokenType
	}
	return &claims, nil
}

// UserID parses the sub claim back into an int64.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}
