package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Token roles.
const (
	RoleGuest = "guest"
	RoleUser  = "user"
)

// TokenInfo is what a validated bearer token says about its holder.
type TokenInfo struct {
	Subject   string         `json:"sub"`
	Role      string         `json:"role"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	ExpiresAt time.Time      `json:"exp"`
}

type claims struct {
	Role     string         `json:"role,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager signs and validates HS256 tokens.
type JWTManager struct {
	secret   []byte
	userTTL  time.Duration
	guestTTL time.Duration
	now      func() time.Time
}

// NewJWTManager builds a manager. An empty secret gets a random one, which
// makes issued tokens valid for the life of the process only.
func NewJWTManager(secret string, userTTL, guestTTL time.Duration) (*JWTManager, error) {
	key := []byte(secret)
	if len(key) == 0 {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
		key = []byte(hex.EncodeToString(buf))
	}
	if userTTL <= 0 {
		userTTL = 48 * time.Hour
	}
	if guestTTL <= 0 {
		guestTTL = 24 * time.Hour
	}
	return &JWTManager{secret: key, userTTL: userTTL, guestTTL: guestTTL, now: time.Now}, nil
}

// CreateToken issues a signed token for subject with the given role.
func (m *JWTManager) CreateToken(subject, role string, metadata map[string]any) (string, error) {
	ttl := m.userTTL
	if role == RoleGuest {
		ttl = m.guestTTL
	}
	now := m.now()
	c := claims{
		Role:     role,
		Metadata: metadata,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
}

// Validate parses token. Every parse, signature or expiry failure wraps
// ErrUnauthorized.
func (m *JWTManager) Validate(_ context.Context, token string) (TokenInfo, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !parsed.Valid {
		return TokenInfo{}, fmt.Errorf("%w: token not valid", ErrUnauthorized)
	}
	role := c.Role
	if role == "" {
		role = RoleUser
	}
	info := TokenInfo{Subject: c.Subject, Role: role, Metadata: c.Metadata}
	if c.ExpiresAt != nil {
		info.ExpiresAt = c.ExpiresAt.Time
	}
	return info, nil
}

// ExtractBearer returns the token from "Authorization: Bearer <token>".
func ExtractBearer(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// IsUnauthorized reports whether err is classified as unauthorized.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
