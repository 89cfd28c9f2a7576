package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mmynk/tripshare/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("authorization token required")
)

// Issuer is written to and required in every token.
const Issuer = "tripshare"

// Claims carries the session user. Subject duplicates UserID for standard
// JWT consumers.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTManager issues and checks HS256 session tokens.
type JWTManager struct {
	key    []byte
	ttl    time.Duration
	parser *jwt.Parser
}

// NewJWTManager returns a manager signing with secret. Tokens expire after
// ttl.
func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	return &JWTManager{
		key: []byte(secret),
		ttl: ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}
}

// Generate signs a token for user.
func (m *JWTManager) Generate(user *models.User) (string, error) {
	now := time.Now()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate returns the claims of a token this manager signed. Every failure
// wraps ErrInvalidToken.
func (m *JWTManager) Validate(token string) (*Claims, error) {
	claims := &Claims{}
	if _, err := m.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.key, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user", ErrInvalidToken)
	}
	return claims, nil
}
