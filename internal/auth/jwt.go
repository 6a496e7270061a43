package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenDuration applies when the configured TTL is zero
const DefaultAccessTokenDuration = 15 * time.Minute

// Claims are the access token claims; the subject is the user id
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// JWTManager signs and verifies HS256 access tokens
type JWTManager struct {
	secretKey []byte
	issuer    string
	ttl       time.Duration
}

// NewJWTManager creates a manager
func NewJWTManager(secretKey, issuer string, ttl time.Duration) *JWTManager {
	if ttl <= 0 {
		ttl = DefaultAccessTokenDuration
	}
	return &JWTManager{secretKey: []byte(secretKey), issuer: issuer, ttl: ttl}
}

// GenerateAccessToken issues a token for userID
func (m *JWTManager) GenerateAccessToken(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}

	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			Subject:   userID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
}

// VerifyAccessToken parses and validates a token
func (m *JWTManager) VerifyAccessToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secretKey, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// ExtractTokenFromHeader returns the token of "Bearer <token>"
func ExtractTokenFromHeader(authHeader string) (string, error) {
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return "", errors.New("invalid authorization header format")
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
