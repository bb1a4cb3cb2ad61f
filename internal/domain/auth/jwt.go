package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"retailpos/internal/core/id"
)

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

// DefaultJWTConfig returns default JWT configuration.
func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret:         secret,
		Issuer:         "retailpos",
		AccessTokenTTL: 12 * time.Hour,
	}
}

// Claims represents JWT claims. The bound tenant/location travel in the
// token; a super admin's selection lives in the session.
type Claims struct {
	jwt.RegisteredClaims
	UserID     string `json:"uid"`
	SessionID  string `json:"sid"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	TenantID   string `json:"tid,omitempty"`
	LocationID string `json:"lid,omitempty"`
}

// JWTService handles JWT operations.
type JWTService struct {
	config JWTConfig
}

// NewJWTService creates a new JWT service.
func NewJWTService(config JWTConfig) *JWTService {
	return &JWTService{config: config}
}

// TTL is the lifetime of issued tokens.
func (s *JWTService) TTL() time.Duration {
	return s.config.AccessTokenTTL
}

// GenerateAccessToken signs a token for user bound to session.
func (s *JWTService) GenerateAccessToken(user *User, sessionID id.ID, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(s.config.AccessTokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID:    user.ID.String(),
		SessionID: sessionID.String(),
		Email:     user.Email,
		Role:      string(user.Role),
	}
	if user.TenantID != nil {
		claims.TenantID = user.TenantID.String()
	}
	if user.LocationID != nil {
		claims.LocationID = user.LocationID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateToken verifies the signature and expiry and returns the claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithIssuer(s.config.Issuer))

	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
