package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleDisplay is the only role allowed on the display websocket
const RoleDisplay = "display"

// JWTClaims represents the claims in a display token
type JWTClaims struct {
	ClientID string `json:"client_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates HS256 display tokens
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer for secret. A zero ttl defaults to 30 days.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Enabled reports whether a secret is configured
func (i *TokenIssuer) Enabled() bool {
	return i != nil && len(i.secret) > 0
}

// GenerateDisplayToken generates a token for a display client. An empty
// clientID gets a random one.
func (i *TokenIssuer) GenerateDisplayToken(clientID string) (string, time.Time, error) {
	if !i.Enabled() {
		return "", time.Time{}, errors.New("display jwt secret is not configured")
	}
	if clientID == "" {
		clientID = uuid.NewString()
	}

	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := &JWTClaims{
		ClientID: clientID,
		Role:     RoleDisplay,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a display token and returns the claims
func (i *TokenIssuer) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrInvalidKey
	}
	if claims.Role != RoleDisplay {
		return nil, fmt.Errorf("unexpected role %q", claims.Role)
	}
	return claims, nil
}
