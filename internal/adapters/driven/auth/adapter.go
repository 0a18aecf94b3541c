package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/patron-bridge/internal/core/domain"
	"github.com/custodia-labs/patron-bridge/internal/core/ports/driven"
)

// Ensure Adapter implements AuthAdapter
var _ driven.AuthAdapter = (*Adapter)(nil)

// ScopeMaintenance authorizes the sweep endpoint.
const ScopeMaintenance = driven.ScopeMaintenance

// maintenanceClaims is the JWT payload for maintenance tokens.
type maintenanceClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Adapter issues and validates HS256-signed maintenance tokens.
type Adapter struct {
	secret []byte
}

// NewAdapter creates a new auth adapter with the given signing secret.
func NewAdapter(secret string) *Adapter {
	return &Adapter{secret: []byte(secret)}
}

// GenerateToken creates a signed token carrying the given scope.
func (a *Adapter) GenerateToken(scope string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := maintenanceClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ParseToken validates a token and returns its scope.
func (a *Adapter) ParseToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &maintenanceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", domain.ErrTokenInvalid
	}

	claims, ok := token.Claims.(*maintenanceClaims)
	if !ok || !token.Valid {
		return "", domain.ErrTokenInvalid
	}
	return claims.Scope, nil
}
