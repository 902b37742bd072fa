// Package auth adapts bearer tokens from the identity provider into actors the core trusts.
package auth

import (
	"errors"
	"time" // Time for token expiration

	"ledger_system/internal/domain"

	"github.com/golang-jwt/jwt/v5" // JWT library
)

// TokenTTL is how long an issued token stays valid
const TokenTTL = 24 * time.Hour

// Claims carried by an identity token
type Claims struct {
	UserID               uint        `json:"user_id"` // Actor id
	Role                 domain.Role `json:"role"`    // Owner or administrator
	jwt.RegisteredClaims             // Standard JWT claims
}

// IssueToken signs a token for an actor. The identity provider issues tokens in production; this is
// used by tooling and tests.
func IssueToken(actor domain.Actor, secret string, now time.Time) (string, error) {
	claims := Claims{
		UserID: actor.ID,
		Role:   actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims) // Create token with claims
	return token.SignedString([]byte(secret))                  // Sign the token with the secret
}

// ParseToken validates a token and returns the actor it names
func ParseToken(tokenStr, secret string) (domain.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil // Return the secret key for validation
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Actor{}, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Actor{}, jwt.ErrSignatureInvalid
	}
	if claims.UserID == 0 {
		return domain.Actor{}, errors.New("token has no user id")
	}
	switch claims.Role {
	case domain.RoleOwner, domain.RoleAdministrator:
	case "":
		claims.Role = domain.RoleOwner
	default:
		return domain.Actor{}, errors.New("token has an unknown role")
	}
	return domain.Actor{ID: claims.UserID, Role: claims.Role}, nil
}
