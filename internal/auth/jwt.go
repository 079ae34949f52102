// Package auth issues and verifies the bearer tokens used to resolve the
// acting user on protected endpoints.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/key2key/server/internal/common"
)

// Claims carries the standard registered claims plus the user identifier.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

// GenerateToken signs an HS256 token identifying userID, valid for ttl.
func GenerateToken(userID string, secret []byte, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: userID,
	})
	return token.SignedString(secret)
}

// ParseUserID verifies tokenString and returns the user ID it asserts.
// A missing, malformed, forged or expired token yields
// common.ErrUnauthenticated; no detail about the cause is exposed.
func ParseUserID(tokenString string, secret []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, common.ErrUnauthenticated
		}
		return secret, nil
	})
	if err != nil || !token.Valid || claims.UserID == "" {
		return "", common.ErrUnauthenticated
	}

	return claims.UserID, nil
}
