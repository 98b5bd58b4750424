// Package auth issues and verifies viewer tokens (HS256 JWTs). A viewer
// token identifies the person browsing so likes and comments can be
// attributed; it carries no privileges beyond that.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/youthforge/forge/internal/common"
)

// Claims embeds the registered claims plus the viewer id.
type Claims struct {
	jwt.RegisteredClaims
	ViewerID string
}

// GenerateToken signs a viewer token valid for validityDuration.
func GenerateToken(viewerID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		ViewerID: viewerID,
	})
	return token.SignedString(secretKey)
}

// ViewerIDFromToken verifies the signature and expiry and returns the
// viewer id the token was issued for.
func ViewerIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}
	if !token.Valid || claims.ViewerID == "" {
		return "", common.ErrInvalidToken
	}
	return claims.ViewerID, nil
}
