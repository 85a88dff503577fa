// Package jwttest firma tokens para pruebas de los handlers y del verificador.
package jwttest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgjwt "github.com/jhoicas/stockledger-api/pkg/jwt"
)

// NewClaims claims con la identidad dada que vencen dentro de ttl (negativo: ya vencido).
func NewClaims(id pkgjwt.Identity, issuer string, ttl time.Duration) pkgjwt.Claims {
	now := time.Now()
	return pkgjwt.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    id.UserID,
		CompanyID: id.CompanyID,
		Role:      id.Role,
	}
}

// Sign firma claims con HS256.
func Sign(t testing.TB, secret string, claims pkgjwt.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("firmar token: %v", err)
	}
	return tok
}
