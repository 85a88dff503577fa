package jwt_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgjwt "github.com/jhoicas/stockledger-api/pkg/jwt"
	"github.com/jhoicas/stockledger-api/pkg/jwt/jwttest"
)

const (
	secret   = "test-secret-key-for-unit-tests"
	issuer   = "stock-ledger"
	audience = "stock-ledger-api"
)

var who = pkgjwt.Identity{
	UserID:    "00000000-0000-0000-0000-000000000001",
	CompanyID: "00000000-0000-0000-0000-000000000002",
	Role:      "bodeguero",
}

func newVerifier(t *testing.T, iss, aud string) *pkgjwt.Verifier {
	t.Helper()
	v, err := pkgjwt.NewVerifier(secret, iss, aud)
	require.NoError(t, err)
	return v
}

func TestNewVerifier_SecretVacio(t *testing.T) {
	_, err := pkgjwt.NewVerifier("", issuer, "")
	assert.ErrorIs(t, err, pkgjwt.ErrEmptySecret)
}

func TestVerify_TokenValido(t *testing.T) {
	claims := jwttest.NewClaims(who, issuer, time.Hour)
	claims.Audience = jwt.ClaimStrings{audience, "otra"}

	got, err := newVerifier(t, issuer, audience).Verify(jwttest.Sign(t, secret, claims))
	require.NoError(t, err)
	assert.Equal(t, who, got)
}

func TestVerify_Rechazos(t *testing.T) {
	v := newVerifier(t, issuer, audience)
	withAud := func(c pkgjwt.Claims) pkgjwt.Claims {
		c.Audience = jwt.ClaimStrings{audience}
		return c
	}

	tests := []struct {
		name  string
		token string
	}{
		{"expirado", jwttest.Sign(t, secret, withAud(jwttest.NewClaims(who, issuer, -time.Hour)))},
		{"otro secreto", jwttest.Sign(t, "otro-secret", withAud(jwttest.NewClaims(who, issuer, time.Hour)))},
		{"otro emisor", jwttest.Sign(t, secret, withAud(jwttest.NewClaims(who, "intruso", time.Hour)))},
		{"sin audiencia", jwttest.Sign(t, secret, jwttest.NewClaims(who, issuer, time.Hour))},
		{"malformado", "token.invalido.aqui"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestVerify_SinVencimiento(t *testing.T) {
	claims := jwttest.NewClaims(who, issuer, time.Hour)
	claims.ExpiresAt = nil

	_, err := newVerifier(t, "", "").Verify(jwttest.Sign(t, secret, claims))
	assert.Error(t, err)
}

func TestVerify_AlgoritmoNone(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwttest.NewClaims(who, issuer, time.Hour)).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newVerifier(t, "", "").Verify(tok)
	assert.Error(t, err)
}

func TestVerify_IdentidadIncompleta(t *testing.T) {
	v := newVerifier(t, "", "")
	for _, id := range []pkgjwt.Identity{
		{CompanyID: who.CompanyID, Role: "admin"},
		{UserID: who.UserID, Role: "admin"},
	} {
		_, err := v.Verify(jwttest.Sign(t, secret, jwttest.NewClaims(id, issuer, time.Hour)))
		assert.ErrorIs(t, err, pkgjwt.ErrMissingIdentity)
	}
}

func TestVerify_EmisorYAudienciaOpcionales(t *testing.T) {
	got, err := newVerifier(t, "", "").Verify(jwttest.Sign(t, secret, jwttest.NewClaims(who, "cualquiera", time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, who.UserID, got.UserID)
}
