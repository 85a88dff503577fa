package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims del token emitido por el proveedor de identidad: los registrados más la
// identidad del usuario dentro de su empresa.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	Role      string `json:"role"` // "admin" | "bodeguero" | "vendedor"
}

// Identity datos del llamador que el API toma del token.
type Identity struct {
	UserID    string
	CompanyID string
	Role      string
}

var (
	ErrEmptySecret     = errors.New("jwt: secret vacío")
	ErrMissingIdentity = errors.New("jwt: el token no trae user_id y company_id")
)

// Verifier valida tokens HMAC contra el secreto y, si se configuran, el emisor y la audiencia.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier construye el verificador. issuer y audience vacíos no se comprueban.
func NewVerifier(secret, issuer, audience string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg(),
		}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &Verifier{secret: []byte(secret), parser: jwt.NewParser(opts...)}, nil
}

// Verify valida firma, vigencia, emisor y audiencia, y devuelve la identidad del token.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	var claims Claims
	_, err := v.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("jwt: %w", err)
	}
	if claims.UserID == "" || claims.CompanyID == "" {
		return Identity{}, ErrMissingIdentity
	}
	return Identity{UserID: claims.UserID, CompanyID: claims.CompanyID, Role: claims.Role}, nil
}
