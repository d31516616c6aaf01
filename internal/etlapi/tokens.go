package etlapi

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims identifies the connector to the ETL API as an internal layer client.
type Claims struct {
	Access   string `json:"access"`
	Layer    string `json:"id"`
	Internal bool   `json:"internal"`
	jwt.RegisteredClaims
}

// TokenSigner mints short-lived HS256 layer tokens.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenSigner(secret string, ttl time.Duration) *TokenSigner {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TokenSigner{secret: []byte(secret), ttl: ttl}
}

// Sign returns a token granting layer access.
func (s *TokenSigner) Sign(layer string) (string, error) {
	now := time.Now()
	claims := Claims{
		Access:   "layer",
		Layer:    layer,
		Internal: true,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "etl-central-square",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
