// Package auth verifies bearer tokens on the cloud channel.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the parsed token claims.
type Claims struct {
	Subject string `json:"sub"`
	Issuer  string `json:"iss,omitempty"`
}

// VerifierConfig holds HS256 verification settings.
type VerifierConfig struct {
	SecretKey string
	Issuer    string // optional; enforced when set
}

// Verifier checks HS256-signed JWTs.
type Verifier struct {
	config VerifierConfig
}

// NewVerifier creates a verifier. The secret key is required.
func NewVerifier(config VerifierConfig) (*Verifier, error) {
	if config.SecretKey == "" {
		return nil, errors.New("HS256 requires secret key")
	}
	return &Verifier{config: config}, nil
}

// VerifyToken parses and validates tokenString and returns its claims.
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if v.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.config.SecretKey), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("missing or invalid 'sub' claim")
	}
	iss, _ := claims.GetIssuer()

	return &Claims{Subject: sub, Issuer: iss}, nil
}
