package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoTokenSecret = errors.New("missing token secret")

// TokenService issues the short-lived tokens that guard the API.
type TokenService struct {
	Secret   []byte
	Issuer   string
	Duration time.Duration
}

func NewTokenService(secret string) (TokenService, error) {
	if secret == "" {
		return TokenService{}, ErrNoTokenSecret
	}
	return TokenService{Secret: []byte(secret), Issuer: "playlistfinder", Duration: 30 * time.Minute}, nil
}

// Sign generates a signed, expiring token.
func (ts TokenService) Sign() (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ts.Duration)

	claims := jwt.RegisteredClaims{
		Issuer:    ts.Issuer,
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return s, exp, nil
}

// Parse checks if a token is expired or forged.
func (ts TokenService) Parse(tokenString string) (*jwt.RegisteredClaims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		// enforce HS256
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.Secret, nil
	}, jwt.WithIssuer(ts.Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := tok.Claims.(*jwt.RegisteredClaims)
	if !ok || !tok.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
