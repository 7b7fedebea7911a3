// Package auth issues and verifies the bearer tokens admin clients send.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/console/internal/config"
)

const issuer = "console"

var (
	ErrMissingSecret = errors.New("auth_secret_missing")
	ErrInvalidToken  = errors.New("invalid_token")
)

// Tokens signs HS256 tokens whose subject is the admin user id.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

func NewTokens(cfg config.Config) (*Tokens, error) {
	secret := strings.TrimSpace(cfg.AuthJWTSecret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	ttl := cfg.AuthTokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl}, nil
}

func (t *Tokens) Issue(userID snowflake.ID, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify returns the user id carried by a valid, unexpired token.
func (t *Tokens) Verify(raw string) (snowflake.ID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := snowflake.ParseString(claims.Subject)
	if err != nil || userID == 0 {
		return 0, ErrInvalidToken
	}
	return userID, nil
}
