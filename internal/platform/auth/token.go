package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"equipborrow-backend/internal/platform/ids"
)

// Claims carries the user id in sub plus the role and the session id the
// token is bound to.
type Claims struct {
	Role Role   `json:"role"`
	SID  string `json:"sid"`
	jwt.RegisteredClaims
}

type Tokens struct {
	secret []byte
	ttl    time.Duration
	clock  ids.Clock
}

func NewTokens(secret string, ttl time.Duration, clock ids.Clock) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, clock: clock}
}

func (t *Tokens) TTL() time.Duration { return t.ttl }

func (t *Tokens) Issue(userID string, role Role, sid string) (string, time.Time, error) {
	now := t.clock.Now()
	exp := now.Add(t.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		SID:  sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (t *Tokens) Parse(raw string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		// alg is pinned so "none" and RS/HS confusion are rejected.
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" || claims.SID == "" {
		return nil, errors.New("token missing sub or sid")
	}
	return &claims, nil
}
