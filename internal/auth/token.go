package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers malformed, expired, forged and revoked tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims identifies the user behind a bearer token.
type Claims struct {
	Username  string
	ID        string
	ExpiresAt time.Time
}

// Issuer signs and verifies HS256 bearer tokens and remembers logged-out
// token ids until they expire.
type Issuer struct {
	secret []byte
	ttl    time.Duration

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{
		secret:  []byte(secret),
		ttl:     ttl,
		revoked: make(map[string]time.Time),
	}
}

// Issue creates a token for username.
func (i *Issuer) Issue(username string) (string, Claims, error) {
	now := time.Now()
	c := Claims{
		Username:  username,
		ID:        uuid.NewString(),
		ExpiresAt: now.Add(i.ttl),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   c.Username,
		ID:        c.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
	})
	signed, err := t.SignedString(i.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, c, nil
}

// Parse verifies a token and returns its claims.
func (i *Issuer) Parse(tokenStr string) (Claims, error) {
	var rc jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenStr, &rc, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	if rc.Subject == "" || rc.ExpiresAt == nil {
		return Claims{}, ErrInvalidToken
	}

	i.mu.Lock()
	_, revoked := i.revoked[rc.ID]
	i.mu.Unlock()
	if revoked {
		return Claims{}, ErrInvalidToken
	}

	return Claims{Username: rc.Subject, ID: rc.ID, ExpiresAt: rc.ExpiresAt.Time}, nil
}

// Revoke invalidates the token described by c.
func (i *Issuer) Revoke(c Claims) {
	now := time.Now()

	i.mu.Lock()
	defer i.mu.Unlock()

	for id, exp := range i.revoked {
		if exp.Before(now) {
			delete(i.revoked, id)
		}
	}
	i.revoked[c.ID] = c.ExpiresAt
}
