// Package auth holds the credential primitives used by the auth service and
// the HTTP middleware: signed session tokens, password hashing and one-time
// codes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every parse, signature, expiry or kind failure.
var ErrInvalidToken = errors.New("invalid token")

// Token kinds, stored in the "typ" claim so a refresh token is never accepted
// as an access token.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Claims is the JWT payload. Subject carries the user id.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	Kind  string `json:"typ"`
	jwt.RegisteredClaims
}

// Pair is what a successful login returns.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// NewIssuer returns an Issuer. Secrets must differ; config validates that.
func NewIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, issuer string) *Issuer {
	return &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		issuer:        issuer,
		now:           time.Now,
	}
}

// Access signs an access token for the user.
func (i *Issuer) Access(userID, role, email string) (string, error) {
	return i.sign(KindAccess, userID, role, email, i.accessTTL, i.accessSecret)
}

// Pair signs an access and a refresh token.
func (i *Issuer) Pair(userID, role, email string) (Pair, error) {
	access, err := i.Access(userID, role, email)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := i.sign(KindRefresh, userID, role, email, i.refreshTTL, i.refreshSecret)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

// ParseAccess validates an access token.
func (i *Issuer) ParseAccess(token string) (*Claims, error) {
	return i.parse(token, KindAccess, i.accessSecret)
}

// ParseRefresh validates a refresh token.
func (i *Issuer) ParseRefresh(token string) (*Claims, error) {
	return i.parse(token, KindRefresh, i.refreshSecret)
}

func (i *Issuer) sign(kind, userID, role, email string, ttl time.Duration, secret []byte) (string, error) {
	now := i.now()
	claims := Claims{
		Role:  role,
		Email: email,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

func (i *Issuer) parse(token, kind string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != kind || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
