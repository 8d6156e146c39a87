package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/roach88/tourdesk/internal/dataerr"
)

// DefaultTTL is the lifetime of an issued access token.
const DefaultTTL = time.Hour

const issuerName = "tourdesk"

type accessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
}

// Issuer mints and verifies HS256 access tokens.
type Issuer struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

// NewIssuer returns an Issuer signing with secret.
func NewIssuer(secret string) *Issuer {
	return &Issuer{Secret: []byte(secret), TTL: DefaultTTL, Now: time.Now}
}

func (i *Issuer) now() time.Time {
	if i.Now == nil {
		return time.Now()
	}
	return i.Now()
}

// Issue creates a session for u.
func (i *Issuer) Issue(u User) (Session, error) {
	if len(i.Secret) == 0 {
		return Session{}, errors.New("session issuer is not configured")
	}
	ttl := i.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := i.now()
	exp := now.Add(ttl)

	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: u.Email,
		Role:  u.Role,
		Name:  u.Name,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.Secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := randomToken()
	if err != nil {
		return Session{}, err
	}
	return Session{
		AccessToken:  token,
		RefreshToken: refresh,
		ExpiresAt:    exp.Unix(),
		User:         u,
	}, nil
}

// Verify parses an access token and returns the user it was issued to.
// Invalid, expired or foreign tokens are AUTH errors.
func (i *Issuer) Verify(token string) (User, error) {
	var parsed accessClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return i.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return User{}, dataerr.Auth("session expired")
		}
		return User{}, &dataerr.Error{Code: dataerr.CodeAuth, Message: "invalid access token", Cause: err}
	}
	return User{
		ID:    parsed.Subject,
		Email: parsed.Email,
		Role:  parsed.Role,
		Name:  parsed.Name,
	}, nil
}

func randomToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
