// Package visitor assigns pseudonymous visitor ids carried in a long-lived
// cookie. An id only deters casual double voting: clearing cookies or
// switching browsers yields a new one.
package visitor

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	CookieName = "visitorId"
	TokenTTL   = 365 * 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid visitor token")

// Identity is the resolved visitor for one request. Issued is true when the
// id was just generated and Token must be persisted by the caller.
type Identity struct {
	VisitorID string
	Token     string
	Issued    bool
}

// Provider resolves visitor tokens. Without a secret the token is the bare
// UUID; with one it is an HS256 JWT whose subject is the UUID.
type Provider struct {
	secret []byte
	now    func() time.Time
}

func NewProvider(secret string) *Provider {
	return &Provider{secret: []byte(secret), now: time.Now}
}

// GetOrAssign returns the visitor behind existingToken, or a fresh one when
// the token is absent or invalid.
func (p *Provider) GetOrAssign(existingToken string) (Identity, error) {
	if id, err := p.Parse(existingToken); err == nil {
		return Identity{VisitorID: id, Token: existingToken}, nil
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return Identity{}, fmt.Errorf("failed to generate visitor id: %w", err)
	}
	token, err := p.issue(id.String())
	if err != nil {
		return Identity{}, err
	}
	return Identity{VisitorID: id.String(), Token: token, Issued: true}, nil
}

// Parse validates a token and returns the visitor id it carries.
func (p *Provider) Parse(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	if len(p.secret) == 0 {
		if _, err := uuid.Parse(token); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return token, nil
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("%w: subject: %v", ErrInvalidToken, err)
	}
	return claims.Subject, nil
}

func (p *Provider) issue(visitorID string) (string, error) {
	if len(p.secret) == 0 {
		return visitorID, nil
	}
	now := p.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   visitorID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
	})
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign visitor token: %w", err)
	}
	return signed, nil
}

// Cookie builds the site-wide cookie persisting the identity's token.
// secure is only false for plain-HTTP local development.
func Cookie(id Identity, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    id.Token,
		Path:     "/",
		MaxAge:   int(TokenTTL / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
