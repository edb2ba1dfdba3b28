package authmodel

import (
	"time"

	"golang.org/x/oauth2"
)

// TokenResponse is returned by POST /auth/login and POST /auth/refresh.
type TokenResponse struct {
	// AccessToken is the short-lived bearer credential.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken string `json:"access_token"`

	// RefreshToken is only ever sent back to POST /auth/refresh.
	// The server rotates it on every refresh; the previous value is dead after use.
	RefreshToken string `json:"refresh_token"`

	// TokenType is always "bearer".
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token. When absent
	// the store falls back to a JWT access token's "exp" claim.
	ExpiresIn int `json:"expires_in,omitempty"`
}

// Complete reports whether both halves of the pair are present.
func (t TokenResponse) Complete() bool {
	return t.AccessToken != "" && t.RefreshToken != ""
}

// Token converts the response into an oauth2.Token, resolving ExpiresIn against now.
func (t TokenResponse) Token(now time.Time) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
	}
	if t.ExpiresIn > 0 {
		tok.Expiry = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return tok
}
