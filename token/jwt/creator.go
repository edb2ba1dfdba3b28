package jwt

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/flowcraft-client/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const accessTokenType = "access"

// Creator mints and verifies HS256 access tokens for the development backend.
type Creator struct {
	secret []byte
	expiry time.Duration
}

// NewCreator creates a new JWT creator
func NewCreator(secret []byte, expiry time.Duration) *Creator {
	return &Creator{
		secret: secret,
		expiry: expiry,
	}
}

// Expiry is the lifetime given to new access tokens.
func (c *Creator) Expiry() time.Duration {
	return c.expiry
}

// CreateAccessToken creates an access token for the user
func (c *Creator) CreateAccessToken(user *users.User) (string, error) {
	now := NowTimeFunc()
	claims := jwtlib.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"type":  accessTokenType,
		"iat":   now.Unix(),
		"exp":   now.Add(c.expiry).Unix(),
		"jti":   uuid.New().String(), // two tokens minted in the same second still differ
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, expiry and token type and returns the subject.
func (c *Creator) Verify(raw string) (string, error) {
	token, err := jwtlib.Parse(raw, func(t *jwtlib.Token) (any, error) {
		return c.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(NowTimeFunc),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("jwt.Verify: %w", err)
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return "", fmt.Errorf("jwt.Verify: unexpected claims type")
	}
	if claims["type"] != accessTokenType {
		return "", fmt.Errorf("jwt.Verify: not an access token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("jwt.Verify: missing subject")
	}
	return sub, nil
}
