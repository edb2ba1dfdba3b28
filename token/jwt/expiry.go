package jwt

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ExpiresAt reads the "exp" claim of a JWT without verifying its signature.
// The client holds no key; the value is only a hint for logging and
// oauth2.Token.Expiry. Opaque (non-JWT) tokens report false.
func ExpiresAt(raw string) (time.Time, bool) {
	claims := jwtlib.MapClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
