package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	jwtSecretKey          = "jwt_secret_key"
	accessTokenExpiryKey  = "access_token_expire"
	refreshTokenExpiryKey = "refresh_token_expire"
	refreshTokenLengthKey = "refresh_token_length"
)

// TokenConfig drives token issuance in the development auth backend.
type TokenConfig interface {
	GetJWTSecret() []byte
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetRefreshTokenLength() int
}

type Token struct {
	v *viper.Viper
}

var _ TokenConfig = Token{}

func (t Token) GetJWTSecret() []byte {
	return []byte(t.v.GetString(jwtSecretKey))
}

func (t Token) GetAccessTokenExpiry() time.Duration {
	if d := t.v.GetDuration(accessTokenExpiryKey); d > 0 {
		return d
	}
	return 30 * time.Minute
}

func (t Token) GetRefreshTokenExpiry() time.Duration {
	if d := t.v.GetDuration(refreshTokenExpiryKey); d > 0 {
		return d
	}
	return 7 * 24 * time.Hour // 7 days
}

func (t Token) GetRefreshTokenLength() int {
	if n := t.v.GetInt(refreshTokenLengthKey); n > 0 {
		return n
	}
	return 32 // 32 bytes = 256 bits
}
