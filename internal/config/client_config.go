package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	apiBaseURLKey     = "api_base_url"
	sessionBackendKey = "session_backend"
	redisURLKey       = "redis_url"
	requestTimeoutKey = "request_timeout"
)

// Session persistence backends.
const (
	SessionBackendFile   = "file"
	SessionBackendRedis  = "redis"
	SessionBackendMemory = "memory"
)

type ClientConfig interface {
	GetAPIBaseURL() string
	GetSessionBackend() string
	GetRedisURL() string
	GetRequestTimeout() time.Duration
}

type Client struct {
	v *viper.Viper
}

var _ ClientConfig = Client{}

// GetAPIBaseURL returns the backend root all API paths are joined to (e.g. "https://api.flowcraft.ai/api/v1").
func (c Client) GetAPIBaseURL() string {
	return c.v.GetString(apiBaseURLKey)
}

func (c Client) GetSessionBackend() string {
	switch backend := c.v.GetString(sessionBackendKey); backend {
	case SessionBackendRedis, SessionBackendMemory:
		return backend
	default:
		return SessionBackendFile
	}
}

func (c Client) GetRedisURL() string {
	return c.v.GetString(redisURLKey)
}

func (c Client) GetRequestTimeout() time.Duration {
	timeout := c.v.GetDuration(requestTimeoutKey)
	if timeout <= 0 {
		return 30 * time.Second
	}
	return timeout
}
