package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "FLOWCRAFT"

type Config interface {
	EnvConfig
	ClientConfig
	TokenConfig
	CorsConfig
	SeedConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Client
	Token
	Cors
	Seed
}

// New returns configuration read from FLOWCRAFT_* environment variables.
func New() Config {
	return newConfig(newViper())
}

// NewFromFile layers a config file (yaml, json, toml) under the environment.
// Environment variables still take precedence over file values.
func NewFromFile(path string) (Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config.NewFromFile %s: %w", path, err)
	}
	return newConfig(v), nil
}

func newConfig(v *viper.Viper) Config {
	return mainConfig{
		EnvVars: EnvVars{v: v},
		Client:  Client{v: v},
		Token:   Token{v: v},
		Cors:    Cors{v: v},
		Seed:    Seed{v: v},
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(portKey, "8000")
	v.SetDefault(appNameKey, "FlowCraft AI")
	v.SetDefault(dataFolderKey, "./data")
	v.SetDefault(envKey, "DEV")
	v.SetDefault(logLevelKey, "info")

	v.SetDefault(apiBaseURLKey, "http://localhost:8000/api/v1")
	v.SetDefault(sessionBackendKey, SessionBackendFile)
	v.SetDefault(redisURLKey, "redis://localhost:6379/0")
	v.SetDefault(requestTimeoutKey, "30s")

	v.SetDefault(jwtSecretKey, "flowcraft-dev-secret-change-me")
	v.SetDefault(accessTokenExpiryKey, "30m")
	v.SetDefault(refreshTokenExpiryKey, "168h")
	v.SetDefault(refreshTokenLengthKey, 32)

	v.SetDefault(allowedOriginsKey, "http://localhost:3000")
	v.SetDefault(demoUserEmailKey, "demo@flowcraft.ai")
}
