package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	portKey       = "port"
	appNameKey    = "app_name"
	dataFolderKey = "data_folder"
	envKey        = "env"
	logLevelKey   = "log_level"
)

type EnvVars struct {
	v *viper.Viper
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.v.GetString(portKey)
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.v.GetString(appNameKey)
}

// GetDataFolder is where file-backed session state is kept.
func (e EnvVars) GetDataFolder() string {
	return e.v.GetString(dataFolderKey)
}

func (e EnvVars) GetEnv() string {
	env := strings.ToUpper(e.v.GetString(envKey))
	if env == "" {
		return "DEV"
	}
	return env
}

func (e EnvVars) GetLogLevel() string {
	return e.v.GetString(logLevelKey)
}
