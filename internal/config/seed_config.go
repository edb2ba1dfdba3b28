package config

import "github.com/spf13/viper"

const (
	demoUserEmailKey    = "demo_user_email"
	demoUserPasswordKey = "demo_user_password"
)

// SeedConfig names the account the stub backend creates at startup.
type SeedConfig interface {
	GetDemoUserEmail() string
	GetDemoUserPassword() string
}

type Seed struct {
	v *viper.Viper
}

var _ SeedConfig = Seed{}

// GetDemoUserEmail returns the demo account's email. Empty disables seeding.
func (s Seed) GetDemoUserEmail() string {
	return s.v.GetString(demoUserEmailKey)
}

// GetDemoUserPassword returns the demo account's password. Empty means one
// is generated and logged on first start.
func (s Seed) GetDemoUserPassword() string {
	return s.v.GetString(demoUserPasswordKey)
}
