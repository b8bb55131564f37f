package config

import "time"

const (
	DefaultConfigPath = "/etc/honeydash/honeydash.yaml"
	DefaultEnvPath    = "/etc/honeydash/honeydash.env"
	EnvPrefix         = "HONEYDASH"

	// DefaultDionaeaRoot is read when Dionaea is neither configured nor
	// located.
	DefaultDionaeaRoot = "/opt/dionaea"
)

// Config is the resolved honeydash configuration.
type Config struct {
	Cowrie   CowrieConfig   `mapstructure:"cowrie" validate:"required"`
	Dionaea  DionaeaConfig  `mapstructure:"dionaea" validate:"required"`
	SSH      SSHConfig      `mapstructure:"ssh" validate:"required"`
	Redirect RedirectConfig `mapstructure:"redirect" validate:"required"`
	Locator  LocatorConfig  `mapstructure:"locator" validate:"required"`
	SIEM     SIEMConfig     `mapstructure:"siem" validate:"required"`
}

// CowrieConfig points at the Cowrie installation. Path and Container are
// both optional; the locator searches the host when neither is set.
type CowrieConfig struct {
	Path      string `mapstructure:"path" validate:"omitempty,startswith=/"`
	Container string `mapstructure:"container"`
	// Port is the SSH listener Cowrie binds and the redirect target.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
	// LogPath overrides <root>/var/log/cowrie/cowrie.json.
	LogPath string `mapstructure:"log_path" validate:"omitempty,startswith=/"`
}

// DionaeaConfig points at the Dionaea installation.
type DionaeaConfig struct {
	Path      string `mapstructure:"path" validate:"omitempty,startswith=/"`
	Container string `mapstructure:"container"`
	// CaptureRoot overrides <root>/var/lib/dionaea.
	CaptureRoot string `mapstructure:"capture_root" validate:"omitempty,startswith=/"`
}

type SSHConfig struct {
	ConfigPath string `mapstructure:"config_path" validate:"required,startswith=/"`
	Port       int    `mapstructure:"port" validate:"min=1,max=65535"`
}

type RedirectConfig struct {
	StatePath   string `mapstructure:"state_path" validate:"required,startswith=/"`
	PortMin     int    `mapstructure:"port_min" validate:"min=1024,max=65535"`
	PortMax     int    `mapstructure:"port_max" validate:"min=1024,max=65535,gtefield=PortMin"`
	MaxAttempts int    `mapstructure:"max_attempts" validate:"min=1"`
}

type LocatorConfig struct {
	OptTimeout    time.Duration `mapstructure:"opt_timeout" validate:"gt=0"`
	GlobalTimeout time.Duration `mapstructure:"global_timeout" validate:"gt=0"`
}

type SIEMConfig struct {
	HECURL            string  `mapstructure:"hec_url" validate:"omitempty,url"`
	Token             string  `mapstructure:"token"`
	Index             string  `mapstructure:"index"`
	Sourcetype        string  `mapstructure:"sourcetype"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gt=0"`
	InsecureTLS       bool    `mapstructure:"insecure_tls"`
}
