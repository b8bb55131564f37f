package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/cli"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	cerr "github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// SetDefaults registers every key so that environment overrides resolve.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("cowrie.path", "")
	v.SetDefault("cowrie.container", "")
	v.SetDefault("cowrie.port", 2222)
	v.SetDefault("cowrie.log_path", "")
	v.SetDefault("dionaea.path", "")
	v.SetDefault("dionaea.container", "")
	v.SetDefault("dionaea.capture_root", "")

	v.SetDefault("ssh.config_path", "/etc/ssh/sshd_config")
	v.SetDefault("ssh.port", 22)

	v.SetDefault("redirect.state_path", "/var/lib/honeydash/redirect_state.json")
	v.SetDefault("redirect.port_min", 1024)
	v.SetDefault("redirect.port_max", 65535)
	v.SetDefault("redirect.max_attempts", 256)

	v.SetDefault("locator.opt_timeout", "7s")
	v.SetDefault("locator.global_timeout", "30s")

	v.SetDefault("siem.hec_url", "http://localhost:8088/services/collector")
	v.SetDefault("siem.token", "")
	v.SetDefault("siem.index", "main")
	v.SetDefault("siem.sourcetype", "honeydash")
	v.SetDefault("siem.requests_per_second", 20)
	v.SetDefault("siem.insecure_tls", false)
}

// Load resolves configuration from defaults, the optional env file, the
// optional YAML file at path, and HONEYDASH_* variables.
func Load(v *viper.Viper, path, envPath string) (*Config, error) {
	SetDefaults(v)

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, cerr.Wrapf(err, "failed to load env file %s", envPath)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, cerr.Wrapf(err, "failed to read config %s", path)
			}
		}
	}

	cli.SetViperEnvPrefix(v, EnvPrefix)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, cerr.Wrap(err, "failed to decode configuration")
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return honey_err.WrapValidationError(
			honey_err.NewValidationError("invalid configuration: "+err.Error(),
				"Check "+DefaultConfigPath+" and HONEYDASH_* environment variables"))
	}
	return nil
}

// SaveDecoySetting persists key under section (for example cowrie.path) in
// the YAML file at path, keeping every other key.
func SaveDecoySetting(path, section, key, value string) error {
	doc := map[string]interface{}{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return cerr.Wrapf(err, "failed to parse %s", path)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cerr.Wrapf(err, "failed to read %s", path)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}

	sec, _ := doc[section].(map[string]interface{})
	if sec == nil {
		sec = map[string]interface{}{}
	}
	sec[key] = value
	doc[section] = sec

	out, err := yaml.Marshal(doc)
	if err != nil {
		return cerr.Wrap(err, "failed to encode configuration")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return cerr.Wrapf(err, "failed to create %s", filepath.Dir(path))
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0640); err != nil {
		return cerr.Wrapf(err, "failed to write %s", tmp)
	}
	return os.Rename(tmp, path)
}
