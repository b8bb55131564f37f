// Package cmd_helpers builds the services a command needs from the
// resolved configuration, so every command wires them the same way.
package cmd_helpers

import (
	"os"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/capture"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/cli"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/config"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/decoy"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/docker"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/locator"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/output"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/redirect"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/siem"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Services holds the configuration and lazily built clients of one command
// invocation.
type Services struct {
	Config *config.Config
	Host   string
	// Locator defaults to probing the host; tests substitute a fake.
	Locator decoy.Locator

	docker      *docker.Client
	dockerTried bool
}

// Load resolves configuration for cmd. Local flags are bound under
// flagPrefix (for example "redirect") so they override file and
// environment values; an empty prefix binds nothing.
func Load(rc *honey_io.RuntimeContext, cmd *cobra.Command, flagPrefix string) (*Services, error) {
	v := viper.New()
	if flagPrefix != "" {
		if err := cli.BindFlagsToViper(cmd, v, flagPrefix); err != nil {
			return nil, err
		}
	}

	path, _ := cmd.Flags().GetString("config")
	envPath, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(v, path, envPath)
	if err != nil {
		return nil, err
	}

	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	otelzap.Ctx(rc.Ctx).Debug("Configuration loaded",
		zap.String("config", path),
		zap.String("host", host))
	return &Services{Config: cfg, Host: host}, nil
}

// Printer honours the global --json flag.
func Printer(cmd *cobra.Command) *output.Printer {
	asJSON, _ := cmd.Flags().GetBool("json")
	return output.NewPrinter(asJSON)
}

// Kind parses a decoy argument.
func Kind(arg string) (locator.Kind, error) {
	kind, ok := locator.ParseKind(arg)
	if !ok {
		return "", honey_err.NewValidationError("unknown decoy "+arg, "Use cowrie or dionaea")
	}
	return kind, nil
}

// Docker connects to the daemon only when a decoy is configured as a
// container. It returns nil when none is, or when the daemon is down.
func (s *Services) Docker(rc *honey_io.RuntimeContext) *docker.Client {
	if s.dockerTried {
		return s.docker
	}
	s.dockerTried = true
	if s.Config.Cowrie.Container == "" && s.Config.Dionaea.Container == "" {
		return nil
	}
	c, err := docker.New(rc.Ctx)
	if err != nil {
		otelzap.Ctx(rc.Ctx).Warn("Docker is unavailable; containerised decoys will be reported as not installed", zap.Error(err))
		return nil
	}
	s.docker = c
	return c
}

// Controller builds the diversion controller for this host.
func (s *Services) Controller() *redirect.Controller {
	c := s.Config
	return redirect.NewController(redirect.Options{
		StatePath:     c.Redirect.StatePath,
		Host:          s.Host,
		SSHConfigPath: c.SSH.ConfigPath,
		OriginalPort:  c.SSH.Port,
		DecoyPort:     c.Cowrie.Port,
		PortMin:       c.Redirect.PortMin,
		PortMax:       c.Redirect.PortMax,
		MaxAttempts:   c.Redirect.MaxAttempts,
	})
}

// Hint returns the configured location of kind.
func (s *Services) Hint(kind locator.Kind) locator.Hint {
	switch kind {
	case locator.Cowrie:
		return locator.Hint{Path: s.Config.Cowrie.Path, Container: s.Config.Cowrie.Container}
	case locator.Dionaea:
		return locator.Hint{Path: s.Config.Dionaea.Path, Container: s.Config.Dionaea.Container}
	}
	return locator.Hint{}
}

func (s *Services) locator(rc *honey_io.RuntimeContext) decoy.Locator {
	if s.Locator == nil {
		var finder locator.ContainerFinder
		if d := s.Docker(rc); d != nil {
			finder = d
		}
		c := s.Config.Locator
		s.Locator = locator.New(nil, finder, c.OptTimeout, c.GlobalTimeout)
	}
	return s.Locator
}

// Supervisor builds the lifecycle supervisor with the configured hints.
func (s *Services) Supervisor(rc *honey_io.RuntimeContext) *decoy.Supervisor {
	var containers decoy.Containers
	if d := s.Docker(rc); d != nil {
		containers = d
	}
	hints := map[locator.Kind]locator.Hint{
		locator.Cowrie:  s.Hint(locator.Cowrie),
		locator.Dionaea: s.Hint(locator.Dionaea),
	}
	return decoy.NewSupervisor(s.locator(rc), nil, containers, hints, s.Config.Cowrie.Port)
}

// CaptureRoot resolves Dionaea's capture directory from dionaea.capture_root,
// then dionaea.path, then the installation the locator finds, and finally
// the default /opt layout.
func (s *Services) CaptureRoot(rc *honey_io.RuntimeContext) string {
	c := s.Config.Dionaea
	switch {
	case c.CaptureRoot != "":
		return c.CaptureRoot
	case c.Path != "":
		return capture.DionaeaCaptureRoot(c.Path)
	}
	if inst, ok := s.locator(rc).Locate(rc, locator.Dionaea, s.Hint(locator.Dionaea)); ok && inst.Root != "" {
		return capture.DionaeaCaptureRoot(inst.Root)
	}
	root := capture.DionaeaCaptureRoot(config.DefaultDionaeaRoot)
	otelzap.Ctx(rc.Ctx).Warn("Dionaea not located; reading the default capture root",
		zap.String("capture_root", root))
	return root
}

// CowrieLogPath resolves Cowrie's JSON event log.
func (s *Services) CowrieLogPath(rc *honey_io.RuntimeContext) (string, error) {
	c := s.Config.Cowrie
	switch {
	case c.LogPath != "":
		return c.LogPath, nil
	case c.Path != "":
		return capture.CowrieLogPath(c.Path), nil
	}
	inst, ok := s.locator(rc).Locate(rc, locator.Cowrie, s.Hint(locator.Cowrie))
	if !ok {
		return "", honey_err.NewNotInstalledError("Cowrie",
			"Set cowrie.path, or cowrie.log_path to the cowrie.json to read")
	}
	if inst.Root == "" {
		return "", honey_err.NewNotConfiguredError("Cowrie",
			"the log of container "+inst.Container+" is not visible on the host",
			"Mount the container's var/log/cowrie and set cowrie.log_path")
	}
	return capture.CowrieLogPath(inst.Root), nil
}

// Engine reads the Dionaea capture root.
func (s *Services) Engine(rc *honey_io.RuntimeContext) *capture.Engine {
	return capture.New(s.CaptureRoot(rc))
}

// SetDecoyPath validates an installation root, records it in the
// configuration file at cfgPath and applies it to this invocation.
func (s *Services) SetDecoyPath(rc *honey_io.RuntimeContext, cfgPath string, kind locator.Kind, path string) error {
	if !locator.Validate(kind, path) {
		return honey_err.NewValidationError(path + " is not a valid " + decoy.DisplayName(kind) + " installation")
	}
	if err := config.SaveDecoySetting(cfgPath, string(kind), "path", path); err != nil {
		return err
	}
	switch kind {
	case locator.Cowrie:
		s.Config.Cowrie.Path = path
	case locator.Dionaea:
		s.Config.Dionaea.Path = path
	}
	otelzap.Ctx(rc.Ctx).Info("Decoy path recorded",
		zap.String("kind", string(kind)),
		zap.String("path", path),
		zap.String("config", cfgPath))
	return nil
}

// SIEM builds the HEC client.
func (s *Services) SIEM() (*siem.HECClient, error) {
	c := s.Config.SIEM
	return siem.NewHECClient(siem.Config{
		URL:               c.HECURL,
		Token:             c.Token,
		Index:             c.Index,
		Sourcetype:        c.Sourcetype,
		RequestsPerSecond: c.RequestsPerSecond,
		InsecureTLS:       c.InsecureTLS,
	}, nil)
}

// Report prints the outcome of a command. On failure the JSON envelope
// carries failMsg and the error; the error is returned unchanged.
func Report(p *output.Printer, okMsg, failMsg string, data interface{}, err error) error {
	if err != nil {
		_ = p.Failure(failMsg, err)
		return err
	}
	return p.Success(okMsg, data)
}
