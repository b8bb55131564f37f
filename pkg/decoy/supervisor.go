package decoy

import (
	"os"
	"path/filepath"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/docker"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/locator"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/privilege_check"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/process"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Locator resolves where a decoy is installed.
type Locator interface {
	Locate(rc *honey_io.RuntimeContext, kind locator.Kind, hint locator.Hint) (*locator.Installation, bool)
}

// Containers controls containerised decoys.
type Containers interface {
	FindContainer(rc *honey_io.RuntimeContext, name string) (*docker.ContainerInfo, bool, error)
	IsRunning(rc *honey_io.RuntimeContext, id string) (bool, error)
	Start(rc *honey_io.RuntimeContext, id string) error
	Stop(rc *honey_io.RuntimeContext, id string) error
}

// Supervisor starts, stops and reports on decoys.
type Supervisor struct {
	Locator    Locator
	Runner     execute.Runner
	Processes  process.Lister
	Containers Containers
	Hints      map[locator.Kind]locator.Hint
	// CowriePort is the port Cowrie's SSH listener must bind.
	CowriePort int
	// SudoUser returns the unprivileged account Cowrie runs as.
	SudoUser func() string
}

func NewSupervisor(loc Locator, runner execute.Runner, containers Containers, hints map[locator.Kind]locator.Hint, cowriePort int) *Supervisor {
	if runner == nil {
		runner = execute.DefaultRunner{}
	}
	if cowriePort == 0 {
		cowriePort = 2222
	}
	return &Supervisor{
		Locator:    loc,
		Runner:     runner,
		Processes:  process.SystemLister{},
		Containers: containers,
		Hints:      hints,
		CowriePort: cowriePort,
		SudoUser:   privilege_check.SudoUser,
	}
}

// Discover checks installation, configuration and liveness of kind.
func (s *Supervisor) Discover(rc *honey_io.RuntimeContext, kind locator.Kind) (*ManagedService, error) {
	svc := &ManagedService{Kind: kind}

	inst, ok := s.Locator.Locate(rc, kind, s.Hints[kind])
	if !ok {
		return svc, nil
	}
	svc.Installed = true
	svc.Root = inst.Root
	svc.Container = inst.Container

	switch {
	case svc.Container != "":
		// the image carries its own listener configuration
		svc.Configured = true
	case kind == locator.Cowrie:
		configured, err := IsCowrieConfigured(svc.Root, s.CowriePort)
		if err != nil {
			return nil, err
		}
		svc.Configured = configured
	default:
		svc.Configured = true
	}

	running, err := s.IsRunning(rc, svc)
	if err != nil {
		return nil, err
	}
	svc.Running = running
	return svc, nil
}

// IsRunning checks the container state, or the process table for the
// decoy's own program.
func (s *Supervisor) IsRunning(rc *honey_io.RuntimeContext, svc *ManagedService) (bool, error) {
	if svc.Container != "" {
		if s.Containers == nil {
			return false, cerr.New("docker is not available")
		}
		info, ok, err := s.Containers.FindContainer(rc, svc.Container)
		if err != nil || !ok {
			return false, err
		}
		return s.Containers.IsRunning(rc, info.ID)
	}
	return process.IsRunning(rc, s.Processes, decoyProcess(svc.Kind))
}

// decoyProcess matches the decoy itself rather than any command line that
// mentions it. Cowrie is twistd running the cowrie plugin; Dionaea is its
// own executable.
func decoyProcess(kind locator.Kind) func(process.Match) bool {
	if kind == locator.Dionaea {
		return process.Executable("dionaea")
	}
	return func(m process.Match) bool {
		var twistd, plugin bool
		for _, a := range m.Args() {
			switch {
			case filepath.Base(a) == "twistd":
				twistd = true
			case a == "cowrie":
				plugin = true
			}
		}
		return twistd && plugin
	}
}

// GetStatus composes the decoy's status.
func (s *Supervisor) GetStatus(rc *honey_io.RuntimeContext, kind locator.Kind) (*StatusReport, error) {
	_, span := telemetry.Start(rc.Ctx, "decoy.GetStatus", attribute.String("kind", string(kind)))
	defer span.End()

	svc, err := s.Discover(rc, kind)
	if err != nil {
		return nil, err
	}
	r := Report(*svc)
	otelzap.Ctx(rc.Ctx).Info("Decoy status",
		zap.String("kind", string(kind)),
		zap.String("state", string(r.State)),
		zap.Bool("installed", svc.Installed),
		zap.Bool("configured", svc.Configured),
		zap.Bool("running", svc.Running))
	return &r, nil
}

// Configure binds Cowrie's SSH listener to the decoy port. It returns
// false when nothing needed changing.
func (s *Supervisor) Configure(rc *honey_io.RuntimeContext, kind locator.Kind) (bool, error) {
	if kind != locator.Cowrie {
		return false, honey_err.NewValidationError(DisplayName(kind) + " has no listener configuration to manage")
	}
	svc, err := s.Discover(rc, kind)
	if err != nil {
		return false, err
	}
	if !svc.Installed {
		return false, notInstalled(kind)
	}
	if svc.Container != "" {
		return false, honey_err.NewValidationError("containerised Cowrie is configured through its image, not by honeydash")
	}
	changed, err := ConfigureCowrie(svc.Root, s.CowriePort)
	if err != nil {
		return false, err
	}
	otelzap.Ctx(rc.Ctx).Info("Cowrie listener configured",
		zap.String("config", CowrieConfigPath(svc.Root)),
		zap.Int("port", s.CowriePort),
		zap.Bool("changed", changed))
	return changed, nil
}

// Start launches the decoy.
func (s *Supervisor) Start(rc *honey_io.RuntimeContext, kind locator.Kind) error {
	logger := otelzap.Ctx(rc.Ctx)

	// ASSESS
	svc, err := s.Discover(rc, kind)
	if err != nil {
		return err
	}
	if !svc.Installed {
		return notInstalled(kind)
	}
	if !svc.Configured {
		return notConfigured(kind,
			"the SSH listener is not bound to "+ListenEndpoint(s.CowriePort))
	}
	if svc.Running {
		return honey_err.NewExpectedError(honey_err.NewAlreadyActiveError(DisplayName(kind)))
	}

	// INTERVENE
	if svc.Container != "" {
		info, _, err := s.Containers.FindContainer(rc, svc.Container)
		if err != nil {
			return err
		}
		return s.Containers.Start(rc, info.ID)
	}
	opts, err := s.launchOptions(svc, "start")
	if err != nil {
		return err
	}
	if _, err := s.Runner.Run(rc.Ctx, opts); err != nil {
		return err
	}

	// EVALUATE
	logger.Info("Decoy started", zap.String("kind", string(kind)), zap.String("root", svc.Root))
	return nil
}

// Stop halts the decoy.
func (s *Supervisor) Stop(rc *honey_io.RuntimeContext, kind locator.Kind) error {
	logger := otelzap.Ctx(rc.Ctx)

	svc, err := s.Discover(rc, kind)
	if err != nil {
		return err
	}
	if !svc.Installed {
		return notInstalled(kind)
	}
	if !svc.Running {
		return honey_err.NewNotRunningError(DisplayName(kind))
	}

	switch {
	case svc.Container != "":
		info, _, err := s.Containers.FindContainer(rc, svc.Container)
		if err != nil {
			return err
		}
		err = s.Containers.Stop(rc, info.ID)
		if err != nil {
			return err
		}
	case kind == locator.Cowrie:
		opts, err := s.launchOptions(svc, "stop")
		if err != nil {
			return err
		}
		if _, err := s.Runner.Run(rc.Ctx, opts); err != nil {
			return err
		}
	default:
		matches, err := process.Find(rc, s.Processes, decoyProcess(kind))
		if err != nil {
			return err
		}
		pids := make([]int32, 0, len(matches))
		for _, m := range matches {
			pids = append(pids, m.PID)
		}
		if err := process.Terminate(rc, pids); err != nil {
			return err
		}
	}

	logger.Info("Decoy stopped", zap.String("kind", string(kind)))
	return nil
}

// launchOptions builds the command that starts or stops a process decoy.
// Cowrie refuses to run as root, so it is launched as the sudo caller with
// its virtualenv on PATH.
func (s *Supervisor) launchOptions(svc *ManagedService, action string) (execute.Options, error) {
	if svc.Kind == locator.Dionaea {
		return execute.Options{
			Command: filepath.Join(svc.Root, "bin", "dionaea"),
			Args:    []string{"-D", "-c", filepath.Join(svc.Root, "etc", "dionaea", "dionaea.cfg")},
			Dir:     svc.Root,
			Capture: true,
		}, nil
	}

	venv := filepath.Join(svc.Root, "cowrie-env")
	venvBin := filepath.Join(venv, "bin")
	path := venvBin + ":" + envOr("PATH", "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin")
	bin := filepath.Join(venvBin, "cowrie")

	user := ""
	if s.SudoUser != nil {
		user = s.SudoUser()
	}
	if user != "" && user != "root" {
		return execute.Options{
			Command: "sudo",
			Args:    []string{"-u", user, "env", "PATH=" + path, "VIRTUAL_ENV=" + venv, bin, action},
			Dir:     svc.Root,
			Capture: true,
		}, nil
	}
	if privilege_check.Geteuid() == 0 {
		return execute.Options{}, honey_err.NewValidationError(
			"Cowrie must not run as root",
			"Invoke honeydash through sudo from the account that owns the Cowrie installation")
	}
	return execute.Options{
		Command: bin,
		Args:    []string{action},
		Env:     []string{"PATH=" + path, "VIRTUAL_ENV=" + venv},
		Dir:     svc.Root,
		Capture: true,
	}, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
