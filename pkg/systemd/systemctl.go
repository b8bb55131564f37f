package systemd

import (
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Strategy is one way of restarting a service.
type Strategy struct {
	Name    string
	Command string
	Args    []string
}

// Attempt records the outcome of one strategy.
type Attempt struct {
	Strategy string `json:"strategy"`
	Output   string `json:"output,omitempty"`
	Err      error  `json:"-"`
}

// SSHRestartStrategies covers the service names used by the common
// distributions, in the order they are tried.
func SSHRestartStrategies() []Strategy {
	return []Strategy{
		{Name: "systemctl restart sshd", Command: "systemctl", Args: []string{"restart", "sshd"}},
		{Name: "systemctl restart ssh", Command: "systemctl", Args: []string{"restart", "ssh"}},
		{Name: "service ssh restart", Command: "service", Args: []string{"ssh", "restart"}},
		{Name: "service sshd restart", Command: "service", Args: []string{"sshd", "restart"}},
	}
}

// Restarter runs strategies in order until one succeeds.
type Restarter struct {
	Runner     execute.Runner
	Strategies []Strategy
}

func NewSSHRestarter(runner execute.Runner) *Restarter {
	if runner == nil {
		runner = execute.DefaultRunner{}
	}
	return &Restarter{Runner: runner, Strategies: SSHRestartStrategies()}
}

// Restart stops at the first succeeding strategy. It fails only when every
// strategy failed; the error carries each attempt's output.
func (r *Restarter) Restart(rc *honey_io.RuntimeContext) ([]Attempt, error) {
	logger := otelzap.Ctx(rc.Ctx)
	attempts := make([]Attempt, 0, len(r.Strategies))

	for _, s := range r.Strategies {
		out, err := r.Runner.Run(rc.Ctx, execute.Options{
			Command: s.Command,
			Args:    s.Args,
			Capture: true,
		})
		attempts = append(attempts, Attempt{Strategy: s.Name, Output: out, Err: err})
		if err == nil {
			logger.Info("Service restarted", zap.String("strategy", s.Name))
			return attempts, nil
		}
		logger.Warn("Restart strategy failed", zap.String("strategy", s.Name), zap.Error(err))
	}

	var combined error
	for _, a := range attempts {
		combined = cerr.CombineErrors(combined, cerr.Wrapf(a.Err, "%s", a.Strategy))
	}
	if combined == nil {
		combined = cerr.New("no restart strategies configured")
	}
	return attempts, cerr.Wrap(combined, "all restart strategies failed")
}
