// Package redirect moves the real SSH daemon off its well-known port and
// sends that port's traffic to the SSH decoy, and reverses the change.
package redirect

import (
	"fmt"
	"os"
	"strings"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/platform"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/privilege_check"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/state"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/systemd"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ServiceRestarter applies a changed sshd configuration.
type ServiceRestarter interface {
	Restart(rc *honey_io.RuntimeContext) ([]systemd.Attempt, error)
}

// Controller owns the diversion lifecycle for one host.
type Controller struct {
	Store     *state.Store
	Filter    platform.PacketFilter
	Restarter ServiceRestarter
	Scanner   ListenerScanner
	Picker    PortPicker

	SSHConfigPath string
	OriginalPort  int
	DecoyPort     int

	// RequireAdmin defaults to privilege_check.RequireAdmin.
	RequireAdmin func(rc *honey_io.RuntimeContext, operation string) error
}

// Options configures NewController.
type Options struct {
	StatePath     string
	Host          string
	SSHConfigPath string
	OriginalPort  int
	DecoyPort     int
	PortMin       int
	PortMax       int
	MaxAttempts   int
	Runner        execute.Runner
}

// DivertResult is returned by a successful Divert.
type DivertResult struct {
	SSHPort   int `json:"ssh_port"`
	DecoyPort int `json:"decoy_port"`
}

// RestoreResult is returned by Restore.
type RestoreResult struct {
	// Active is false when there was no diversion to restore.
	Active       bool `json:"active"`
	OriginalPort int  `json:"original_port,omitempty"`
}

// NewController wires the host implementations.
func NewController(opts Options) *Controller {
	if opts.OriginalPort == 0 {
		opts.OriginalPort = 22
	}
	if opts.DecoyPort == 0 {
		opts.DecoyPort = 2222
	}
	if opts.PortMin == 0 {
		opts.PortMin = 1024
	}
	if opts.PortMax == 0 {
		opts.PortMax = 65535
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 256
	}
	if opts.Runner == nil {
		opts.Runner = execute.DefaultRunner{}
	}
	return &Controller{
		Store:     state.NewStore(opts.StatePath, opts.Host),
		Filter:    platform.NewIptables(opts.Runner),
		Restarter: systemd.NewSSHRestarter(opts.Runner),
		Scanner:   SocketScanner{},
		Picker: PortPicker{
			Min:         opts.PortMin,
			Max:         opts.PortMax,
			MaxAttempts: opts.MaxAttempts,
			Reserved:    []int{opts.OriginalPort, opts.DecoyPort},
		},
		SSHConfigPath: opts.SSHConfigPath,
		OriginalPort:  opts.OriginalPort,
		DecoyPort:     opts.DecoyPort,
		RequireAdmin:  privilege_check.RequireAdmin,
	}
}

// Divert moves sshd to a free port and redirects the original port to the
// decoy. A failure after the configuration was changed is rolled back before
// the error is returned.
func (c *Controller) Divert(rc *honey_io.RuntimeContext) (*DivertResult, error) {
	_, span := telemetry.Start(rc.Ctx, "redirect.Divert")
	defer span.End()
	logger := otelzap.Ctx(rc.Ctx)

	// ASSESS
	if err := c.requireAdmin(rc, "create redirect"); err != nil {
		return nil, err
	}
	unlock, err := c.Store.Lock(rc)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, active, err := c.Store.Load(rc)
	if err != nil {
		return nil, err
	}
	if active {
		logger.Warn("Diversion already active", zap.Int("ssh_port", existing.SSHPort))
		return nil, honey_err.NewExpectedError(honey_err.NewAlreadyActiveError(
			fmt.Sprintf("SSH diversion (sshd on port %d, port %d redirected to %d)",
				existing.SSHPort, existing.OriginalSSHPort, existing.DecoyPort)))
	}
	if _, err := os.Stat(c.SSHConfigPath); err != nil {
		return nil, honey_err.NewSystemError("sshd configuration not readable", err,
			"Set ssh.config_path to the sshd_config in use")
	}

	port, err := c.Picker.Pick(rc, c.Scanner)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("ssh_port", port))

	// INTERVENE
	backup, err := BackupConfig(c.SSHConfigPath)
	if err != nil {
		return nil, err
	}
	st := &state.RedirectionState{
		SSHPort:         port,
		OriginalSSHPort: c.OriginalPort,
		DecoyPort:       c.DecoyPort,
		ConfigBackup:    backup,
	}
	if err := c.Store.Save(rc, st); err != nil {
		return nil, cerr.Wrap(err, "failed to record diversion intent")
	}

	if err := WritePort(c.SSHConfigPath, port); err != nil {
		return nil, c.rollback(rc, st, err)
	}
	logger.Info("Rewrote sshd port", zap.String("config", c.SSHConfigPath), zap.Int("port", port))

	if attempts, err := c.Restarter.Restart(rc); err != nil {
		return nil, c.rollback(rc, st, restartError(attempts, err))
	}

	if err := c.Filter.Add(rc, c.OriginalPort, c.DecoyPort); err != nil {
		return nil, c.rollback(rc, st, externalError(
			execute.CommandString("iptables", platform.RedirectRuleArgs("-A", c.OriginalPort, c.DecoyPort)...), err))
	}

	st.RuleInstalled = true
	if err := c.Store.Save(rc, st); err != nil {
		// host is fully diverted; only the flag is stale and Restore copes with that
		logger.Error("Failed to mark redirect rule installed", zap.Error(err))
	}

	// EVALUATE
	logger.Info("SSH diversion active",
		zap.Int("ssh_port", port),
		zap.Int("redirected_port", c.OriginalPort),
		zap.Int("decoy_port", c.DecoyPort))
	return &DivertResult{SSHPort: port, DecoyPort: c.DecoyPort}, nil
}

// rollback puts the sshd configuration back byte-for-byte, restarts sshd and
// drops the intent record. The record is kept if the configuration could not
// be put back, so Restore can finish the job.
func (c *Controller) rollback(rc *honey_io.RuntimeContext, st *state.RedirectionState, cause error) error {
	logger := otelzap.Ctx(rc.Ctx)
	logger.Warn("Rolling back diversion", zap.Error(cause))

	if err := RestoreConfig(c.SSHConfigPath, st.ConfigBackup); err != nil {
		logger.Error("Rollback could not restore sshd configuration", zap.Error(err))
		return cerr.CombineErrors(cause, err)
	}
	if _, err := c.Restarter.Restart(rc); err != nil {
		logger.Error("Rollback could not restart sshd", zap.Error(err))
		return cerr.CombineErrors(cause, cerr.Wrap(err, "rollback restart failed"))
	}
	if err := c.Store.Delete(rc); err != nil {
		return cerr.CombineErrors(cause, err)
	}
	logger.Info("Rollback complete", zap.String("config", c.SSHConfigPath))
	return cause
}

// Restore removes the redirect, puts sshd back on its original port and
// restarts it. The record is deleted only when every step succeeded.
func (c *Controller) Restore(rc *honey_io.RuntimeContext) (*RestoreResult, error) {
	_, span := telemetry.Start(rc.Ctx, "redirect.Restore")
	defer span.End()
	logger := otelzap.Ctx(rc.Ctx)

	// ASSESS
	if err := c.requireAdmin(rc, "delete redirect"); err != nil {
		return nil, err
	}
	unlock, err := c.Store.Lock(rc)
	if err != nil {
		return nil, err
	}
	defer unlock()

	st, active, err := c.Store.Load(rc)
	if err != nil {
		return nil, err
	}
	if !active {
		logger.Info("No active diversion")
		return &RestoreResult{Active: false}, nil
	}

	// INTERVENE
	var result error
	if err := c.Filter.Remove(rc, st.OriginalSSHPort, st.DecoyPort); err != nil {
		result = multierror.Append(result, externalError(
			execute.CommandString("iptables", platform.RedirectRuleArgs("-D", st.OriginalSSHPort, st.DecoyPort)...), err))
	}
	if err := WritePort(c.SSHConfigPath, st.OriginalSSHPort); err != nil {
		result = multierror.Append(result, err)
	}
	if attempts, err := c.Restarter.Restart(rc); err != nil {
		result = multierror.Append(result, restartError(attempts, err))
	}

	// EVALUATE
	if result != nil {
		logger.Error("Restore incomplete, keeping diversion record", zap.Error(result))
		return nil, cerr.Wrap(result, "restore incomplete")
	}
	if err := c.Store.Delete(rc); err != nil {
		return nil, err
	}
	logger.Info("SSH diversion removed", zap.Int("ssh_port", st.OriginalSSHPort))
	return &RestoreResult{Active: true, OriginalPort: st.OriginalSSHPort}, nil
}

// Status returns the active diversion record, if any.
func (c *Controller) Status(rc *honey_io.RuntimeContext) (*state.RedirectionState, bool, error) {
	return c.Store.Load(rc)
}

func (c *Controller) requireAdmin(rc *honey_io.RuntimeContext, op string) error {
	if c.RequireAdmin == nil {
		return privilege_check.RequireAdmin(rc, op)
	}
	return c.RequireAdmin(rc, op)
}

func restartError(attempts []systemd.Attempt, err error) error {
	var out strings.Builder
	for _, a := range attempts {
		fmt.Fprintf(&out, "$ %s\n", a.Strategy)
		if a.Output != "" {
			out.WriteString(strings.TrimRight(a.Output, "\n"))
			out.WriteByte('\n')
		}
	}
	return honey_err.NewExternalCommandError("ssh service restart", out.String(), err)
}

func externalError(command string, err error) error {
	if honey_err.Is(err, honey_err.CategoryExternalCommand) {
		return err
	}
	return honey_err.NewExternalCommandError(command, "", err)
}
