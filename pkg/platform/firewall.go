package platform

import (
	"strconv"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// PacketFilter installs and removes a TCP port redirect in front of the
// local stack.
type PacketFilter interface {
	Exists(rc *honey_io.RuntimeContext, from, to int) (bool, error)
	Add(rc *honey_io.RuntimeContext, from, to int) error
	Remove(rc *honey_io.RuntimeContext, from, to int) error
}

// Iptables manages `-t nat PREROUTING -p tcp --dport FROM -j REDIRECT
// --to-port TO` rules.
type Iptables struct {
	Runner execute.Runner
	// Binary defaults to "iptables".
	Binary string
}

func NewIptables(runner execute.Runner) *Iptables {
	if runner == nil {
		runner = execute.DefaultRunner{}
	}
	return &Iptables{Runner: runner, Binary: "iptables"}
}

// RedirectRuleArgs returns the iptables arguments for op (-A, -C or -D).
func RedirectRuleArgs(op string, from, to int) []string {
	return []string{
		"-t", "nat", op, "PREROUTING",
		"-p", "tcp", "--dport", strconv.Itoa(from),
		"-j", "REDIRECT", "--to-port", strconv.Itoa(to),
	}
}

// Exists runs `iptables -C`. Only exit status 1 means the rule is absent;
// any other failure (xtables lock held, missing privileges) is returned.
func (i *Iptables) Exists(rc *honey_io.RuntimeContext, from, to int) (bool, error) {
	args := RedirectRuleArgs("-C", from, to)
	out, err := i.Runner.Run(rc.Ctx, execute.Options{
		Command: i.binary(),
		Args:    args,
		Capture: true,
	})
	if err == nil {
		return true, nil
	}
	if code, ok := execute.ExitStatus(err); ok && code == 1 && !execute.IsTimeout(err) {
		return false, nil
	}
	if honey_err.Is(err, honey_err.CategoryExternalCommand) {
		return false, err
	}
	return false, honey_err.NewExternalCommandError(execute.CommandString(i.binary(), args...), out, err)
}

func (i *Iptables) Add(rc *honey_io.RuntimeContext, from, to int) error {
	logger := otelzap.Ctx(rc.Ctx)
	logger.Info("Installing port redirect", zap.Int("from", from), zap.Int("to", to))
	_, err := i.Runner.Run(rc.Ctx, execute.Options{
		Command: i.binary(),
		Args:    RedirectRuleArgs("-A", from, to),
		Capture: true,
	})
	return err
}

// Remove deletes the rule if it is present. Removing an absent rule is not
// an error.
func (i *Iptables) Remove(rc *honey_io.RuntimeContext, from, to int) error {
	logger := otelzap.Ctx(rc.Ctx)
	present, err := i.Exists(rc, from, to)
	if err != nil {
		return err
	}
	if !present {
		logger.Info("Port redirect already absent", zap.Int("from", from), zap.Int("to", to))
		return nil
	}
	logger.Info("Removing port redirect", zap.Int("from", from), zap.Int("to", to))
	_, err = i.Runner.Run(rc.Ctx, execute.Options{
		Command: i.binary(),
		Args:    RedirectRuleArgs("-D", from, to),
		Capture: true,
	})
	return err
}

func (i *Iptables) binary() string {
	if i.Binary == "" {
		return "iptables"
	}
	return i.Binary
}
