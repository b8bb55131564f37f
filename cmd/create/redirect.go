package create

import (
	"fmt"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/cmd_helpers"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_cli"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

var createRedirectCmd = &cobra.Command{
	Use:   "redirect",
	Short: "Move sshd to a free port and redirect the SSH port to Cowrie",
	Long: `Moves the real SSH daemon to a randomly chosen free port and installs an
iptables NAT rule that sends connections for the original port to the Cowrie
listener. The previous sshd configuration is kept as a backup and the change is
recorded so that 'honeydash delete redirect' can undo it.

Requires root. Note the new SSH port before disconnecting.`,
	Args: cobra.NoArgs,
	RunE: honey_cli.Wrap(runCreateRedirect),
}

func init() {
	createRedirectCmd.Flags().Int("port-min", 1024, "Lowest port sshd may be moved to")
	createRedirectCmd.Flags().Int("port-max", 65535, "Highest port sshd may be moved to")
	createRedirectCmd.Flags().Int("max-attempts", 256, "Candidate ports to try before giving up")
}

func runCreateRedirect(rc *honey_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	logger := otelzap.Ctx(rc.Ctx)
	p := cmd_helpers.Printer(cmd)

	svc, err := cmd_helpers.Load(rc, cmd, "redirect")
	if err != nil {
		return cmd_helpers.Report(p, "", "Configuration error", nil, err)
	}

	res, err := svc.Controller().Divert(rc)
	if err != nil {
		return cmd_helpers.Report(p, "", "Redirect failed", nil, err)
	}
	logger.Info("SSH redirect active",
		zap.Int("ssh_port", res.SSHPort),
		zap.Int("decoy_port", res.DecoyPort))

	msg := fmt.Sprintf("Redirect active: sshd now listens on port %d; port %d goes to Cowrie on %d",
		res.SSHPort, svc.Config.SSH.Port, res.DecoyPort)
	return p.Success(msg, res)
}
