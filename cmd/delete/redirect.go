package delete

import (
	"fmt"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/cmd_helpers"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_cli"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/spf13/cobra"
)

var deleteRedirectCmd = &cobra.Command{
	Use:     "redirect",
	Aliases: []string{"restore"},
	Short:   "Remove the SSH redirect and put sshd back on its original port",
	Long: `Removes the NAT rule, restores the sshd configuration from its backup and
restarts sshd. Failed steps are reported together and the recorded state is
kept so the command can be run again.`,
	Args: cobra.NoArgs,
	RunE: honey_cli.Wrap(runDeleteRedirect),
}

func runDeleteRedirect(rc *honey_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	p := cmd_helpers.Printer(cmd)

	svc, err := cmd_helpers.Load(rc, cmd, "")
	if err != nil {
		return cmd_helpers.Report(p, "", "Configuration error", nil, err)
	}

	res, err := svc.Controller().Restore(rc)
	if err != nil {
		return cmd_helpers.Report(p, "", "Restore incomplete", nil, err)
	}
	if !res.Active {
		return p.Success("No redirect is active", res)
	}
	return p.Success(fmt.Sprintf("Redirect removed: sshd is back on port %d", res.OriginalPort), res)
}
