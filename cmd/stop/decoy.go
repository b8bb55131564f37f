package stop

import (
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/cmd_helpers"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/decoy"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_cli"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/locator"
	"github.com/spf13/cobra"
)

// newDecoyCmd builds `honeydash stop <kind>`.
func newDecoyCmd(kind locator.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   string(kind),
		Short: "Stop " + decoy.DisplayName(kind),
		Args:  cobra.NoArgs,
		RunE: honey_cli.Wrap(func(rc *honey_io.RuntimeContext, cmd *cobra.Command, _ []string) error {
			return runStopDecoy(rc, cmd, kind)
		}),
	}
}

func runStopDecoy(rc *honey_io.RuntimeContext, cmd *cobra.Command, kind locator.Kind) error {
	p := cmd_helpers.Printer(cmd)

	svc, err := cmd_helpers.Load(rc, cmd, "")
	if err != nil {
		return cmd_helpers.Report(p, "", "Configuration error", nil, err)
	}

	err = svc.Supervisor(rc).Stop(rc, kind)
	return cmd_helpers.Report(p, decoy.DisplayName(kind)+" stopped", "Failed to stop "+decoy.DisplayName(kind), nil, err)
}
