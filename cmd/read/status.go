package read

import (
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/cmd_helpers"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/decoy"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_cli"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/locator"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/output"
	"github.com/spf13/cobra"
)

var readStatusCmd = &cobra.Command{
	Use:   "status [cowrie|dionaea]",
	Short: "Show whether each decoy is installed, configured and running",
	Args:  cobra.MaximumNArgs(1),
	RunE:  honey_cli.Wrap(runReadStatus),
}

type statusView []decoy.StatusReport

func (v statusView) Table(t *output.TableWriter) {
	t.WithHeaders("DECOY", "STATE", "LOCATION", "DETAIL")
	for _, r := range v {
		where := r.Service.Root
		if r.Service.Container != "" {
			where = "container:" + r.Service.Container
		}
		if where == "" {
			where = "-"
		}
		t.AddRow(decoy.DisplayName(r.Service.Kind), string(r.State), where, r.Message)
	}
}

func runReadStatus(rc *honey_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	p := cmd_helpers.Printer(cmd)

	kinds := []locator.Kind{locator.Cowrie, locator.Dionaea}
	if len(args) == 1 {
		kind, err := cmd_helpers.Kind(args[0])
		if err != nil {
			return cmd_helpers.Report(p, "", "Invalid decoy", nil, err)
		}
		kinds = []locator.Kind{kind}
	}

	svc, err := cmd_helpers.Load(rc, cmd, "")
	if err != nil {
		return cmd_helpers.Report(p, "", "Configuration error", nil, err)
	}
	sup := svc.Supervisor(rc)

	view := make(statusView, 0, len(kinds))
	for _, kind := range kinds {
		r, err := sup.GetStatus(rc, kind)
		if err != nil {
			return cmd_helpers.Report(p, "", "Status check failed", nil, err)
		}
		view = append(view, *r)
	}

	msg := view[0].Message
	if len(view) > 1 {
		msg = "Decoy status"
	}
	return p.Success(msg, view)
}
