package read

import (
	"fmt"
	"strconv"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/cmd_helpers"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_cli"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/output"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/state"
	"github.com/spf13/cobra"
)

var readRedirectCmd = &cobra.Command{
	Use:   "redirect",
	Short: "Show the active SSH redirect, if any",
	Args:  cobra.NoArgs,
	RunE:  honey_cli.Wrap(runReadRedirect),
}

type redirectView struct {
	Active bool                    `json:"active"`
	Host   string                  `json:"host"`
	State  *state.RedirectionState `json:"state,omitempty"`
}

func (v redirectView) Table(t *output.TableWriter) {
	if v.State == nil {
		return
	}
	t.WithHeaders("FIELD", "VALUE")
	t.AddRow("host", v.Host)
	t.AddRow("sshd port", strconv.Itoa(v.State.SSHPort))
	t.AddRow("original port", strconv.Itoa(v.State.OriginalSSHPort))
	t.AddRow("decoy port", strconv.Itoa(v.State.DecoyPort))
	t.AddRow("rule installed", strconv.FormatBool(v.State.RuleInstalled))
	t.AddRow("since", v.State.CreatedAt.Format("2006-01-02 15:04:05 MST"))
}

func runReadRedirect(rc *honey_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	p := cmd_helpers.Printer(cmd)

	svc, err := cmd_helpers.Load(rc, cmd, "")
	if err != nil {
		return cmd_helpers.Report(p, "", "Configuration error", nil, err)
	}

	st, ok, err := svc.Controller().Status(rc)
	if err != nil {
		return cmd_helpers.Report(p, "", "Cannot read redirect state", nil, err)
	}
	view := redirectView{Active: ok, Host: svc.Host, State: st}
	if !ok {
		return p.Success("No redirect is active", view)
	}
	return p.Success(fmt.Sprintf("Redirect active: sshd on port %d", st.SSHPort), view)
}
