package update

import (
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/cmd_helpers"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/decoy"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_cli"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/locator"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// newDecoyCmd builds `honeydash update <kind>`.
func newDecoyCmd(kind locator.Kind) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: "Set " + decoy.DisplayName(kind) + "'s installation path or configure its listener",
		Long: `--path records the installation root in the configuration file after
checking that it looks like a real installation. --configure binds Cowrie's SSH
listener to the decoy port on all interfaces, creating etc/cowrie.cfg from
cowrie.cfg.dist when needed.`,
		Args: cobra.NoArgs,
		RunE: honey_cli.Wrap(func(rc *honey_io.RuntimeContext, cmd *cobra.Command, _ []string) error {
			return runUpdateDecoy(rc, cmd, kind)
		}),
	}
	cmd.Flags().String("path", "", "Installation root to record")
	cmd.Flags().Bool("configure", false, "Bind Cowrie's SSH listener to the decoy port")
	return cmd
}

func runUpdateDecoy(rc *honey_io.RuntimeContext, cmd *cobra.Command, kind locator.Kind) error {
	logger := otelzap.Ctx(rc.Ctx)
	p := cmd_helpers.Printer(cmd)

	path, _ := cmd.Flags().GetString("path")
	configure, _ := cmd.Flags().GetBool("configure")
	if path == "" && !configure {
		return cmd_helpers.Report(p, "", "Nothing to do", nil,
			honey_err.NewValidationError("nothing to update", "Pass --path and/or --configure"))
	}

	svc, err := cmd_helpers.Load(rc, cmd, "")
	if err != nil {
		return cmd_helpers.Report(p, "", "Configuration error", nil, err)
	}
	if path != "" {
		cfgPath, _ := cmd.Flags().GetString("config")
		if err := svc.SetDecoyPath(rc, cfgPath, kind, path); err != nil {
			return cmd_helpers.Report(p, "", "Cannot set path", nil, err)
		}
	}
	sup := svc.Supervisor(rc)

	if configure {
		changed, err := sup.Configure(rc, kind)
		if err != nil {
			return cmd_helpers.Report(p, "", "Configuration failed", nil, err)
		}
		if !changed {
			logger.Info("Listener already configured", zap.String("kind", string(kind)))
		}
	}

	r, err := sup.GetStatus(rc, kind)
	return cmd_helpers.Report(p, decoy.DisplayName(kind)+" updated", "Status check failed", r, err)
}
