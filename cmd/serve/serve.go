// cmd/serve/serve.go

package serve

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/api"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/cmd_helpers"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_cli"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/locator"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// ServeCmd runs the dashboard API.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard JSON API",
	Long: `Serves decoy status and lifecycle, the SSH redirect and captured Dionaea
events over HTTP until interrupted. Bind to loopback unless the listener sits
behind an authenticating proxy: the API has no authentication of its own.

With --restore-on-exit the SSH redirect is removed when the server is stopped
with Ctrl-C or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: honey_cli.Wrap(runServe),
}

func init() {
	ServeCmd.Flags().String("listen", "127.0.0.1:5000", "Address to listen on")
	ServeCmd.Flags().Bool("restore-on-exit", false, "Remove the SSH redirect on shutdown")
}

func runServe(rc *honey_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	logger := otelzap.Ctx(rc.Ctx)
	listen, _ := cmd.Flags().GetString("listen")
	restoreOnExit, _ := cmd.Flags().GetBool("restore-on-exit")
	cfgPath, _ := cmd.Flags().GetString("config")

	svc, err := cmd_helpers.Load(rc, cmd, "")
	if err != nil {
		return err
	}
	sup := svc.Supervisor(rc)
	ctl := svc.Controller()
	captures := cmd_helpers.NewCaptures(svc)

	srv := &api.Server{
		Decoys:   sup,
		Redirect: ctl,
		Captures: captures,
		SetPath: func(rc *honey_io.RuntimeContext, kind locator.Kind, path string) error {
			if err := svc.SetDecoyPath(rc, cfgPath, kind, path); err != nil {
				return err
			}
			sup.Hints[kind] = svc.Hint(kind)
			captures.Reset()
			return nil
		},
	}

	ctx, stop := signal.NotifyContext(rc.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var result error
	if err := srv.ListenAndServe(ctx, rc, listen); err != nil {
		result = multierror.Append(result, err)
	}

	if restoreOnExit {
		logger.Info("Restoring SSH configuration before exit")
		rr, err := ctl.Restore(rc)
		switch {
		case err != nil:
			result = multierror.Append(result, err)
		case rr.Active:
			logger.Info("SSH configuration restored", zap.Int("port", rr.OriginalPort))
		}
	}
	return result
}
