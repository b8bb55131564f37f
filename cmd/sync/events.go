package sync

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/capture"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/cmd_helpers"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_cli"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

var syncEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Send normalized events to the Splunk HTTP Event Collector",
	Long: `Queries events like 'honeydash read events' and posts each one to the
collector configured under siem.*. With --follow, honeydash keeps running and
forwards new artifacts as Dionaea finishes writing them, until interrupted.
--restore-on-exit removes the SSH redirect when the follow loop is stopped with
Ctrl-C or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: honey_cli.Wrap(runSyncEvents),
}

func init() {
	syncEventsCmd.Flags().String("kind", "httpd", "Protocol: httpd, ftpd or mysqld")
	syncEventsCmd.Flags().Int("limit", 500, "Maximum number of events in the initial batch")
	syncEventsCmd.Flags().String("since", "", "Minimum timestamp (YYYY-MM-DD-HH-MM-SS)")
	syncEventsCmd.Flags().Bool("follow", false, "Keep forwarding new events until interrupted")
	syncEventsCmd.Flags().Bool("restore-on-exit", false, "Remove the SSH redirect when interrupted")
}

type syncResult struct {
	Kind      string `json:"kind"`
	Queried   int    `json:"queried"`
	Delivered int    `json:"delivered"`
	Restored  bool   `json:"restored,omitempty"`
}

func runSyncEvents(rc *honey_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	logger := otelzap.Ctx(rc.Ctx)
	p := cmd_helpers.Printer(cmd)

	kind, _ := cmd.Flags().GetString("kind")
	limit, _ := cmd.Flags().GetInt("limit")
	since, _ := cmd.Flags().GetString("since")
	follow, _ := cmd.Flags().GetBool("follow")
	restoreOnExit, _ := cmd.Flags().GetBool("restore-on-exit")

	svc, err := cmd_helpers.Load(rc, cmd, "")
	if err != nil {
		return cmd_helpers.Report(p, "", "Configuration error", nil, err)
	}
	hec, err := svc.SIEM()
	if err != nil {
		return cmd_helpers.Report(p, "", "SIEM is not configured", nil, err)
	}
	engine := svc.Engine(rc)

	// ASSESS
	events, err := engine.QueryEvents(rc, capture.Query{Kind: kind, Limit: limit, Since: since})
	if err != nil {
		return cmd_helpers.Report(p, "", "Event query failed", nil, err)
	}
	res := syncResult{Kind: kind, Queried: len(events)}

	// INTERVENE
	if len(events) > 0 {
		n, err := hec.SendEvents(rc, events)
		if err != nil {
			return cmd_helpers.Report(p, "", "Forwarding failed", nil, err)
		}
		res.Delivered = n
	}
	if !follow {
		return p.Success(fmt.Sprintf("Forwarded %d of %d %s events", res.Delivered, res.Queried, kind), res)
	}

	ctx, stop := signal.NotifyContext(rc.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Info("Following new artifacts; press Ctrl-C to stop", zap.String("kind", kind))

	var result error
	err = engine.Watch(ctx, rc, kind, func(e capture.CanonicalEvent) {
		n, err := hec.SendEvents(rc, []capture.CanonicalEvent{e})
		if err != nil {
			logger.Warn("Event not forwarded", zap.String("timestamp", e.Timestamp), zap.Error(err))
		}
		res.Queried++
		res.Delivered += n
	})
	if err != nil {
		result = multierror.Append(result, err)
	}

	// EVALUATE
	if restoreOnExit {
		logger.Info("Restoring SSH configuration before exit")
		rr, err := svc.Controller().Restore(rc)
		if err != nil {
			result = multierror.Append(result, err)
		} else {
			res.Restored = rr.Active
		}
	}
	if result != nil {
		return cmd_helpers.Report(p, "", "Follow ended with errors", nil, result)
	}
	return p.Success(fmt.Sprintf("Forwarded %d of %d %s events", res.Delivered, res.Queried, kind), res)
}
