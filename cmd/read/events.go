package read

import (
	"fmt"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/capture"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/cmd_helpers"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_cli"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/output"
	"github.com/spf13/cobra"
)

var readEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show normalized events from Dionaea's protocol transcripts",
	Long: `Parses Dionaea bistreams of one protocol into events. --kind selects the
protocol (httpd, ftpd or mysqld), --limit caps the number of events and --since
keeps only artifacts captured at or after a YYYY-MM-DD-HH-MM-SS timestamp.

MySQL passwords are recovered heuristically from the handshake and are
advisory.`,
	Args: cobra.NoArgs,
	RunE: honey_cli.Wrap(runReadEvents),
}

func init() {
	readEventsCmd.Flags().String("kind", "httpd", "Protocol: httpd, ftpd or mysqld")
	readEventsCmd.Flags().Int("limit", 50, "Maximum number of events")
	readEventsCmd.Flags().String("since", "", "Minimum timestamp (YYYY-MM-DD-HH-MM-SS)")
}

type eventsView []capture.CanonicalEvent

func (v eventsView) Table(t *output.TableWriter) {
	t.WithHeaders("TIMESTAMP", "SOURCE", "METHOD", "PATH", "USERNAME", "PASSWORD", "FILENAME", "USER AGENT")
	for _, e := range v {
		t.AddRow(e.Timestamp, val(e.SrcIP), val(e.Method), val(e.Path),
			val(e.Username), val(e.Password), val(e.Filename), val(e.UserAgent))
	}
}

func val(s *string) string {
	if s == nil {
		return "-"
	}
	if *s == "" {
		return `""`
	}
	return *s
}

// QueryFromFlags reads --kind, --limit and --since.
func QueryFromFlags(cmd *cobra.Command) capture.Query {
	kind, _ := cmd.Flags().GetString("kind")
	limit, _ := cmd.Flags().GetInt("limit")
	since, _ := cmd.Flags().GetString("since")
	return capture.Query{Kind: kind, Limit: limit, Since: since}
}

func runReadEvents(rc *honey_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	p := cmd_helpers.Printer(cmd)

	svc, err := cmd_helpers.Load(rc, cmd, "")
	if err != nil {
		return cmd_helpers.Report(p, "", "Configuration error", nil, err)
	}

	q := QueryFromFlags(cmd)
	events, err := svc.Engine(rc).QueryEvents(rc, q)
	if err != nil {
		return cmd_helpers.Report(p, "", "Event query failed", nil, err)
	}
	return p.Success(fmt.Sprintf("%d %s events", len(events), q.Kind), eventsView(events))
}
