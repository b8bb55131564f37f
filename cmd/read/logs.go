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

var readLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show Cowrie's JSON event log, newest first",
	Long: `Reads var/log/cowrie/cowrie.json under the Cowrie installation, or
cowrie.log_path when set. --event-id keeps one event type (for example
cowrie.login.failed) and --since keeps records at or after an RFC 3339 time.`,
	Args: cobra.NoArgs,
	RunE: honey_cli.Wrap(runReadLogs),
}

func init() {
	readLogsCmd.Flags().Int("limit", 50, "Maximum number of records")
	readLogsCmd.Flags().String("event-id", "", "Cowrie eventid to keep")
	readLogsCmd.Flags().String("since", "", "Minimum timestamp (RFC 3339)")
}

type logsView []capture.LogEntry

func (v logsView) Table(t *output.TableWriter) {
	t.WithHeaders("TIMESTAMP", "EVENT", "SOURCE", "SESSION", "USERNAME", "PASSWORD", "INPUT")
	for _, e := range v {
		t.AddRow(field(e, "timestamp"), e.EventID(), field(e, "src_ip"), field(e, "session"),
			field(e, "username"), field(e, "password"), field(e, "input"))
	}
}

func field(e capture.LogEntry, key string) string {
	v, ok := e[key]
	if !ok || v == nil {
		return "-"
	}
	return fmt.Sprint(v)
}

func runReadLogs(rc *honey_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	p := cmd_helpers.Printer(cmd)

	svc, err := cmd_helpers.Load(rc, cmd, "")
	if err != nil {
		return cmd_helpers.Report(p, "", "Configuration error", nil, err)
	}
	path, err := svc.CowrieLogPath(rc)
	if err != nil {
		return cmd_helpers.Report(p, "", "Cowrie log not found", nil, err)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	eventID, _ := cmd.Flags().GetString("event-id")
	since, _ := cmd.Flags().GetString("since")
	entries, err := capture.ReadCowrieLog(rc, path, capture.LogQuery{Limit: limit, EventID: eventID, Since: since})
	if err != nil {
		return cmd_helpers.Report(p, "", "Log query failed", nil, err)
	}
	return p.Success(fmt.Sprintf("%d log entries", len(entries)), logsView(entries))
}
