// cmd/read/read.go

package read

import (
	"github.com/spf13/cobra"
)

// ReadCmd groups the read-only commands.
var ReadCmd = &cobra.Command{
	Use:   "read",
	Short: "Show decoy status, the redirect and what the decoys captured",
}

func init() {
	ReadCmd.AddCommand(readStatusCmd)
	ReadCmd.AddCommand(readRedirectCmd)
	ReadCmd.AddCommand(readEventsCmd)
	ReadCmd.AddCommand(readArtifactsCmd)
	ReadCmd.AddCommand(readLogsCmd)
}
