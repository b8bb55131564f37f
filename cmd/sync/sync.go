// cmd/sync/sync.go

package sync

import (
	"github.com/spf13/cobra"
)

// SyncCmd groups commands that push captured data to external systems.
var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Forward captured events to the SIEM",
}

func init() {
	SyncCmd.AddCommand(syncEventsCmd)
}
