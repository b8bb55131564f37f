// cmd/delete/delete.go
package delete

import (
	"github.com/spf13/cobra"
)

// DeleteCmd groups commands that undo host changes.
var DeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Undo host changes (e.g., the SSH redirect)",
}

func init() {
	DeleteCmd.AddCommand(deleteRedirectCmd)
}
