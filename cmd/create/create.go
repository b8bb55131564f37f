// cmd/create/create.go
package create

import (
	"github.com/spf13/cobra"
)

// CreateCmd groups commands that put something in place on the host.
var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create host changes (e.g., the SSH redirect)",
}

func init() {
	CreateCmd.AddCommand(createRedirectCmd)
}
