// cmd/update/update.go
package update

import (
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/locator"
	"github.com/spf13/cobra"
)

// UpdateCmd groups commands that change stored settings or decoy
// configuration.
var UpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update decoy settings",
}

func init() {
	UpdateCmd.AddCommand(newDecoyCmd(locator.Cowrie), newDecoyCmd(locator.Dionaea))
}
