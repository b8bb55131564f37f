// cmd/start/start.go
package start

import (
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/locator"
	"github.com/spf13/cobra"
)

// StartCmd groups commands that launch services.
var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a decoy",
}

func init() {
	StartCmd.AddCommand(newDecoyCmd(locator.Cowrie), newDecoyCmd(locator.Dionaea))
}
