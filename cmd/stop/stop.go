// cmd/stop/stop.go
package stop

import (
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/locator"
	"github.com/spf13/cobra"
)

// StopCmd groups commands that halt services.
var StopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a decoy",
}

func init() {
	StopCmd.AddCommand(newDecoyCmd(locator.Cowrie), newDecoyCmd(locator.Dionaea))
}
