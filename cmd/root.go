/* cmd/root.go */

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/config"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_cli"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	// Subcommands
	"github.com/CodeMonkeyCybersecurity/honeydash/cmd/create"
	"github.com/CodeMonkeyCybersecurity/honeydash/cmd/delete"
	"github.com/CodeMonkeyCybersecurity/honeydash/cmd/read"
	"github.com/CodeMonkeyCybersecurity/honeydash/cmd/serve"
	"github.com/CodeMonkeyCybersecurity/honeydash/cmd/start"
	"github.com/CodeMonkeyCybersecurity/honeydash/cmd/stop"
	"github.com/CodeMonkeyCybersecurity/honeydash/cmd/sync"
	"github.com/CodeMonkeyCybersecurity/honeydash/cmd/update"
)

var helpLogged bool

// RootCmd is the base command for honeydash.
var RootCmd = &cobra.Command{
	Use:   "honeydash",
	Short: "Manage SSH and multi-protocol honeypots",
	Long: `honeydash runs the Cowrie and Dionaea decoys, diverts the SSH port to
Cowrie while keeping the real daemon reachable, and normalizes what the decoys
capture for a SIEM.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			honey_err.SetDebugMode(true)
		}
	},
	RunE: honey_cli.Wrap(func(rc *honey_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		rc.Log.Info("No subcommand provided", zap.String("command", cmd.Use))
		return cmd.Help()
	}),
}

// HelpCmd wraps help so that it can be invoked like a normal command.
var HelpCmd = &cobra.Command{
	Use:   "help",
	Short: "Help about any command",
	RunE: honey_cli.Wrap(func(rc *honey_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return RootCmd.Help()
		}
		c, _, err := RootCmd.Find(args)
		if err != nil || c == nil {
			return honey_err.NewValidationError("command not found: " + strings.Join(args, " "))
		}
		return c.Help()
	}),
}

// RegisterCommands adds all subcommands to the root command.
func RegisterCommands() {
	RootCmd.SetHelpCommand(HelpCmd)

	RootCmd.PersistentFlags().String("config", config.DefaultConfigPath, "Path to the YAML configuration file")
	RootCmd.PersistentFlags().String("env-file", config.DefaultEnvPath, "Path to a .env file with HONEYDASH_* overrides")
	RootCmd.PersistentFlags().Bool("json", false, "Print results as JSON")
	RootCmd.PersistentFlags().Bool("debug", false, "Show full error detail")

	log := logger.L()
	RootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if !helpLogged {
			log.Debug("Help requested", zap.String("command", cmd.Name()))
			helpLogged = true
		}
		if err := cmd.Usage(); err != nil {
			log.Warn("Failed to print usage", zap.Error(err))
		}
	})

	for _, subCmd := range []*cobra.Command{
		create.CreateCmd,
		delete.DeleteCmd,
		read.ReadCmd,
		start.StartCmd,
		stop.StopCmd,
		update.UpdateCmd,
		sync.SyncCmd,
		serve.ServeCmd,
	} {
		RootCmd.AddCommand(subCmd)
	}
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	defer logger.Sync()

	RegisterCommands()

	err := RootCmd.Execute()
	if err == nil {
		return 0
	}
	if honey_err.IsExpectedUserError(err) {
		logger.L().Warn("CLI completed with user error", zap.Error(err))
	} else {
		logger.L().Error("CLI execution error", zap.Error(err))
	}
	honey_err.PrintError("honeydash "+commandName(os.Args), err)
	return honey_err.GetExitCode(err)
}

func commandName(args []string) string {
	var words []string
	for _, a := range args[1:] {
		if strings.HasPrefix(a, "-") {
			break
		}
		words = append(words, a)
	}
	if len(words) == 0 {
		return "failed"
	}
	return fmt.Sprintf("%s failed", strings.Join(words, " "))
}
