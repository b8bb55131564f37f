// pkg/honey_cli/wrap.go

package honey_cli

import (
	"context"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Wrap ensures panic recovery, telemetry and logging around a command body.
func Wrap(fn func(rc *honey_io.RuntimeContext, cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		parent := cmd.Context()
		if parent == nil {
			parent = context.Background()
		}
		rc := honey_io.NewContext(parent, cmd.CommandPath())
		defer rc.End(&err)
		if len(args) > 0 {
			rc.Attributes["args"] = telemetry.TruncateArgs(args)
		}

		defer func() {
			if r := recover(); r != nil {
				err = cerr.AssertionFailedf("panic: %v", r)
				rc.Log.Error("Panic recovered", zap.Any("panic", r))
			}
		}()

		honey_io.LogRuntimeExecutionContext(rc)

		err = fn(rc, cmd, args)
		if err != nil && !honey_err.IsExpectedUserError(err) {
			err = cerr.WithStack(err)
		}
		return err
	}
}
