// pkg/cli/cli.go
//
// Flag helpers shared by the honeydash commands. Flags are bound into viper
// so that a value can come from the command line, the HONEYDASH_*
// environment, or the configuration file, in that order.
package cli

import (
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindFlagsToViper binds every flag of cmd under prefix (prefix.flag-name
// with dashes turned into underscores), aggregating bind failures.
func BindFlagsToViper(cmd *cobra.Command, v *viper.Viper, prefix string) error {
	var result error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if prefix != "" {
			key = prefix + "." + key
		}
		if err := v.BindPFlag(key, f); err != nil {
			result = multierror.Append(result, cerr.Wrapf(err, "bind --%s", f.Name))
		}
	})
	return result
}

// SetViperEnvPrefix lets viper read PREFIX_SECTION_KEY variables.
func SetViperEnvPrefix(v *viper.Viper, prefix string) {
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}
