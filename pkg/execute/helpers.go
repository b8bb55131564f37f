// pkg/execute/helpers.go

package execute

import (
	"strings"
	"time"

	"mvdan.cc/sh/v3/syntax"
)

func defaultTimeout(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	return 30 * time.Second
}

// CommandString renders a command line for logs and error messages, quoting
// arguments the way a shell would need them.
func CommandString(command string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	for _, p := range append([]string{command}, args...) {
		q, err := syntax.Quote(p, syntax.LangBash)
		if err != nil {
			q = p
		}
		parts = append(parts, q)
	}
	return strings.Join(parts, " ")
}
