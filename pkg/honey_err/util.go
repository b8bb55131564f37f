// pkg/honey_err/util.go

package honey_err

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

var debugMode bool

// SetDebugMode makes PrintError include the full error chain and stack.
func SetDebugMode(enabled bool) {
	debugMode = enabled
}

// failureMarkers are substrings that identify the useful line in the output
// of systemctl, service, iptables, find and the decoy launchers.
var failureMarkers = []string{
	"error", "failed", "cannot", "can't", "denied", "not found",
	"no such", "no chain", "timeout", "timed out", "refused",
}

// ExtractSummary reduces host command output to at most n lines that look
// like failures, joined with " - ". Without such lines the first non-empty
// line is returned.
func ExtractSummary(output string, n int) string {
	var first string
	var hits []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if first == "" {
			first = line
		}
		if len(hits) < n && hasFailureMarker(line) {
			hits = append(hits, line)
		}
	}
	switch {
	case len(hits) > 0:
		return strings.Join(hits, " - ")
	case first != "":
		return first
	}
	return "No output provided."
}

func hasFailureMarker(line string) bool {
	lower := strings.ToLower(line)
	for _, m := range failureMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// NewExpectedError marks err as an outcome the operator can act on, such as
// a diversion that is already active or a page past the last one. It exits 0.
func NewExpectedError(err error) error {
	if err == nil {
		return nil
	}
	return &UserError{cause: err}
}

func IsExpectedUserError(err error) bool {
	var e *UserError
	return errors.As(err, &e)
}

// PrintError reports err on stderr. Expected errors print as a notice.
func PrintError(userMessage string, err error) {
	fprintError(os.Stderr, userMessage, err)
}

func fprintError(w io.Writer, userMessage string, err error) {
	if err == nil {
		return
	}
	if IsExpectedUserError(err) {
		zap.L().Warn(userMessage, zap.Error(err))
		fmt.Fprintf(w, "Notice: %s: %v\n", userMessage, err)
		return
	}

	fields := []zap.Field{zap.Error(err)}
	if c, ok := CategoryOf(err); ok {
		fields = append(fields, zap.String("category", c.String()))
	}
	zap.L().Error(userMessage, fields...)

	fmt.Fprintf(w, "Error: %s: %v\n", userMessage, err)
	if debugMode {
		fmt.Fprintf(w, "%+v\n", err)
	}
}
