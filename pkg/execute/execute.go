// pkg/execute/execute.go

package execute

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Package execute runs host commands with structured logging. Commands are
// always argument vectors; there is no shell mode.

// ErrTimeout is returned (wrapped) when a command exceeds its timeout.
var ErrTimeout = errors.New("command timed out")

// Options describes a single command invocation.
type Options struct {
	Command string
	Args    []string
	Dir     string
	// Env entries are appended to the inherited environment.
	Env     []string
	Timeout time.Duration
	Capture bool
	Retries int
	Delay   time.Duration
	DryRun  bool
	Logger  *zap.Logger
}

var (
	DefaultLogger *zap.Logger
	DefaultDryRun bool
)

// Run executes a command with structured logging and proper error handling.
// A non-zero exit is returned as a CategoryExternalCommand error carrying
// the combined output; a timeout additionally wraps ErrTimeout.
func Run(ctx context.Context, opts Options) (string, error) {
	cmdStr := CommandString(opts.Command, opts.Args...)

	logger := opts.Logger
	if logger == nil {
		logger = DefaultLogger
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := telemetry.Start(ctx, "execute.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("command", opts.Command),
		attribute.String("args", telemetry.TruncateArgs(opts.Args)),
	)

	if opts.DryRun || DefaultDryRun {
		logger.Info("Dry run mode - command not executed", zap.String("command", cmdStr))
		return "", nil
	}

	logger.Debug("Starting execution", zap.String("command", cmdStr))

	var output string
	var err error
	attempts := max(1, opts.Retries)

	for i := 1; i <= attempts; i++ {
		output, err = runOnce(ctx, opts)
		if err == nil {
			logger.Debug("Execution succeeded", zap.String("command", cmdStr))
			break
		}

		span.RecordError(err)
		logger.Warn("Execution failed",
			zap.Int("attempt", i),
			zap.String("command", cmdStr),
			zap.String("summary", honey_err.ExtractSummary(output, 2)),
			zap.Error(err),
		)

		if errors.Is(err, ErrTimeout) || ctx.Err() != nil {
			break
		}
		if i < attempts {
			time.Sleep(opts.Delay)
		}
	}

	if err != nil {
		return output, honey_err.NewExternalCommandError(cmdStr, output, err)
	}

	if opts.Capture {
		return output, nil
	}
	return "", nil
}

func runOnce(ctx context.Context, opts Options) (string, error) {
	rc, cancel := context.WithTimeout(ctx, defaultTimeout(opts.Timeout))
	defer cancel()

	cmd := exec.CommandContext(rc, opts.Command, opts.Args...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	if len(opts.Env) > 0 {
		cmd.Env = append(cmd.Environ(), opts.Env...)
	}

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	if err != nil && errors.Is(rc.Err(), context.DeadlineExceeded) {
		return buf.String(), cerr.Wrapf(ErrTimeout, "%s after %s", opts.Command, defaultTimeout(opts.Timeout))
	}
	return buf.String(), err
}

// ExitStatus returns the exit code of a failed command. Runners that only
// report the process error text ("exit status N") are understood as well.
func ExitStatus(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), true
	}
	msg := cerr.UnwrapAll(err).Error()
	i := strings.LastIndex(msg, "exit status ")
	if i < 0 {
		return 0, false
	}
	code, convErr := strconv.Atoi(strings.TrimSpace(msg[i+len("exit status "):]))
	if convErr != nil {
		return 0, false
	}
	return code, true
}

// IsTimeout reports whether err came from a command exceeding its timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// RunSimple executes a command with minimal options and structured logging
func RunSimple(ctx context.Context, cmd string, args ...string) error {
	_, err := Run(ctx, Options{Command: cmd, Args: args})
	return err
}

// Output runs the command and returns its trimmed combined output.
func Output(ctx context.Context, cmd string, args ...string) (string, error) {
	out, err := Run(ctx, Options{Command: cmd, Args: args, Capture: true})
	return strings.TrimSpace(out), err
}
