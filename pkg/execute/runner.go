// pkg/execute/runner.go

package execute

import "context"

// Runner abstracts command execution so callers can be driven by a fake
// in tests.
type Runner interface {
	Run(ctx context.Context, opts Options) (string, error)
}

// DefaultRunner executes commands on the host through Run.
type DefaultRunner struct{}

func (DefaultRunner) Run(ctx context.Context, opts Options) (string, error) {
	return Run(ctx, opts)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, opts Options) (string, error)

func (f RunnerFunc) Run(ctx context.Context, opts Options) (string, error) {
	return f(ctx, opts)
}
