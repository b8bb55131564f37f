package execute

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRunCapturesOutput(t *testing.T) {
	out, err := Run(context.Background(), Options{
		Command: "echo",
		Args:    []string{"hello"},
		Capture: true,
		Logger:  zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
}

func TestRunWithoutCaptureDiscardsOutput(t *testing.T) {
	out, err := Run(context.Background(), Options{Command: "echo", Args: []string{"hello"}})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRunFailureIsExternalCommandError(t *testing.T) {
	out, err := Run(context.Background(), Options{
		Command: "sh",
		Args:    []string{"-c", "echo broken >&2; exit 3"},
		Capture: true,
		Logger:  zaptest.NewLogger(t),
	})
	require.Error(t, err)
	assert.True(t, honey_err.Is(err, honey_err.CategoryExternalCommand))
	assert.Contains(t, out, "broken")
	assert.Contains(t, err.Error(), "broken")
	assert.False(t, IsTimeout(err))
}

func TestRunTimeout(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Command: "sleep",
		Args:    []string{"5"},
		Timeout: 50 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestRunDryRun(t *testing.T) {
	out, err := Run(context.Background(), Options{Command: "false", DryRun: true})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCommandStringQuotesArguments(t *testing.T) {
	assert.Equal(t, "iptables -t nat", CommandString("iptables", "-t", "nat"))
	assert.Equal(t, "find / -path '*/cowrie/*'", CommandString("find", "/", "-path", "*/cowrie/*"))
}

func TestRunnerFunc(t *testing.T) {
	var got Options
	r := RunnerFunc(func(_ context.Context, opts Options) (string, error) {
		got = opts
		return "ok", nil
	})
	out, err := r.Run(context.Background(), Options{Command: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "x", got.Command)
}

func TestExitStatus(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Command: "sh",
		Args:    []string{"-c", "exit 4"},
		Logger:  zaptest.NewLogger(t),
	})
	code, ok := ExitStatus(err)
	require.True(t, ok)
	assert.Equal(t, 4, code)

	code, ok = ExitStatus(errors.New("exit status 1"))
	require.True(t, ok)
	assert.Equal(t, 1, code)

	_, ok = ExitStatus(errors.New("permission denied"))
	assert.False(t, ok)
	_, ok = ExitStatus(nil)
	assert.False(t, ok)
}
