package systemd

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRestartStopsAtFirstSuccess(t *testing.T) {
	rc := honey_io.NewTestContext(context.Background(), zaptest.NewLogger(t))
	var tried []string
	r := NewSSHRestarter(execute.RunnerFunc(func(_ context.Context, o execute.Options) (string, error) {
		line := o.Command + " " + strings.Join(o.Args, " ")
		tried = append(tried, line)
		if line == "systemctl restart sshd" {
			return "Failed to restart sshd.service: Unit sshd.service not found.", errors.New("exit status 5")
		}
		return "", nil
	}))

	attempts, err := r.Restart(rc)
	require.NoError(t, err)
	assert.Equal(t, []string{"systemctl restart sshd", "systemctl restart ssh"}, tried)
	require.Len(t, attempts, 2)
	assert.Error(t, attempts[0].Err)
	assert.NoError(t, attempts[1].Err)
}

func TestRestartFailsWhenAllFail(t *testing.T) {
	rc := honey_io.NewTestContext(context.Background(), zaptest.NewLogger(t))
	r := NewSSHRestarter(execute.RunnerFunc(func(context.Context, execute.Options) (string, error) {
		return "", errors.New("exit status 1")
	}))

	attempts, err := r.Restart(rc)
	require.Error(t, err)
	assert.Len(t, attempts, len(SSHRestartStrategies()))
	assert.Contains(t, err.Error(), "all restart strategies failed")
}
