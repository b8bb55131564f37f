package redirect

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/platform"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/systemd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const sshdConfig = `# managed by cloud-init
Include /etc/ssh/sshd_config.d/*.conf
Port 22
PermitRootLogin no
PasswordAuthentication no
`

type fakeFilter struct {
	rules   map[[2]int]bool
	addErr  error
	rmErr   error
	removed int
}

func newFakeFilter() *fakeFilter { return &fakeFilter{rules: map[[2]int]bool{}} }

func (f *fakeFilter) Exists(_ *honey_io.RuntimeContext, from, to int) (bool, error) {
	return f.rules[[2]int{from, to}], nil
}

func (f *fakeFilter) Add(_ *honey_io.RuntimeContext, from, to int) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.rules[[2]int{from, to}] = true
	return nil
}

func (f *fakeFilter) Remove(_ *honey_io.RuntimeContext, from, to int) error {
	if f.rmErr != nil {
		return f.rmErr
	}
	f.removed++
	delete(f.rules, [2]int{from, to})
	return nil
}

type fakeRestarter struct {
	calls int
	err   error
}

func (f *fakeRestarter) Restart(*honey_io.RuntimeContext) ([]systemd.Attempt, error) {
	f.calls++
	if f.err != nil {
		return []systemd.Attempt{{Strategy: "systemctl restart sshd", Output: "Unit not found", Err: f.err}}, f.err
	}
	return []systemd.Attempt{{Strategy: "systemctl restart sshd"}}, nil
}

type fakeScanner map[int]bool

func (f fakeScanner) ListeningPorts(*honey_io.RuntimeContext) (map[int]bool, error) {
	out := map[int]bool{}
	for k, v := range f {
		out[k] = v
	}
	return out, nil
}

type fixture struct {
	rc        *honey_io.RuntimeContext
	ctrl      *Controller
	filter    *fakeFilter
	restarter *fakeRestarter
	cfgPath   string
}

func newFixture(t *testing.T, config string) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sshd_config")
	require.NoError(t, os.WriteFile(cfgPath, []byte(config), 0644))

	ctrl := NewController(Options{
		StatePath:     filepath.Join(dir, "state", "redirect_state.json"),
		Host:          "sensor-1",
		SSHConfigPath: cfgPath,
	})
	f := &fixture{
		rc:        honey_io.NewTestContext(context.Background(), zaptest.NewLogger(t)),
		ctrl:      ctrl,
		filter:    newFakeFilter(),
		restarter: &fakeRestarter{},
		cfgPath:   cfgPath,
	}
	ctrl.Filter = f.filter
	ctrl.Restarter = f.restarter
	ctrl.Scanner = fakeScanner{}
	ctrl.Picker.Intn = func(int) int { return 40000 - 1024 }
	ctrl.RequireAdmin = func(*honey_io.RuntimeContext, string) error { return nil }
	return f
}

func (f *fixture) config(t *testing.T) string {
	data, err := os.ReadFile(f.cfgPath)
	require.NoError(t, err)
	return string(data)
}

func TestDivertThenRestore(t *testing.T) {
	f := newFixture(t, sshdConfig)

	res, err := f.ctrl.Divert(f.rc)
	require.NoError(t, err)
	assert.Equal(t, 40000, res.SSHPort)
	assert.Equal(t, 2222, res.DecoyPort)
	assert.Contains(t, f.config(t), "\nPort 40000\n")
	assert.True(t, f.filter.rules[[2]int{22, 2222}])

	st, ok, err := f.ctrl.Status(f.rc)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 40000, st.SSHPort)
	assert.Equal(t, 22, st.OriginalSSHPort)
	assert.True(t, st.RuleInstalled)

	backup, err := os.ReadFile(f.cfgPath + BackupSuffix)
	require.NoError(t, err)
	assert.Equal(t, sshdConfig, string(backup))

	out, err := f.ctrl.Restore(f.rc)
	require.NoError(t, err)
	assert.True(t, out.Active)
	assert.Equal(t, sshdConfig, f.config(t))
	assert.Empty(t, f.filter.rules)
	assert.Equal(t, 2, f.restarter.calls)

	_, ok, err = f.ctrl.Status(f.rc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDivertTwiceFailsAlreadyActive(t *testing.T) {
	f := newFixture(t, sshdConfig)
	_, err := f.ctrl.Divert(f.rc)
	require.NoError(t, err)
	before := f.config(t)

	f.ctrl.Picker.Intn = func(int) int { return 0 }
	_, err = f.ctrl.Divert(f.rc)
	require.Error(t, err)
	assert.True(t, honey_err.Is(err, honey_err.CategoryAlreadyActive))
	assert.True(t, honey_err.IsExpectedUserError(err))
	assert.Equal(t, 0, honey_err.GetExitCode(err))

	st, ok, err := f.ctrl.Status(f.rc)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 40000, st.SSHPort)
	assert.Equal(t, before, f.config(t))
	assert.Equal(t, 1, f.restarter.calls)
}

func TestRuleInstallFailureRollsBack(t *testing.T) {
	f := newFixture(t, sshdConfig)
	f.filter.addErr = errors.New("iptables: No chain/target/match by that name.")

	_, err := f.ctrl.Divert(f.rc)
	require.Error(t, err)
	assert.True(t, honey_err.Is(err, honey_err.CategoryExternalCommand))

	assert.Equal(t, sshdConfig, f.config(t), "config must be restored byte-for-byte")
	assert.Equal(t, 2, f.restarter.calls, "sshd restarted after the change and again after rollback")
	_, ok, err := f.ctrl.Status(f.rc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRestartFailureRollsBack(t *testing.T) {
	f := newFixture(t, sshdConfig)
	f.restarter.err = errors.New("exit status 5")

	_, err := f.ctrl.Divert(f.rc)
	require.Error(t, err)
	assert.True(t, honey_err.Is(err, honey_err.CategoryExternalCommand))
	assert.Contains(t, err.Error(), "Unit not found")
	assert.Equal(t, sshdConfig, f.config(t))
	assert.Empty(t, f.filter.rules)
}

func TestDivertRequiresAdmin(t *testing.T) {
	f := newFixture(t, sshdConfig)
	f.ctrl.RequireAdmin = func(_ *honey_io.RuntimeContext, op string) error {
		return honey_err.NewPermissionError(op)
	}

	_, err := f.ctrl.Divert(f.rc)
	assert.True(t, honey_err.Is(err, honey_err.CategoryPermission))
	_, err = f.ctrl.Restore(f.rc)
	assert.True(t, honey_err.Is(err, honey_err.CategoryPermission))
	assert.Equal(t, sshdConfig, f.config(t))
	assert.Zero(t, f.restarter.calls)
}

func TestDivertPortExhaustion(t *testing.T) {
	f := newFixture(t, sshdConfig)
	f.ctrl.Picker.Min, f.ctrl.Picker.Max, f.ctrl.Picker.MaxAttempts = 5000, 5002, 10
	f.ctrl.Picker.Intn = func(n int) int { return 0 }
	f.ctrl.Scanner = fakeScanner{5000: true}

	_, err := f.ctrl.Divert(f.rc)
	require.Error(t, err)
	assert.True(t, honey_err.Is(err, honey_err.CategoryPortExhaustion))
	assert.Equal(t, sshdConfig, f.config(t))
	_, ok, _ := f.ctrl.Status(f.rc)
	assert.False(t, ok)
}

func TestDivertPrependsPortWhenMissing(t *testing.T) {
	cfg := "PermitRootLogin no\n#Port 22\n"
	f := newFixture(t, cfg)

	_, err := f.ctrl.Divert(f.rc)
	require.NoError(t, err)
	assert.Equal(t, "Port 40000\n"+cfg, f.config(t))
}

func TestRestoreWithoutDiversion(t *testing.T) {
	f := newFixture(t, sshdConfig)
	out, err := f.ctrl.Restore(f.rc)
	require.NoError(t, err)
	assert.False(t, out.Active)
	assert.Zero(t, f.restarter.calls)
	assert.Equal(t, sshdConfig, f.config(t))
}

func TestRestoreIsIdempotentForMissingRule(t *testing.T) {
	f := newFixture(t, sshdConfig)
	_, err := f.ctrl.Divert(f.rc)
	require.NoError(t, err)
	delete(f.filter.rules, [2]int{22, 2222})

	_, err = f.ctrl.Restore(f.rc)
	require.NoError(t, err)
	assert.Contains(t, f.config(t), "\nPort 22\n")
}

func TestRestoreFailureKeepsRecord(t *testing.T) {
	f := newFixture(t, sshdConfig)
	_, err := f.ctrl.Divert(f.rc)
	require.NoError(t, err)
	f.filter.rmErr = errors.New("iptables: Permission denied")

	_, err = f.ctrl.Restore(f.rc)
	require.Error(t, err)
	assert.True(t, honey_err.Is(err, honey_err.CategoryExternalCommand))
	assert.Contains(t, f.config(t), "\nPort 22\n", "remaining steps are still attempted")

	_, ok, err := f.ctrl.Status(f.rc)
	require.NoError(t, err)
	assert.True(t, ok)

	f.filter.rmErr = nil
	_, err = f.ctrl.Restore(f.rc)
	require.NoError(t, err)
	_, ok, _ = f.ctrl.Status(f.rc)
	assert.False(t, ok)
}

func TestRestoreKeepsRecordWhenRuleCheckFails(t *testing.T) {
	f := newFixture(t, sshdConfig)
	_, err := f.ctrl.Divert(f.rc)
	require.NoError(t, err)

	var commands []string
	f.ctrl.Filter = platform.NewIptables(execute.RunnerFunc(func(_ context.Context, o execute.Options) (string, error) {
		commands = append(commands, o.Command+" "+strings.Join(o.Args, " "))
		if o.Args[2] == "-C" {
			return "Another app is currently holding the xtables lock. Perhaps you want to use the -w option?\n", errors.New("exit status 4")
		}
		return "", nil
	}))

	_, err = f.ctrl.Restore(f.rc)
	require.Error(t, err)
	assert.True(t, honey_err.Is(err, honey_err.CategoryExternalCommand))
	assert.Contains(t, err.Error(), "xtables lock")
	require.Len(t, commands, 1, "the rule is not deleted blind")

	st, ok, err := f.ctrl.Status(f.rc)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 22, st.OriginalSSHPort)
}

// Drives the real iptables and systemd adapters through a scripted runner
// that fails the rule install.
func TestCommandFailureInjectionThroughRunner(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sshd_config")
	require.NoError(t, os.WriteFile(cfgPath, []byte(sshdConfig), 0600))

	var commands []string
	runner := execute.RunnerFunc(func(_ context.Context, o execute.Options) (string, error) {
		line := o.Command + " " + strings.Join(o.Args, " ")
		commands = append(commands, line)
		switch {
		case line == "systemctl restart sshd":
			return "Failed to restart sshd.service: Unit sshd.service not found.\n", errors.New("exit status 5")
		case strings.HasPrefix(line, "iptables -t nat -A"):
			return "iptables v1.8.7 (nf_tables): Could not fetch rule set generation id: Permission denied\n", errors.New("exit status 4")
		}
		return "", nil
	})

	ctrl := NewController(Options{
		StatePath:     filepath.Join(dir, "redirect_state.json"),
		Host:          "sensor-1",
		SSHConfigPath: cfgPath,
		Runner:        runner,
	})
	ctrl.Scanner = fakeScanner{}
	ctrl.RequireAdmin = func(*honey_io.RuntimeContext, string) error { return nil }
	rc := honey_io.NewTestContext(context.Background(), zaptest.NewLogger(t))

	_, err := ctrl.Divert(rc)
	require.Error(t, err)
	assert.True(t, honey_err.Is(err, honey_err.CategoryExternalCommand))

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, sshdConfig, string(data))

	assert.Equal(t, []string{
		"systemctl restart sshd",
		"systemctl restart ssh",
		"iptables -t nat -A PREROUTING -p tcp --dport 22 -j REDIRECT --to-port 2222",
		"systemctl restart sshd",
		"systemctl restart ssh",
	}, commands)

	_, ok, err := ctrl.Status(rc)
	require.NoError(t, err)
	assert.False(t, ok)
}
