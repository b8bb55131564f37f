package decoy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/docker"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/locator"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/process"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixedLocator map[locator.Kind]*locator.Installation

func (f fixedLocator) Locate(_ *honey_io.RuntimeContext, kind locator.Kind, _ locator.Hint) (*locator.Installation, bool) {
	inst, ok := f[kind]
	return inst, ok
}

type procs []process.Match

func (p procs) List(*honey_io.RuntimeContext) ([]process.Match, error) { return p, nil }

type mockContainers struct{ mock.Mock }

func (m *mockContainers) FindContainer(_ *honey_io.RuntimeContext, name string) (*docker.ContainerInfo, bool, error) {
	args := m.Called(name)
	return args.Get(0).(*docker.ContainerInfo), args.Bool(1), args.Error(2)
}

func (m *mockContainers) IsRunning(_ *honey_io.RuntimeContext, id string) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}

func (m *mockContainers) Start(_ *honey_io.RuntimeContext, id string) error {
	return m.Called(id).Error(0)
}

func (m *mockContainers) Stop(_ *honey_io.RuntimeContext, id string) error {
	return m.Called(id).Error(0)
}

type recordingRunner struct{ lines []string }

func (r *recordingRunner) Run(_ context.Context, o execute.Options) (string, error) {
	r.lines = append(r.lines, o.Command+" "+strings.Join(o.Args, " "))
	return "", nil
}

func cowrieRoot(t *testing.T, configured bool) string {
	root := filepath.Join(t.TempDir(), "cowrie")
	for _, d := range []string{"bin", "honeyfs"} {
		testutil.CreateTestDir(t, filepath.Join(root, d))
	}
	cfg := "[ssh]\nenabled = true\n"
	if configured {
		cfg = "[ssh]\nlisten_endpoints = tcp:2222:interface=0.0.0.0\n"
	}
	testutil.CreateTestFile(t, filepath.Join(root, "etc", "cowrie.cfg"), cfg)
	return root
}

func newRC(t *testing.T) *honey_io.RuntimeContext {
	return honey_io.NewTestContext(context.Background(), zaptest.NewLogger(t))
}

func TestGetStatusStates(t *testing.T) {
	rc := newRC(t)
	configured := cowrieRoot(t, true)
	unconfigured := cowrieRoot(t, false)

	tests := []struct {
		name  string
		loc   fixedLocator
		procs procs
		want  string
	}{
		{"not installed", fixedLocator{}, nil, "Cowrie is not installed or could not be detected"},
		{"misconfigured", fixedLocator{locator.Cowrie: {Root: unconfigured}}, nil, "Cowrie installed but not properly configured"},
		{"stopped", fixedLocator{locator.Cowrie: {Root: configured}}, nil, "Cowrie configured but stopped"},
		{"running", fixedLocator{locator.Cowrie: {Root: configured}},
			procs{{PID: 4242, Cmdline: "/usr/bin/python3 twistd --pidfile var/run/cowrie.pid cowrie"}},
			"Cowrie running properly"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSupervisor(tt.loc, &recordingRunner{}, nil, nil, 2222)
			s.Processes = tt.procs
			r, err := s.GetStatus(rc, locator.Cowrie)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Message)
		})
	}
}

func TestStartCowrieDropsPrivileges(t *testing.T) {
	rc := newRC(t)
	root := cowrieRoot(t, true)
	runner := &recordingRunner{}
	s := NewSupervisor(fixedLocator{locator.Cowrie: {Root: root}}, runner, nil, nil, 2222)
	s.Processes = procs{}
	s.SudoUser = func() string { return "analyst" }

	require.NoError(t, s.Start(rc, locator.Cowrie))
	require.Len(t, runner.lines, 1)
	assert.True(t, strings.HasPrefix(runner.lines[0], "sudo -u analyst env PATH="+filepath.Join(root, "cowrie-env", "bin")+":"))
	assert.True(t, strings.HasSuffix(runner.lines[0], filepath.Join(root, "cowrie-env", "bin", "cowrie")+" start"))
}

func TestStartPreconditions(t *testing.T) {
	rc := newRC(t)

	s := NewSupervisor(fixedLocator{}, &recordingRunner{}, nil, nil, 2222)
	assert.True(t, honey_err.Is(s.Start(rc, locator.Cowrie), honey_err.CategoryNotInstalled))

	s = NewSupervisor(fixedLocator{locator.Cowrie: {Root: cowrieRoot(t, false)}}, &recordingRunner{}, nil, nil, 2222)
	s.Processes = procs{}
	assert.True(t, honey_err.Is(s.Start(rc, locator.Cowrie), honey_err.CategoryNotConfigured))

	s = NewSupervisor(fixedLocator{locator.Cowrie: {Root: cowrieRoot(t, true)}}, &recordingRunner{}, nil, nil, 2222)
	s.Processes = procs{{PID: 9, Cmdline: "twistd cowrie"}}
	err := s.Start(rc, locator.Cowrie)
	assert.True(t, honey_err.Is(err, honey_err.CategoryAlreadyActive))
	assert.Equal(t, 0, honey_err.GetExitCode(err), "already running is a notice, not a failure")
}

func TestOwnInvocationIsNotTheDecoy(t *testing.T) {
	rc := newRC(t)
	parent := int32(os.Getppid())
	invocation := func(cmd string) procs {
		return procs{
			{PID: parent, PPID: 1, Cmdline: "sudo honeydash " + cmd},
			{PID: int32(os.Getpid()), PPID: parent, Cmdline: "honeydash " + cmd},
			{PID: 700, PPID: 1, Cmdline: "vim /opt/cowrie/etc/cowrie.cfg"},
			{PID: 701, PPID: 1, Cmdline: "tail -f /opt/dionaea/var/log/dionaea/dionaea.log"},
		}
	}

	runner := &recordingRunner{}
	s := NewSupervisor(fixedLocator{locator.Cowrie: {Root: cowrieRoot(t, true)}}, runner, nil, nil, 2222)
	s.Processes = invocation("start cowrie")
	s.SudoUser = func() string { return "analyst" }
	r, err := s.GetStatus(rc, locator.Cowrie)
	require.NoError(t, err)
	assert.Equal(t, StateStopped, r.State)
	require.NoError(t, s.Start(rc, locator.Cowrie))
	assert.Len(t, runner.lines, 1)

	s = NewSupervisor(fixedLocator{locator.Dionaea: {Root: t.TempDir()}}, &recordingRunner{}, nil, nil, 2222)
	s.Processes = invocation("stop dionaea")
	assert.True(t, honey_err.Is(s.Stop(rc, locator.Dionaea), honey_err.CategoryNotRunning))
}

func TestDecoyProcess(t *testing.T) {
	tests := []struct {
		kind    locator.Kind
		cmdline string
		want    bool
	}{
		{locator.Cowrie, "/opt/cowrie/cowrie-env/bin/python3 /opt/cowrie/cowrie-env/bin/twistd --umask=0022 --pidfile=var/run/cowrie.pid --logger cowrie.python.logfile.logger cowrie", true},
		{locator.Cowrie, "sudo -u analyst env PATH=/opt/cowrie/cowrie-env/bin /opt/cowrie/cowrie-env/bin/cowrie start", false},
		{locator.Cowrie, "twistd web --path /srv/www", false},
		{locator.Dionaea, "/opt/dionaea/bin/dionaea -D -c /opt/dionaea/etc/dionaea/dionaea.cfg", true},
		{locator.Dionaea, "dionaea -D", true},
		{locator.Dionaea, "sudo honeydash start dionaea", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, decoyProcess(tt.kind)(process.Match{Cmdline: tt.cmdline}), tt.cmdline)
	}
}

func TestStopNotRunning(t *testing.T) {
	rc := newRC(t)
	s := NewSupervisor(fixedLocator{locator.Dionaea: {Root: t.TempDir()}}, &recordingRunner{}, nil, nil, 2222)
	s.Processes = procs{}
	assert.True(t, honey_err.Is(s.Stop(rc, locator.Dionaea), honey_err.CategoryNotRunning))
}

func TestContainerLifecycle(t *testing.T) {
	rc := newRC(t)
	c := &mockContainers{}
	c.On("FindContainer", "dionaea").Return(&docker.ContainerInfo{ID: "c0ffee", Name: "dionaea"}, true, nil)
	c.On("IsRunning", "c0ffee").Return(false, nil).Once()
	c.On("Start", "c0ffee").Return(nil).Once()

	s := NewSupervisor(fixedLocator{locator.Dionaea: {Container: "dionaea"}}, &recordingRunner{}, c, nil, 2222)
	require.NoError(t, s.Start(rc, locator.Dionaea))

	c.On("IsRunning", "c0ffee").Return(true, nil)
	c.On("Stop", "c0ffee").Return(nil).Once()
	r, err := s.GetStatus(rc, locator.Dionaea)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, r.State)
	require.NoError(t, s.Stop(rc, locator.Dionaea))
	c.AssertExpectations(t)
}

func TestConfigure(t *testing.T) {
	rc := newRC(t)
	root := cowrieRoot(t, false)
	s := NewSupervisor(fixedLocator{locator.Cowrie: {Root: root}}, &recordingRunner{}, nil, nil, 2222)
	s.Processes = procs{}

	changed, err := s.Configure(rc, locator.Cowrie)
	require.NoError(t, err)
	assert.True(t, changed)

	r, err := s.GetStatus(rc, locator.Cowrie)
	require.NoError(t, err)
	assert.Equal(t, StateStopped, r.State)

	_, err = s.Configure(rc, locator.Dionaea)
	assert.True(t, honey_err.Is(err, honey_err.CategoryValidation))
}
