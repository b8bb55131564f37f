package process

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type staticLister struct {
	matches []Match
	err     error
}

func (s staticLister) List(*honey_io.RuntimeContext) ([]Match, error) {
	return s.matches, s.err
}

func mentions(word string) func(Match) bool {
	return func(m Match) bool { return strings.Contains(m.Cmdline, word) }
}

func TestFindSkipsSelf(t *testing.T) {
	rc := honey_io.NewTestContext(context.Background(), zaptest.NewLogger(t))
	lister := staticLister{matches: []Match{
		{PID: 10, PPID: 1, Cmdline: "/opt/cowrie/cowrie-env/bin/python twistd cowrie"},
		{PID: 11, PPID: 1, Cmdline: "/usr/sbin/sshd -D"},
		{PID: int32(os.Getpid()), PPID: int32(os.Getppid()), Cmdline: "honeydash read status cowrie"},
	}}

	matches, err := Find(rc, lister, mentions("cowrie"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int32(10), matches[0].PID)

	running, err := IsRunning(rc, lister, mentions("dionaea"))
	require.NoError(t, err)
	assert.False(t, running)
}

func TestFindSkipsAncestors(t *testing.T) {
	rc := honey_io.NewTestContext(context.Background(), zaptest.NewLogger(t))
	parent := int32(os.Getppid())
	lister := staticLister{matches: []Match{
		{PID: 900001, PPID: 1, Cmdline: "bash -c watch honeydash read status cowrie"},
		{PID: parent, PPID: 900001, Cmdline: "sudo honeydash start cowrie"},
		{PID: int32(os.Getpid()), PPID: parent, Cmdline: "honeydash start cowrie"},
		{PID: 900002, PPID: 1, Cmdline: "/usr/sbin/sshd -D"},
	}}

	running, err := IsRunning(rc, lister, mentions("cowrie"))
	require.NoError(t, err)
	assert.False(t, running)
}

func TestLineageStopsOnCycle(t *testing.T) {
	procs := []Match{{PID: 5, PPID: 6}, {PID: 6, PPID: 5}}
	got := lineage(procs, 4, 5)
	assert.Equal(t, map[int32]bool{4: true, 5: true, 6: true}, got)
}

func TestExecutable(t *testing.T) {
	byName := Executable("dionaea")
	assert.True(t, byName(Match{Cmdline: "/opt/dionaea/bin/dionaea -D -c /opt/dionaea/etc/dionaea/dionaea.cfg"}))
	assert.False(t, byName(Match{Cmdline: "sudo honeydash start dionaea"}))
	assert.False(t, byName(Match{Cmdline: ""}))

	byPath := Executable("/opt/dionaea/bin/dionaea")
	assert.True(t, byPath(Match{Cmdline: "/opt/dionaea/bin/dionaea -D"}))
	assert.False(t, byPath(Match{Cmdline: "/srv/dionaea/bin/dionaea -D"}))
}

func TestFindListError(t *testing.T) {
	rc := honey_io.NewTestContext(context.Background(), zaptest.NewLogger(t))
	_, err := IsRunning(rc, staticLister{err: errors.New("no /proc")}, mentions("cowrie"))
	assert.Error(t, err)
}

func TestSystemListerSeesParent(t *testing.T) {
	rc := honey_io.NewTestContext(context.Background(), zaptest.NewLogger(t))
	all, err := SystemLister{}.List(rc)
	require.NoError(t, err)
	require.NotEmpty(t, all)
	for _, m := range all {
		if m.PID == int32(os.Getpid()) {
			assert.Equal(t, int32(os.Getppid()), m.PPID)
			return
		}
	}
	t.Fatal("own process not listed")
}
