package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	calls [][]string
	fail  map[string]error
}

func (r *recorder) Run(_ context.Context, opts execute.Options) (string, error) {
	r.calls = append(r.calls, append([]string{opts.Command}, opts.Args...))
	if err, ok := r.fail[opts.Args[2]]; ok {
		return "iptables: Bad rule (does a matching rule exist in that chain?).", err
	}
	return "", nil
}

func TestRedirectRuleArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"-t", "nat", "-A", "PREROUTING", "-p", "tcp", "--dport", "22", "-j", "REDIRECT", "--to-port", "2222"},
		RedirectRuleArgs("-A", 22, 2222))
}

func TestRemoveSkipsAbsentRule(t *testing.T) {
	rc := honey_io.NewTestContext(context.Background(), zaptest.NewLogger(t))
	r := &recorder{fail: map[string]error{"-C": errors.New("exit status 1")}}
	ipt := NewIptables(r)

	require.NoError(t, ipt.Remove(rc, 22, 2222))
	require.Len(t, r.calls, 1)
	assert.Equal(t, "-C", r.calls[0][3])
}

func TestRuleCheckFailureIsNotAbsence(t *testing.T) {
	rc := honey_io.NewTestContext(context.Background(), zaptest.NewLogger(t))
	r := &recorder{fail: map[string]error{"-C": errors.New("exit status 4")}}
	ipt := NewIptables(r)

	present, err := ipt.Exists(rc, 22, 2222)
	require.Error(t, err)
	assert.False(t, present)
	assert.True(t, honey_err.Is(err, honey_err.CategoryExternalCommand))

	require.Error(t, ipt.Remove(rc, 22, 2222))
	assert.Len(t, r.calls, 2, "no -D after a failed check")
}

func TestRemoveDeletesPresentRule(t *testing.T) {
	rc := honey_io.NewTestContext(context.Background(), zaptest.NewLogger(t))
	r := &recorder{}
	ipt := NewIptables(r)

	require.NoError(t, ipt.Remove(rc, 22, 2222))
	require.Len(t, r.calls, 2)
	assert.Equal(t, "-D", r.calls[1][3])
}

func TestAddPropagatesFailure(t *testing.T) {
	rc := honey_io.NewTestContext(context.Background(), zaptest.NewLogger(t))
	r := &recorder{fail: map[string]error{"-A": errors.New("exit status 2")}}
	assert.Error(t, NewIptables(r).Add(rc, 22, 2222))
}
