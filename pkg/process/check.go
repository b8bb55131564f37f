// pkg/process/check.go
//
// Process detection by command line, the equivalent of `pgrep -f`.

package process

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	cerr "github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Match is one entry of the process table.
type Match struct {
	PID     int32
	PPID    int32
	Cmdline string
}

// Args splits the command line on whitespace.
func (m Match) Args() []string {
	return strings.Fields(m.Cmdline)
}

// Lister enumerates processes. The default walks /proc through gopsutil.
type Lister interface {
	List(rc *honey_io.RuntimeContext) ([]Match, error)
}

type SystemLister struct{}

func (SystemLister) List(rc *honey_io.RuntimeContext) ([]Match, error) {
	procs, err := process.ProcessesWithContext(rc.Ctx)
	if err != nil {
		return nil, cerr.Wrap(err, "failed to list processes")
	}
	out := make([]Match, 0, len(procs))
	for _, p := range procs {
		cmdline, err := p.CmdlineWithContext(rc.Ctx)
		if err != nil || cmdline == "" {
			// exited or kernel thread
			continue
		}
		ppid, _ := p.PpidWithContext(rc.Ctx)
		out = append(out, Match{PID: p.Pid, PPID: ppid, Cmdline: cmdline})
	}
	return out, nil
}

// Find returns the processes accepted by match. The current process and
// all of its ancestors are never returned: `sudo honeydash start cowrie`
// names the decoy on its own command line.
func Find(rc *honey_io.RuntimeContext, lister Lister, match func(Match) bool) ([]Match, error) {
	if lister == nil {
		lister = SystemLister{}
	}
	all, err := lister.List(rc)
	if err != nil {
		return nil, err
	}

	skip := lineage(all, int32(os.Getpid()), int32(os.Getppid()))
	var matches []Match
	for _, m := range all {
		if skip[m.PID] {
			continue
		}
		if match(m) {
			matches = append(matches, m)
		}
	}

	otelzap.Ctx(rc.Ctx).Debug("Process scan",
		zap.Int("scanned", len(all)),
		zap.Int("matches", len(matches)))
	return matches, nil
}

// lineage returns self and every ancestor reachable through the PPID links
// in procs, starting from parent.
func lineage(procs []Match, self, parent int32) map[int32]bool {
	ppid := make(map[int32]int32, len(procs))
	for _, m := range procs {
		ppid[m.PID] = m.PPID
	}
	out := map[int32]bool{self: true}
	for pid := parent; pid > 0 && !out[pid]; {
		out[pid] = true
		next, ok := ppid[pid]
		if !ok || pid == 1 {
			break
		}
		pid = next
	}
	return out
}

// IsRunning reports whether any process other than honeydash and its
// ancestors is accepted by match.
func IsRunning(rc *honey_io.RuntimeContext, lister Lister, match func(Match) bool) (bool, error) {
	matches, err := Find(rc, lister, match)
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}

// Executable matches processes whose program is name (a base name) or path.
func Executable(nameOrPath string) func(Match) bool {
	return func(m Match) bool {
		args := m.Args()
		if len(args) == 0 {
			return false
		}
		if strings.ContainsRune(nameOrPath, '/') {
			return args[0] == nameOrPath
		}
		return filepath.Base(args[0]) == nameOrPath
	}
}

// Terminate sends SIGTERM to every pid.
func Terminate(rc *honey_io.RuntimeContext, pids []int32) error {
	logger := otelzap.Ctx(rc.Ctx)
	for _, pid := range pids {
		p, err := process.NewProcessWithContext(rc.Ctx, pid)
		if err != nil {
			logger.Debug("Process already gone", zap.Int32("pid", pid))
			continue
		}
		if err := p.TerminateWithContext(rc.Ctx); err != nil {
			return cerr.Wrapf(err, "failed to terminate pid %d", pid)
		}
		logger.Info("Sent SIGTERM", zap.Int32("pid", pid))
	}
	return nil
}
