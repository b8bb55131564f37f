// Package locator finds decoy installations on the host.
package locator

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/docker"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/telemetry"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Kind identifies a decoy product.
type Kind string

const (
	// Cowrie is the SSH decoy.
	Cowrie Kind = "cowrie"
	// Dionaea is the multi-protocol decoy.
	Dionaea Kind = "dionaea"
)

// ParseKind accepts the product name in any case.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Cowrie:
		return Cowrie, true
	case Dionaea:
		return Dionaea, true
	}
	return "", false
}

// Installation is a located decoy. Exactly one of Root and Container is set.
type Installation struct {
	Kind      Kind   `json:"kind"`
	Root      string `json:"root,omitempty"`
	Container string `json:"container,omitempty"`
}

// Hint carries operator-supplied locations that take precedence over probing.
type Hint struct {
	Path      string
	Container string
}

// ContainerFinder looks up a container by name.
type ContainerFinder interface {
	FindContainer(rc *honey_io.RuntimeContext, name string) (*docker.ContainerInfo, bool, error)
}

// Locator searches the filesystem with find(1) and, for containerised decoys,
// the Docker daemon.
type Locator struct {
	Runner        execute.Runner
	Containers    ContainerFinder
	OptTimeout    time.Duration
	GlobalTimeout time.Duration
}

func New(runner execute.Runner, containers ContainerFinder, optTimeout, globalTimeout time.Duration) *Locator {
	if runner == nil {
		runner = execute.DefaultRunner{}
	}
	if optTimeout <= 0 {
		optTimeout = 7 * time.Second
	}
	if globalTimeout <= 0 {
		globalTimeout = 30 * time.Second
	}
	return &Locator{Runner: runner, Containers: containers, OptTimeout: optTimeout, GlobalTimeout: globalTimeout}
}

// requiredEntries must all exist under a valid installation root.
var requiredEntries = map[Kind][]string{
	Cowrie:  {"bin", "honeyfs", "etc"},
	Dionaea: {"bin", "etc", "lib"},
}

// Validate reports whether root holds every required entry for kind.
func Validate(kind Kind, root string) bool {
	entries, ok := requiredEntries[kind]
	if !ok || root == "" {
		return false
	}
	for _, e := range entries {
		if _, err := os.Stat(filepath.Join(root, e)); err != nil {
			return false
		}
	}
	return true
}

// Locate returns the installation of kind, or false when none was found.
// Probe failures and timeouts are reported as not found.
func (l *Locator) Locate(rc *honey_io.RuntimeContext, kind Kind, hint Hint) (*Installation, bool) {
	_, span := telemetry.Start(rc.Ctx, "locator.Locate", attribute.String("kind", string(kind)))
	defer span.End()
	logger := otelzap.Ctx(rc.Ctx)

	if hint.Container != "" {
		if l.Containers == nil {
			logger.Warn("Container configured but docker is unavailable", zap.String("container", hint.Container))
			return nil, false
		}
		info, ok, err := l.Containers.FindContainer(rc, hint.Container)
		if err != nil {
			logger.Warn("Container lookup failed", zap.String("container", hint.Container), zap.Error(err))
			return nil, false
		}
		if !ok {
			logger.Info("Configured container not found", zap.String("container", hint.Container))
			return nil, false
		}
		return &Installation{Kind: kind, Container: info.Name}, true
	}

	if hint.Path != "" {
		if Validate(kind, hint.Path) {
			return &Installation{Kind: kind, Root: hint.Path}, true
		}
		logger.Warn("Configured path is not a valid installation",
			zap.String("kind", string(kind)),
			zap.String("path", hint.Path))
		return nil, false
	}

	for _, scope := range []struct {
		root    string
		timeout time.Duration
	}{
		{"/opt", l.OptTimeout},
		{"/", l.GlobalTimeout},
	} {
		if root, ok := l.search(rc, kind, scope.root, scope.timeout); ok {
			logger.Info("Located installation", zap.String("kind", string(kind)), zap.String("root", root))
			return &Installation{Kind: kind, Root: root}, true
		}
	}
	logger.Info("Installation not found", zap.String("kind", string(kind)))
	return nil, false
}

func (l *Locator) search(rc *honey_io.RuntimeContext, kind Kind, base string, timeout time.Duration) (string, bool) {
	logger := otelzap.Ctx(rc.Ctx)

	out, err := l.Runner.Run(rc.Ctx, execute.Options{
		Command: "find",
		Args:    FindArgs(kind, base),
		Timeout: timeout,
		Capture: true,
	})
	if err != nil {
		if execute.IsTimeout(err) {
			logger.Warn("Installation search timed out",
				zap.String("base", base),
				zap.Duration("timeout", timeout))
			return "", false
		}
		// find exits non-zero on unreadable directories but still prints matches
		logger.Debug("find reported errors", zap.String("base", base), zap.Error(err))
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "/") {
			continue
		}
		root := rootFromMatch(kind, line)
		if Validate(kind, root) {
			return root, true
		}
		logger.Debug("Candidate rejected", zap.String("candidate", root))
	}
	return "", false
}

// FindArgs returns the find(1) arguments that match kind's marker under base.
func FindArgs(kind Kind, base string) []string {
	switch kind {
	case Dionaea:
		return []string{base, "-name", "dionaea.cfg", "-type", "f", "-path", "*/dionaea/etc/dionaea*"}
	default:
		return []string{base, "-name", "honeyfs", "-type", "d", "-path", "*/cowrie/*"}
	}
}

func rootFromMatch(kind Kind, match string) string {
	if kind == Dionaea {
		// <root>/etc/dionaea/dionaea.cfg
		return filepath.Dir(filepath.Dir(filepath.Dir(match)))
	}
	// <root>/honeyfs
	return filepath.Dir(match)
}
