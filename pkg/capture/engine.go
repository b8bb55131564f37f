// pkg/capture/engine.go

package capture

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/telemetry"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	bistreamsDir = "bistreams"
	binariesDir  = "binaries"
)

// Engine reads artifacts under a capture root.
type Engine struct {
	Root    string
	parsers map[string]Parser
}

// Query selects events. Since, when set, is a lower bound on the artifact
// timestamp in TimestampLayout.
type Query struct {
	Kind  string
	Limit int
	Since string
}

// New returns an engine for root with the given parsers, or every default
// parser when none is passed.
func New(root string, parsers ...Parser) *Engine {
	if len(parsers) == 0 {
		parsers = DefaultParsers()
	}
	e := &Engine{Root: root, parsers: make(map[string]Parser, len(parsers))}
	for _, p := range parsers {
		e.parsers[p.Tag()] = p
	}
	return e
}

// Kinds lists the registered protocol tags.
func (e *Engine) Kinds() []string {
	kinds := make([]string, 0, len(e.parsers))
	for k := range e.parsers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func (e *Engine) validate(q Query) (Parser, error) {
	p, ok := e.parsers[q.Kind]
	if !ok {
		return nil, honey_err.NewValidationError(
			"unknown event kind "+q.Kind,
			"Use one of: "+strings.Join(e.Kinds(), ", "))
	}
	if q.Limit <= 0 {
		return nil, honey_err.NewValidationError("limit must be positive")
	}
	if q.Since != "" && !ValidTimestamp(q.Since) {
		return nil, honey_err.NewValidationError(
			"invalid minimum timestamp "+q.Since,
			"Use the form YYYY-MM-DD-HH-MM-SS")
	}
	return p, nil
}

// QueryEvents returns up to q.Limit events of kind q.Kind. Date
// directories and the artifacts inside them are visited in ascending
// lexical order, and no artifact past the limit is read. Artifacts the
// parser skips do not count toward the limit.
func (e *Engine) QueryEvents(rc *honey_io.RuntimeContext, q Query) ([]CanonicalEvent, error) {
	_, span := telemetry.Start(rc.Ctx, "capture.QueryEvents",
		attribute.String("kind", q.Kind),
		attribute.Int("limit", q.Limit))
	defer span.End()
	logger := otelzap.Ctx(rc.Ctx)

	parser, err := e.validate(q)
	if err != nil {
		return nil, err
	}

	root := filepath.Join(e.Root, bistreamsDir)
	days, err := os.ReadDir(root)
	if err != nil {
		return nil, captureDirError(root, err)
	}

	events := make([]CanonicalEvent, 0, q.Limit)
	skipped := 0
	for _, day := range days {
		if !day.IsDir() {
			continue
		}
		dir := filepath.Join(root, day.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			logger.Warn("Skipping unreadable capture directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			a, ok := ParseArtifactName(entry.Name())
			if !ok || a.Tag != q.Kind {
				continue
			}
			if q.Since != "" && a.Timestamp < q.Since {
				continue
			}
			a.Path = filepath.Join(dir, entry.Name())

			ev, err := parser.Parse(a)
			if err != nil {
				skipped++
				logger.Debug("Artifact skipped", zap.String("artifact", a.Path), zap.Error(err))
				continue
			}
			events = append(events, *ev)
			if len(events) == q.Limit {
				logger.Info("Event query complete",
					zap.String("kind", q.Kind),
					zap.Int("events", len(events)),
					zap.Int("skipped", skipped))
				return events, nil
			}
		}
	}

	logger.Info("Event query complete",
		zap.String("kind", q.Kind),
		zap.Int("events", len(events)),
		zap.Int("skipped", skipped))
	return events, nil
}

func captureDirError(dir string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return honey_err.NewSystemError("capture directory "+dir+" does not exist", err,
			"Check dionaea.capture_root and that Dionaea has run at least once")
	}
	return honey_err.NewSystemError("cannot read capture directory "+dir, err)
}
