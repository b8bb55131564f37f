// pkg/capture/watch.go

package capture

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	cerr "github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// QuietPeriod is how long an artifact must go unwritten before it is
// parsed. Dionaea appends to a bistream until the connection closes.
var QuietPeriod = 2 * time.Second

// Watch parses new artifacts of kind as they appear under the bistreams
// tree and hands each event to fn. It blocks until ctx is done.
func (e *Engine) Watch(ctx context.Context, rc *honey_io.RuntimeContext, kind string, fn func(CanonicalEvent)) error {
	parser, err := e.validate(Query{Kind: kind, Limit: 1})
	if err != nil {
		return err
	}
	logger := otelzap.Ctx(rc.Ctx)

	root := filepath.Join(e.Root, bistreamsDir)
	days, err := os.ReadDir(root)
	if err != nil {
		return captureDirError(root, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return cerr.Wrap(err, "create watcher")
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(root); err != nil {
		return cerr.Wrapf(err, "watch %s", root)
	}
	for _, day := range days {
		if day.IsDir() {
			if err := w.Add(filepath.Join(root, day.Name())); err != nil {
				logger.Warn("Cannot watch capture directory", zap.String("dir", day.Name()), zap.Error(err))
			}
		}
	}
	logger.Info("Watching for new artifacts", zap.String("root", root), zap.String("kind", kind))

	pending := map[string]time.Time{}
	tick := time.NewTicker(QuietPeriod / 4)
	defer tick.Stop()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if filepath.Dir(ev.Name) == root {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.Add(ev.Name); err != nil {
						logger.Warn("Cannot watch capture directory", zap.String("dir", ev.Name), zap.Error(err))
					}
				}
				continue
			}
			a, ok := ParseArtifactName(filepath.Base(ev.Name))
			if ok && a.Tag == kind {
				pending[ev.Name] = time.Now()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", zap.Error(err))

		case now := <-tick.C:
			for path, last := range pending {
				if now.Sub(last) < QuietPeriod {
					continue
				}
				delete(pending, path)
				a, _ := ParseArtifactName(filepath.Base(path))
				a.Path = path
				event, err := parser.Parse(a)
				if err != nil {
					logger.Debug("Artifact skipped", zap.String("artifact", path), zap.Error(err))
					continue
				}
				fn(*event)
			}

		case <-ctx.Done():
			return nil
		}
	}
}
