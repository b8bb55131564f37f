// pkg/capture/cowrie.go

package capture

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// maxLogLine bounds one cowrie.json record.
const maxLogLine = 1 << 20

// DionaeaCaptureRoot is the capture directory of a Dionaea installation.
func DionaeaCaptureRoot(installRoot string) string {
	return filepath.Join(installRoot, "var", "lib", "dionaea")
}

// CowrieLogPath is the JSON event log of a Cowrie installation.
func CowrieLogPath(installRoot string) string {
	return filepath.Join(installRoot, "var", "log", "cowrie", "cowrie.json")
}

// LogQuery filters Cowrie's event log. Since is an RFC 3339 lower bound on
// the record timestamp.
type LogQuery struct {
	Limit   int
	EventID string
	Since   string
}

// LogEntry is one Cowrie record with its fields as logged.
type LogEntry map[string]interface{}

// EventID returns the record's eventid, for example cowrie.login.failed.
func (e LogEntry) EventID() string {
	s, _ := e["eventid"].(string)
	return s
}

func (e LogEntry) time() (time.Time, bool) {
	s, _ := e["timestamp"].(string)
	t, err := time.Parse(time.RFC3339Nano, s)
	return t, err == nil
}

// ReadCowrieLog returns the newest q.Limit records of the log at path that
// match q, newest first. Lines that are not JSON objects are skipped.
func ReadCowrieLog(rc *honey_io.RuntimeContext, path string, q LogQuery) ([]LogEntry, error) {
	_, span := telemetry.Start(rc.Ctx, "capture.ReadCowrieLog",
		attribute.String("event_id", q.EventID),
		attribute.Int("limit", q.Limit))
	defer span.End()
	logger := otelzap.Ctx(rc.Ctx)

	if q.Limit <= 0 {
		return nil, honey_err.NewValidationError("limit must be positive")
	}
	var since time.Time
	if q.Since != "" {
		t, err := time.Parse(time.RFC3339Nano, q.Since)
		if err != nil {
			return nil, honey_err.NewValidationError("invalid timestamp "+q.Since,
				"Use RFC 3339, for example 2024-05-01T12:00:00Z")
		}
		since = t
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, honey_err.NewNotConfiguredError("Cowrie", "no JSON log at "+path,
			"Enable [output_jsonlog] in cowrie.cfg or set cowrie.log_path")
	}
	if err != nil {
		return nil, cerr.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	// ring holds the newest matches; next is the slot written next.
	ring := make([]LogEntry, 0, q.Limit)
	next, skipped := 0, 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLogLine)
	for sc.Scan() {
		var entry LogEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil || entry == nil {
			skipped++
			continue
		}
		if q.EventID != "" && entry.EventID() != q.EventID {
			continue
		}
		if !since.IsZero() {
			t, ok := entry.time()
			if !ok || t.Before(since) {
				continue
			}
		}
		if len(ring) < q.Limit {
			ring = append(ring, entry)
		} else {
			ring[next] = entry
		}
		next = (next + 1) % q.Limit
	}
	if err := sc.Err(); err != nil {
		return nil, cerr.Wrapf(err, "failed to read %s", path)
	}

	out := make([]LogEntry, 0, len(ring))
	for i := 1; i <= len(ring); i++ {
		out = append(out, ring[(next-i+len(ring))%len(ring)])
	}
	logger.Info("Cowrie log read",
		zap.String("log", path),
		zap.Int("entries", len(out)),
		zap.Int("skipped", skipped))
	return out, nil
}
